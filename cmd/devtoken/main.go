// Command devtoken prints an access token for a user id so the phone
// endpoints can be exercised against a local server:
//
//	go run ./cmd/devtoken -user 6f1c...
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/heartline/backend/internal/config"
	"github.com/heartline/backend/internal/services"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	userFlag := flag.String("user", "", "user id (uuid) to issue the token for")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.New()

	if cfg.IsProduction() {
		log.Fatal("devtoken refuses to run with ENV=production")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: devtoken -user <uuid>")
		os.Exit(2)
	}

	token, err := services.NewAuthService(nil, nil, cfg).IssueAccessToken(userID)
	if err != nil {
		log.WithError(err).Fatal("Failed to sign token")
	}
	fmt.Println(token)
}
