package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the profile row. Only the phone verification columns are owned by
// this service; the rest of the profile is managed elsewhere.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	// Phone verification
	PhoneE164        *string `gorm:"type:varchar(16);index:idx_users_verified_phone,unique,where:phone_verified = true" json:"phone_e164,omitempty"`
	PhoneVerified    bool    `gorm:"not null;default:false;index:idx_users_verified_phone,unique,where:phone_verified = true" json:"phone_verified"`
	PendingRequestID *string `gorm:"type:varchar(64)" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
