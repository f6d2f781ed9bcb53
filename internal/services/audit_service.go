package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/heartline/backend/internal/models"
	"gorm.io/gorm"
)

// Audit actions written by the verification flow.
const (
	AuditVerificationStarted   = "phone_verification_started"
	AuditVerificationCompleted = "phone_verification_completed"
	AuditVerificationFailed    = "phone_verification_failed"
	AuditVerificationOrphaned  = "phone_verification_orphaned"
)

// EventRecorder stores verification events.
type EventRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, action string, details map[string]interface{}) error
}

type requestMetaKey struct{}

// RequestMeta carries caller network details into the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches meta to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes a verification event to the audit log
func (s *AuditService) Record(ctx context.Context, userID uuid.UUID, action string, details map[string]interface{}) error {
	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	meta := requestMetaFrom(ctx)
	entry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Details:   detailsJSON,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	return s.db.WithContext(ctx).Create(entry).Error
}
