package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records a phone verification event for a user.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Action    string    `gorm:"type:varchar(100);not null" json:"action"` // e.g., "phone_verification_started"
	Details   string    `gorm:"type:text" json:"details,omitempty"`       // JSON string with additional info
	IPAddress string    `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
