package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/heartline/backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when no profile row exists for a user id.
	ErrUserNotFound = errors.New("user not found")

	// ErrPendingMismatch is returned by MarkVerified when the stored pending
	// request id is no longer the one that was checked.
	ErrPendingMismatch = errors.New("pending request id changed")

	// ErrPhoneTaken is returned by MarkVerified when another user verified
	// the same number first and the unique index rejected the update.
	ErrPhoneTaken = errors.New("phone number already verified by another user")
)

// VerificationState is the lifecycle position of a user's phone.
type VerificationState string

const (
	StateUnverified  VerificationState = "unverified"
	StateCodePending VerificationState = "code_pending"
	StateVerified    VerificationState = "verified"
)

// VerificationRecord holds the verification columns of a user's profile.
type VerificationRecord struct {
	UserID           uuid.UUID
	PhoneE164        *string
	PhoneVerified    bool
	PendingRequestID *string
}

// State derives the lifecycle state from the stored fields.
func (r VerificationRecord) State() VerificationState {
	switch {
	case r.PhoneVerified:
		return StateVerified
	case r.PendingRequestID != nil && *r.PendingRequestID != "":
		return StateCodePending
	default:
		return StateUnverified
	}
}

// HasPendingRequest reports whether a code is outstanding.
func (r VerificationRecord) HasPendingRequest() bool {
	return r.PendingRequestID != nil && *r.PendingRequestID != ""
}

// VerificationStore persists the verification fields of a user profile.
type VerificationStore interface {
	GetVerificationState(ctx context.Context, userID uuid.UUID) (VerificationRecord, error)

	// FindVerifiedOwner returns the id of a user other than exclude who has
	// phone verified, or uuid.Nil.
	FindVerifiedOwner(ctx context.Context, phone string, exclude uuid.UUID) (uuid.UUID, error)

	// SetPending stores phone and requestID and clears the verified flag.
	SetPending(ctx context.Context, userID uuid.UUID, phone, requestID string) error

	// MarkVerified sets the verified flag and clears the pending id, but only
	// while the pending id still equals expectedRequestID.
	MarkVerified(ctx context.Context, userID uuid.UUID, expectedRequestID string) error
}

// GormVerificationStore implements VerificationStore on the users table.
type GormVerificationStore struct {
	db *gorm.DB
}

func NewGormVerificationStore(db *gorm.DB) *GormVerificationStore {
	return &GormVerificationStore{db: db}
}

func (s *GormVerificationStore) GetVerificationState(ctx context.Context, userID uuid.UUID) (VerificationRecord, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("id", "phone_e164", "phone_verified", "pending_request_id").
		First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VerificationRecord{}, ErrUserNotFound
		}
		return VerificationRecord{}, err
	}
	return VerificationRecord{
		UserID:           user.ID,
		PhoneE164:        user.PhoneE164,
		PhoneVerified:    user.PhoneVerified,
		PendingRequestID: user.PendingRequestID,
	}, nil
}

func (s *GormVerificationStore) FindVerifiedOwner(ctx context.Context, phone string, exclude uuid.UUID) (uuid.UUID, error) {
	// The partial unique index allows at most one verified owner per number.
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("phone_e164 = ? AND phone_verified = ? AND id <> ?", phone, true, exclude).
		Pluck("id", &ids).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, nil
	}
	return ids[0], nil
}

func (s *GormVerificationStore) SetPending(ctx context.Context, userID uuid.UUID, phone, requestID string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"phone_e164":         phone,
			"phone_verified":     false,
			"pending_request_id": requestID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *GormVerificationStore) MarkVerified(ctx context.Context, userID uuid.UUID, expectedRequestID string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND pending_request_id = ?", userID, expectedRequestID).
		Updates(map[string]interface{}{
			"phone_verified":     true,
			"pending_request_id": gorm.Expr("NULL"),
		})
	if result.Error != nil {
		// Needs TranslateError on the gorm config, see models.InitDB.
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrPhoneTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPendingMismatch
	}
	return nil
}
