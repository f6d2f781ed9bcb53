package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/heartline/backend/internal/config"
	"github.com/heartline/backend/pkg/validation"
	log "github.com/sirupsen/logrus"
)

// StartResult is returned by a successful Start.
type StartResult struct {
	RequestID string
}

// CheckResult is returned by a successful Check.
type CheckResult struct {
	Verified bool
}

// VerificationService runs the phone verification state machine:
//
//	unverified   --Start--> code_pending
//	code_pending --Start--> code_pending (new request id)
//	code_pending --Check--> verified
//	verified     --Start--> code_pending
//
// A failed Check leaves the record untouched.
type VerificationService struct {
	cfg      *config.Config
	identity IdentityResolver
	store    VerificationStore
	provider VerifyProvider
	events   EventRecorder
}

func NewVerificationService(cfg *config.Config, identity IdentityResolver, store VerificationStore, provider VerifyProvider, events EventRecorder) *VerificationService {
	return &VerificationService{
		cfg:      cfg,
		identity: identity,
		store:    store,
		provider: provider,
		events:   events,
	}
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" unless the value has the form "Bearer <token>".
func BearerToken(authorization string) string {
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Start sends a code to phone and records it as the caller's pending request.
func (s *VerificationService) Start(ctx context.Context, authorization, phone string) (*StartResult, error) {
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	phone = validation.NormalizePhone(phone)
	if phone == "" {
		return nil, invalidInput(MsgPhoneRequired)
	}
	if !validation.ValidatePhoneE164(phone) {
		return nil, invalidInput(MsgPhoneInvalid)
	}

	userID, err := s.authenticate(ctx, authorization)
	if err != nil {
		return nil, err
	}
	logger := log.WithFields(log.Fields{"user_id": userID, "phone": maskPhone(phone)})

	owner, err := s.store.FindVerifiedOwner(ctx, phone, userID)
	if err != nil {
		logger.WithError(err).Error("Phone ownership lookup failed")
		return nil, storageError(MsgLookupFailed, err)
	}
	if owner != uuid.Nil {
		logger.Info("Phone already verified by another user")
		return nil, newError(KindConflict, http.StatusConflict, MsgPhoneTaken, nil)
	}

	requestID, err := s.provider.Issue(ctx, phone, s.cfg.VerifyBrand)
	if err != nil {
		logger.WithError(err).Warn("Provider rejected verification start")
		return nil, startProviderError(err)
	}
	logger = logger.WithField("request_id", requestID)

	if err := s.store.SetPending(ctx, userID, phone, requestID); err != nil {
		// The code is live at the provider but nothing here points to it.
		logger.WithError(err).Error("Verification code issued but not persisted; provider request orphaned")
		s.record(ctx, userID, AuditVerificationOrphaned, map[string]interface{}{
			"request_id": requestID,
			"provider":   s.provider.GetProviderName(),
		})
		return nil, storageError(MsgStorageFailed, err)
	}

	s.record(ctx, userID, AuditVerificationStarted, map[string]interface{}{
		"request_id": requestID,
		"phone":      maskPhone(phone),
	})
	logger.Info("Phone verification started")
	return &StartResult{RequestID: requestID}, nil
}

// Check submits code for the caller's pending request and marks the phone
// verified on success.
func (s *VerificationService) Check(ctx context.Context, authorization, code string) (*CheckResult, error) {
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}

	code = validation.NormalizeCode(code)
	if code == "" {
		return nil, invalidInput(MsgCodeRequired)
	}
	if !validation.ValidateCode(code) {
		return nil, invalidInput(MsgCodeInvalid)
	}

	userID, err := s.authenticate(ctx, authorization)
	if err != nil {
		return nil, err
	}
	logger := log.WithField("user_id", userID)

	record, err := s.store.GetVerificationState(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, newError(KindNoActiveRequest, http.StatusBadRequest, MsgNoActiveRequest, err)
		}
		logger.WithError(err).Error("Failed to load verification state")
		return nil, storageError(MsgLookupFailed, err)
	}
	// Verified records never carry a pending id, so this must come first for
	// a repeated check to report the phone as already verified.
	if record.PhoneVerified {
		return nil, newError(KindAlreadyVerified, http.StatusBadRequest, MsgAlreadyVerified, nil)
	}
	if !record.HasPendingRequest() {
		return nil, newError(KindNoActiveRequest, http.StatusBadRequest, MsgNoActiveRequest, nil)
	}

	requestID := *record.PendingRequestID
	logger = logger.WithField("request_id", requestID)

	if err := s.provider.Check(ctx, requestID, code); err != nil {
		verr := checkProviderError(err)
		fields := map[string]interface{}{"request_id": requestID}
		var pe *ProviderError
		if errors.As(err, &pe) {
			fields["failure"] = pe.Failure.String()
		}
		s.record(ctx, userID, AuditVerificationFailed, fields)
		logger.WithError(err).Info("Verification code check failed")
		return nil, verr
	}

	if err := s.store.MarkVerified(ctx, userID, requestID); err != nil {
		if errors.Is(err, ErrPendingMismatch) {
			logger.Warn("Pending request replaced while checking; verified flag not set")
			return nil, newError(KindStaleRequest, http.StatusConflict, MsgRequestSuperseded, err)
		}
		if errors.Is(err, ErrPhoneTaken) {
			logger.Warn("Number verified by another user while checking")
			return nil, newError(KindConflict, http.StatusConflict, MsgPhoneTaken, err)
		}
		logger.WithError(err).Error("Code accepted by provider but verified flag not persisted")
		return nil, storageError(MsgStorageFailed, err)
	}

	s.record(ctx, userID, AuditVerificationCompleted, map[string]interface{}{"request_id": requestID})
	logger.Info("Phone verified")
	return &CheckResult{Verified: true}, nil
}

// Status returns the caller's current verification record.
func (s *VerificationService) Status(ctx context.Context, userID uuid.UUID) (VerificationRecord, error) {
	record, err := s.store.GetVerificationState(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return VerificationRecord{UserID: userID}, nil
		}
		return VerificationRecord{}, storageError(MsgLookupFailed, err)
	}
	return record, nil
}

func (s *VerificationService) checkConfigured() error {
	if s.cfg == nil || s.identity == nil || s.store == nil || s.provider == nil {
		return configurationError(errors.New("verification service not wired"))
	}
	if missing := s.cfg.MissingVerificationSettings(); len(missing) > 0 {
		err := fmt.Errorf("missing settings: %s", strings.Join(missing, ", "))
		log.WithError(err).Error("Phone verification is not configured")
		return configurationError(err)
	}
	return nil
}

func (s *VerificationService) authenticate(ctx context.Context, authorization string) (uuid.UUID, error) {
	token := BearerToken(authorization)
	if token == "" {
		return uuid.Nil, authRequired(MsgAuthRequired, nil)
	}
	userID, err := s.identity.ResolveIdentity(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			log.WithError(err).Error("Identity lookup failed")
		}
		return uuid.Nil, authRequired(MsgSessionInvalid, err)
	}
	return userID, nil
}

func (s *VerificationService) record(ctx context.Context, userID uuid.UUID, action string, details map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, userID, action, details); err != nil {
		log.WithError(err).WithFields(log.Fields{"user_id": userID, "action": action}).Warn("Failed to write audit log")
	}
}

func startProviderError(err error) *VerificationError {
	if errors.Is(err, ErrMalformedProviderResponse) {
		return newError(KindProvider, http.StatusInternalServerError, MsgInvalidUpstream, err)
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		msg := pe.Describe()
		if msg == "" {
			msg = MsgStartFailed
		}
		return newError(KindProvider, http.StatusBadRequest, msg, err)
	}
	return newError(KindProvider, http.StatusInternalServerError, MsgStartFailed, err)
}

func checkProviderError(err error) *VerificationError {
	if errors.Is(err, ErrMalformedProviderResponse) {
		return newError(KindProvider, http.StatusInternalServerError, MsgInvalidUpstream, err)
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return newError(KindProvider, http.StatusBadRequest, checkFailureMessage(pe), err)
	}
	return newError(KindProvider, http.StatusInternalServerError, MsgCheckFailed, err)
}

// maskPhone keeps the country prefix and the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 7 {
		return "***"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-7) + phone[len(phone)-4:]
}
