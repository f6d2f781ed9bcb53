package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]VerificationRecord
	calls   int
	setErr  error
	markErr error
}

func newMemoryStore(users ...uuid.UUID) *memoryStore {
	s := &memoryStore{records: make(map[uuid.UUID]VerificationRecord)}
	for _, id := range users {
		s.records[id] = VerificationRecord{UserID: id}
	}
	return s
}

func (s *memoryStore) GetVerificationState(ctx context.Context, userID uuid.UUID) (VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	rec, ok := s.records[userID]
	if !ok {
		return VerificationRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *memoryStore) FindVerifiedOwner(ctx context.Context, phone string, exclude uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for id, rec := range s.records {
		if id != exclude && rec.PhoneVerified && rec.PhoneE164 != nil && *rec.PhoneE164 == phone {
			return id, nil
		}
	}
	return uuid.Nil, nil
}

func (s *memoryStore) SetPending(ctx context.Context, userID uuid.UUID, phone, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.setErr != nil {
		return s.setErr
	}
	rec, ok := s.records[userID]
	if !ok {
		return ErrUserNotFound
	}
	rec.PhoneE164 = &phone
	rec.PhoneVerified = false
	rec.PendingRequestID = &requestID
	s.records[userID] = rec
	return nil
}

func (s *memoryStore) MarkVerified(ctx context.Context, userID uuid.UUID, expectedRequestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.markErr != nil {
		return s.markErr
	}
	rec, ok := s.records[userID]
	if !ok || rec.PendingRequestID == nil || *rec.PendingRequestID != expectedRequestID {
		return ErrPendingMismatch
	}
	rec.PhoneVerified = true
	rec.PendingRequestID = nil
	s.records[userID] = rec
	return nil
}

func (s *memoryStore) get(userID uuid.UUID) VerificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID]
}

func (s *memoryStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type tokenResolver map[string]uuid.UUID

func (r tokenResolver) ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error) {
	id, ok := r[token]
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

type stubProvider struct {
	mu         sync.Mutex
	nextID     string
	issueErr   error
	checkErr   error
	issued     []string
	checked    []string
	onCheck    func()
	issueCalls int
	checkCalls int
}

func (p *stubProvider) Issue(ctx context.Context, phone, brand string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issueCalls++
	if p.issueErr != nil {
		return "", p.issueErr
	}
	p.issued = append(p.issued, phone)
	return p.nextID, nil
}

func (p *stubProvider) Check(ctx context.Context, requestID, code string) error {
	p.mu.Lock()
	p.checkCalls++
	p.checked = append(p.checked, requestID+":"+code)
	hook := p.onCheck
	err := p.checkErr
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (p *stubProvider) GetProviderName() string { return "stub" }

func (p *stubProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueCalls + p.checkCalls
}

type recordedEvent struct {
	userID uuid.UUID
	action string
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (l *eventLog) Record(ctx context.Context, userID uuid.UUID, action string, details map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{userID: userID, action: action})
	return l.err
}

func (l *eventLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.action)
	}
	return out
}
