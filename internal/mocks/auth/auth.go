// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ahava-health/ahava-api/internal/domain/audit"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore  = (*MemorySessionStore)(nil)
	_ ports.SessionPurger = (*MemorySessionStore)(nil)
	_ ports.UserStore     = (*MemoryUserStore)(nil)
	_ ports.ProfileStore  = (*MemoryUserStore)(nil)
	_ ports.AccountStats  = (*MemoryUserStore)(nil)
	_ ports.AuditLogger   = (*RecordingAuditLogger)(nil)
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// MemorySessionStore is an in-memory session store for unit tests.
// Setting Err makes every call fail with it.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	clock    Clock

	Err error
	// FindCalls counts FindByToken invocations.
	FindCalls int
}

// NewMemorySessionStore creates a new in-memory session store. A nil clock uses time.Now.
func NewMemorySessionStore(clock Clock) *MemorySessionStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
		clock:    clock,
	}
}

func (m *MemorySessionStore) Create(_ context.Context, in ports.CreateSessionInput) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.Session{}, m.Err
	}
	if in.Token == "" || in.UserID == "" {
		return domainauth.Session{}, errors.New("session token and user id are required")
	}
	now := m.clock.Now()
	sess := domainauth.Session{
		Token:     in.Token,
		UserID:    in.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(in.TTL),
		IP:        in.IP,
		UserAgent: in.UserAgent,
	}
	m.sessions[in.Token] = sess
	return sess, nil
}

func (m *MemorySessionStore) FindByToken(_ context.Context, token string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls++
	if m.Err != nil {
		return domainauth.Session{}, m.Err
	}
	sess, ok := m.sessions[token]
	if !ok || !sess.ValidAt(m.clock.Now()) {
		return domainauth.Session{}, apperrors.NotFound("session not found")
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessionStore) DeleteByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var n int64
	for tok, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

func (m *MemorySessionStore) DeleteExpired(_ context.Context, before time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var n int64
	for tok, s := range m.sessions {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if !s.ExpiresAt.After(before) {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryUserStore keeps users and role profiles in memory.
// Err fails user calls; RoleErr fails profile calls.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]domainauth.User
	byEmail map[string]string
	roles   map[string]domainauth.Role

	Err     error
	RoleErr error
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]domainauth.User),
		byEmail: make(map[string]string),
		roles:   make(map[string]domainauth.Role),
	}
}

func (m *MemoryUserStore) Create(_ context.Context, u domainauth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u.Email = domainauth.NormalizeEmail(u.Email)
	if _, ok := m.byEmail[u.Email]; ok {
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeConflict,
			Message: "An account with this email already exists.",
			Field:   "email",
		}
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryUserStore) FindByID(_ context.Context, id string) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.User{}, m.Err
	}
	u, ok := m.byID[id]
	if !ok {
		return domainauth.User{}, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (m *MemoryUserStore) FindByEmail(_ context.Context, email string) (domainauth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.User{}, m.Err
	}
	id, ok := m.byEmail[domainauth.NormalizeEmail(email)]
	if !ok {
		return domainauth.User{}, apperrors.NotFound("user not found")
	}
	return m.byID[id], nil
}

func (m *MemoryUserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.byID[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

// Delete removes a user and its profile.
func (m *MemoryUserStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		delete(m.byEmail, u.Email)
	}
	delete(m.byID, id)
	delete(m.roles, id)
}

func (m *MemoryUserStore) Upsert(_ context.Context, p domainauth.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RoleErr != nil {
		return m.RoleErr
	}
	if !p.Role.Valid() {
		return apperrors.ValidationField("role", "Unknown role: "+string(p.Role))
	}
	if _, ok := m.byID[p.UserID]; !ok {
		return &apperrors.AppError{Code: apperrors.ErrCodeForeignKey, Message: "user does not exist"}
	}
	m.roles[p.UserID] = p.Role
	return nil
}

func (m *MemoryUserStore) FindRole(_ context.Context, userID string) (domainauth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RoleErr != nil {
		return "", m.RoleErr
	}
	r, ok := m.roles[userID]
	if !ok {
		return "", apperrors.NotFound("profile not found")
	}
	return r, nil
}

func (m *MemoryUserStore) CountByRole(_ context.Context) (map[domainauth.Role]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RoleErr != nil {
		return nil, m.RoleErr
	}
	out := make(map[domainauth.Role]int64)
	for _, r := range m.roles {
		out[r]++
	}
	return out, nil
}

// RecordingAuditLogger keeps every recorded entry for assertions.
type RecordingAuditLogger struct {
	mu      sync.Mutex
	entries []audit.Entry

	Err error
}

func (r *RecordingAuditLogger) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.entries = append(r.entries, e)
	return nil
}

// Recent implements ports.AuditReader over the recorded entries, newest first.
func (r *RecordingAuditLogger) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Entry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns a copy of the recorded entries in insertion order.
func (r *RecordingAuditLogger) Entries() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Actions returns the recorded actions in insertion order.
func (r *RecordingAuditLogger) Actions() []audit.Action {
	entries := r.Entries()
	out := make([]audit.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}
