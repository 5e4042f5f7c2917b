package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
	"github.com/ahava-health/ahava-api/internal/domain/audit"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/observability/metrics"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ports"
)

// CredentialHasher hashes and verifies passwords. *cryptoutil.PasswordHasher satisfies it.
type CredentialHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, encoded string) bool
	NeedsRehash(encoded string) bool
}

// Clock supplies the current time. data.TimeProvider satisfies it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Defaults applied by NewAuthService.
const (
	DefaultSessionTTL   = 30 * 24 * time.Hour
	DefaultStoreTimeout = 3 * time.Second
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = apperrors.Unauthenticated("Invalid credentials")

// errUnauthorized is returned by Authenticate for every credential problem. Callers must
// not learn whether the token was unknown, expired or orphaned.
var errUnauthorized = apperrors.Unauthenticated("Unauthorized")

// WeakPasswordError lists the strength rules a signup password failed.
// It unwraps to a validation AppError.
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	return "Password does not meet requirements: " + strings.Join(e.Violations, "; ")
}

func (e *WeakPasswordError) Unwrap() error {
	return apperrors.ValidationField("password", "Password does not meet requirements")
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users    ports.UserStore    // Required
	Profiles ports.ProfileStore // Required
	Sessions ports.SessionStore // Required
	Hasher   CredentialHasher   // Required
	Audit    ports.AuditLogger  // Optional: audit writes are skipped when nil

	Clock        Clock         // Optional: defaults to the system clock
	SessionTTL   time.Duration // Optional: defaults to 30 days
	TokenBytes   int           // Optional: defaults to 32, minimum 20
	StoreTimeout time.Duration // Optional: per store call, defaults to 3s
	Logger       *slog.Logger  // Optional
	Metrics      statsd.Sink   // Optional
}

// AuthService owns signup, login, logout and request authentication.
type AuthService struct {
	users    ports.UserStore
	profiles ports.ProfileStore
	sessions ports.SessionStore
	hasher   CredentialHasher
	audit    ports.AuditLogger

	clock        Clock
	sessionTTL   time.Duration
	tokenBytes   int
	storeTimeout time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Users == nil || opts.Profiles == nil || opts.Sessions == nil {
		return nil, errors.New("user, profile and session stores are required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("credential hasher is required")
	}

	s := &AuthService{
		users:        opts.Users,
		profiles:     opts.Profiles,
		sessions:     opts.Sessions,
		hasher:       opts.Hasher,
		audit:        opts.Audit,
		clock:        opts.Clock,
		sessionTTL:   opts.SessionTTL,
		tokenBytes:   opts.TokenBytes,
		storeTimeout: opts.StoreTimeout,
		metrics:      opts.Metrics,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.tokenBytes < cryptoutil.MinSessionTokenBytes {
		s.tokenBytes = cryptoutil.DefaultSessionTokenBytes
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With("component", "auth_service")
	return s, nil
}

// SessionTTL reports how long issued sessions live.
func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

// RequestMeta carries client details recorded with sessions and audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// SignupInput groups parameters for Signup.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Meta     RequestMeta
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	User    domainauth.User
	Role    domainauth.Role
	Session domainauth.Session
}

// RegisterInput provisions an account without issuing a session.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     domainauth.Role
}

// Register validates and stores a new account with the given role (PATIENT when empty).
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domainauth.User, error) {
	email := domainauth.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return domainauth.User{}, apperrors.Validation("Name, email and password are required")
	}
	if !cryptoutil.ValidateEmail(email) {
		return domainauth.User{}, apperrors.ValidationField("email", "Invalid email address")
	}
	if res := cryptoutil.ValidateStrength(in.Password); !res.Valid {
		return domainauth.User{}, &WeakPasswordError{Violations: res.Violations}
	}
	role := in.Role
	if role == "" {
		role = domainauth.RolePatient
	}
	if !role.Valid() {
		return domainauth.User{}, apperrors.ValidationField("role", "Unknown role: "+string(role))
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return domainauth.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := cryptoutil.NewUserID()
	if err != nil {
		return domainauth.User{}, err
	}

	now := s.clock.Now().UTC()
	user := domainauth.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if creator, ok := s.users.(ports.AccountCreator); ok {
		if err := s.withStore(ctx, func(ctx context.Context) error { return creator.CreateAccount(ctx, user, role) }); err != nil {
			return domainauth.User{}, storeFailure(err, "create account")
		}
		return user, nil
	}

	if err := s.withStore(ctx, func(ctx context.Context) error { return s.users.Create(ctx, user) }); err != nil {
		return domainauth.User{}, storeFailure(err, "create user")
	}
	profile := domainauth.Profile{UserID: user.ID, Role: role}
	if err := s.withStore(ctx, func(ctx context.Context) error { return s.profiles.Upsert(ctx, profile) }); err != nil {
		return domainauth.User{}, storeFailure(err, "create profile")
	}
	return user, nil
}

// Signup registers a PATIENT account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	start := time.Now()
	user, err := s.Register(ctx, RegisterInput{Email: in.Email, Password: in.Password, Name: in.Name})
	if err != nil {
		s.emit("signup", start, err)
		return nil, err
	}

	sess, err := s.issueSession(ctx, user.ID, in.Meta)
	if err != nil {
		s.emit("signup", start, err)
		return nil, err
	}

	s.record(ctx, user.ID, audit.ActionSignUp, in.Meta)
	s.emit("signup", start, nil)
	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID, "session", cryptoutil.ShortDigest(sess.Token))
	return &AuthResult{User: user, Role: domainauth.RolePatient, Session: sess}, nil
}

// LoginInput groups parameters for Login.
type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// Login verifies credentials and issues a session. Hashes in legacy formats or with
// weaker parameters are upgraded in place; an upgrade failure does not fail the login.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	start := time.Now()
	email := domainauth.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		err := apperrors.Validation("Email and password are required")
		s.emit("login", start, err)
		return nil, err
	}

	var user domainauth.User
	err := s.withStore(ctx, func(ctx context.Context) error {
		var findErr error
		user, findErr = s.users.FindByEmail(ctx, email)
		return findErr
	})
	if apperrors.IsNotFound(err) {
		// Spend the same derivation cost as a real check so timing does not reveal accounts.
		s.hasher.Verify(ctx, in.Password, s.dummy(ctx))
		err = credentialCheckAborted(ctx)
		if err == nil {
			err = ErrInvalidCredentials
		}
		s.emit("login", start, err)
		return nil, err
	}
	if err != nil {
		err = storeFailure(err, "find user")
		s.emit("login", start, err)
		return nil, err
	}

	if !s.hasher.Verify(ctx, in.Password, user.PasswordHash) {
		// Verify reports false when ctx ends before derivation; that is not a bad password.
		if abortErr := credentialCheckAborted(ctx); abortErr != nil {
			s.emit("login", start, abortErr)
			return nil, abortErr
		}
		if _, decErr := cryptoutil.DecodeHash(user.PasswordHash); decErr != nil {
			s.logger.WarnContext(ctx, "stored credential hash is malformed", "user_id", user.ID, "error", decErr)
		}
		s.emit("login", start, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, in.Password)
	}

	sess, err := s.issueSession(ctx, user.ID, in.Meta)
	if err != nil {
		s.emit("login", start, err)
		return nil, err
	}

	role, err := s.RoleOf(ctx, user.ID)
	if err != nil {
		// The session is valid; the role is re-read on every authorized request anyway.
		s.logger.WarnContext(ctx, "role lookup failed after login", "user_id", user.ID, "error", err)
	}

	s.record(ctx, user.ID, audit.ActionSignIn, in.Meta)
	s.emit("login", start, nil)
	return &AuthResult{User: user, Role: role, Session: sess}, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := s.hasher.Hash(ctx, password)
	if err == nil {
		err = s.withStore(ctx, func(ctx context.Context) error {
			return s.users.UpdatePasswordHash(ctx, userID, hash)
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", userID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", userID)
}

func (s *AuthService) dummy(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(context.WithoutCancel(ctx), "timing-equalizer-Aa1")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *AuthService) issueSession(ctx context.Context, userID string, meta RequestMeta) (domainauth.Session, error) {
	token, err := cryptoutil.NewIdentifier(s.tokenBytes)
	if err != nil {
		return domainauth.Session{}, err
	}
	in := ports.CreateSessionInput{
		UserID:    userID,
		Token:     token,
		TTL:       s.sessionTTL,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	var sess domainauth.Session
	err = s.withStore(ctx, func(ctx context.Context) error {
		var createErr error
		sess, createErr = s.sessions.Create(ctx, in)
		return createErr
	})
	if err != nil {
		return domainauth.Session{}, storeFailure(err, "create session")
	}
	return sess, nil
}

// Logout deletes the session for token, if any. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string, meta RequestMeta) error {
	start := time.Now()
	if token == "" {
		s.record(ctx, "", audit.ActionSignOut, meta)
		s.emit("logout", start, nil)
		return nil
	}

	var userID string
	err := s.withStore(ctx, func(ctx context.Context) error {
		sess, findErr := s.sessions.FindByToken(ctx, token)
		if findErr == nil {
			userID = sess.UserID
		} else if !apperrors.IsNotFound(findErr) {
			return findErr
		}
		return s.sessions.Delete(ctx, token)
	})
	if err != nil {
		err = storeFailure(err, "delete session")
		s.emit("logout", start, err)
		return err
	}

	s.record(ctx, userID, audit.ActionSignOut, meta)
	s.emit("logout", start, nil)
	return nil
}

// Authenticate resolves token to the owning user's identity. It performs no writes
// and does not read the profile, so the returned Identity has no Role; use RoleOf.
// Unknown, expired or orphaned sessions yield an unauthenticated error; store
// failures yield an unavailable error.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, errUnauthorized
	}

	var sess domainauth.Session
	err := s.withStore(ctx, func(ctx context.Context) error {
		var findErr error
		sess, findErr = s.sessions.FindByToken(ctx, token)
		return findErr
	})
	if apperrors.IsNotFound(err) {
		return domainauth.Identity{}, errUnauthorized
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "session lookup failed", "session", cryptoutil.ShortDigest(token), "error", err)
		return domainauth.Identity{}, apperrors.Unavailable(err, "session store unavailable")
	}
	if !sess.ValidAt(s.clock.Now()) {
		return domainauth.Identity{}, errUnauthorized
	}

	var user domainauth.User
	err = s.withStore(ctx, func(ctx context.Context) error {
		var findErr error
		user, findErr = s.users.FindByID(ctx, sess.UserID)
		return findErr
	})
	if apperrors.IsNotFound(err) {
		return domainauth.Identity{}, errUnauthorized
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "user lookup failed", "session", cryptoutil.ShortDigest(token), "error", err)
		return domainauth.Identity{}, apperrors.Unavailable(err, "user store unavailable")
	}

	return domainauth.Identity{
		UserID:           user.ID,
		Email:            user.Email,
		SessionExpiresAt: sess.ExpiresAt,
	}, nil
}

// RoleOf returns the role of userID, or "" when no profile exists.
func (s *AuthService) RoleOf(ctx context.Context, userID string) (domainauth.Role, error) {
	var role domainauth.Role
	err := s.withStore(ctx, func(ctx context.Context) error {
		var findErr error
		role, findErr = s.profiles.FindRole(ctx, userID)
		return findErr
	})
	if apperrors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Unavailable(err, "profile store unavailable")
	}
	return role, nil
}

// SetRole assigns role to the account registered under email.
func (s *AuthService) SetRole(ctx context.Context, email string, role domainauth.Role) error {
	if !role.Valid() {
		return apperrors.ValidationField("role", "Unknown role: "+string(role))
	}
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	err = s.withStore(ctx, func(ctx context.Context) error {
		return s.profiles.Upsert(ctx, domainauth.Profile{UserID: user.ID, Role: role})
	})
	return storeFailure(err, "set role")
}

// RevokeSessions deletes every session of the account registered under email.
func (s *AuthService) RevokeSessions(ctx context.Context, email string) (int64, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.withStore(ctx, func(ctx context.Context) error {
		var delErr error
		n, delErr = s.sessions.DeleteByUser(ctx, user.ID)
		return delErr
	})
	if err != nil {
		return 0, storeFailure(err, "revoke sessions")
	}
	s.logger.InfoContext(ctx, "sessions revoked", "user_id", user.ID, "count", n)
	return n, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (domainauth.User, error) {
	var user domainauth.User
	err := s.withStore(ctx, func(ctx context.Context) error {
		var findErr error
		user, findErr = s.users.FindByEmail(ctx, email)
		return findErr
	})
	if apperrors.IsNotFound(err) {
		return domainauth.User{}, apperrors.NotFoundf("no account for %s", domainauth.NormalizeEmail(email))
	}
	if err != nil {
		return domainauth.User{}, storeFailure(err, "find user")
	}
	return user, nil
}

// withStore runs fn under the per-call store deadline.
func (s *AuthService) withStore(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

// record writes an audit entry. Failures are logged and never surface to the caller.
func (s *AuthService) record(ctx context.Context, userID string, action audit.Action, meta RequestMeta) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		UserID:       userID,
		Action:       action,
		ResourceType: audit.ResourceAuth,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.withStore(ctx, func(ctx context.Context) error { return s.audit.Record(ctx, entry) }); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", action, "error", err)
	}
}

func (s *AuthService) emit(op string, start time.Time, err error) {
	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case apperrors.IsUnauthenticated(err), apperrors.IsValidation(err), apperrors.IsConflict(err):
		result = metrics.ResultDenied
	default:
		result = metrics.ResultError
	}
	metrics.EmitAuth(s.metrics, metrics.AuthMetric{
		Operation: op,
		Result:    result,
		Duration:  time.Since(start),
		Err:       err,
	})
}

// credentialCheckAborted maps an ended ctx to a timeout or canceled error, else nil.
func credentialCheckAborted(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "credential check timed out")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "credential check canceled")
	}
}

// storeFailure keeps caller-meaningful store errors (conflict, validation, foreign key,
// not found) and reports everything else, deadlines included, as unavailable.
func storeFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeConflict, apperrors.ErrCodeValidation, apperrors.ErrCodeForeignKey, apperrors.ErrCodeNotFound:
		return err
	}
	return apperrors.Unavailable(err, op+": store unavailable")
}
