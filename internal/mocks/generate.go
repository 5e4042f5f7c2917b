// Package mocks provides gomock implementations of the auth and rate-limit ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	sessions := mocks.NewMockSessionStore(ctrl)
//	sessions.EXPECT().FindByToken(gomock.Any(), "tok").Return(sess, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/ahava-health/ahava-api/internal/ports SessionStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_purger_mock.go github.com/ahava-health/ahava-api/internal/ports SessionPurger
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_store_mock.go github.com/ahava-health/ahava-api/internal/ports UserStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_store_mock.go github.com/ahava-health/ahava-api/internal/ports ProfileStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_logger_mock.go github.com/ahava-health/ahava-api/internal/ports AuditLogger
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=rate_limiter_mock.go github.com/ahava-health/ahava-api/internal/ports RateLimiter
