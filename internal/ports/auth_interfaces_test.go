package ports_test

import (
	"testing"

	"github.com/ahava-health/ahava-api/internal/adapters/redis"
	"github.com/ahava-health/ahava-api/internal/data"
	"github.com/ahava-health/ahava-api/internal/mocks"
	mockauth "github.com/ahava-health/ahava-api/internal/mocks/auth"
	"github.com/ahava-health/ahava-api/internal/ports"
	"github.com/ahava-health/ahava-api/internal/ratelimit"
)

// This test only verifies that implementations conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.SessionStore = (*mockauth.MemorySessionStore)(nil)
	var _ ports.SessionPurger = (*mockauth.MemorySessionStore)(nil)
	var _ ports.UserStore = (*mockauth.MemoryUserStore)(nil)
	var _ ports.ProfileStore = (*mockauth.MemoryUserStore)(nil)
	var _ ports.AuditLogger = (*mockauth.RecordingAuditLogger)(nil)

	var _ ports.SessionStore = (*mocks.MockSessionStore)(nil)
	var _ ports.UserStore = (*mocks.MockUserStore)(nil)
	var _ ports.ProfileStore = (*mocks.MockProfileStore)(nil)
	var _ ports.AuditLogger = (*mocks.MockAuditLogger)(nil)
	var _ ports.RateLimiter = (*mocks.MockRateLimiter)(nil)

	var _ ports.SessionStore = (*data.SessionRepo)(nil)
	var _ ports.SessionPurger = (*data.SessionRepo)(nil)
	var _ ports.UserStore = (*data.UserRepo)(nil)
	var _ ports.ProfileStore = (*data.UserRepo)(nil)
	var _ ports.AuditLogger = (*data.AuditRepo)(nil)
	var _ ports.AuditReader = (*data.AuditRepo)(nil)
	var _ ports.AccountStats = (*data.UserRepo)(nil)
	var _ ports.AccountCreator = (*data.UserRepo)(nil)
	var _ ports.AccountStats = (*mockauth.MemoryUserStore)(nil)

	var _ ports.SessionStore = (*redis.SessionStore)(nil)
	var _ ports.RateLimiter = (*redis.RateLimitStore)(nil)
	var _ ports.RateLimiter = (*ratelimit.FixedWindow)(nil)
}
