package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahava-health/ahava-api/config"
	obserrors "github.com/ahava-health/ahava-api/internal/observability/errors"
	"github.com/ahava-health/ahava-api/internal/observability/metrics"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ports"
)

// WindowSweeper drops elapsed rate-limit windows. *ratelimit.FixedWindow satisfies it.
type WindowSweeper interface {
	Sweep() int
}

// SessionReaperOptions groups dependencies for SessionReaper.
type SessionReaperOptions struct {
	Purger  ports.SessionPurger // Optional: nil when sessions expire on their own (Redis)
	Sweeper WindowSweeper       // Optional: in-memory rate limiter
	Config  config.ReaperConfig // Required: reaper configuration
	Clock   Clock               // Optional: defaults to the system clock
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// SessionReaper periodically deletes expired sessions and stale rate-limit windows.
// Expired sessions are already rejected on read; this is storage hygiene only.
type SessionReaper struct {
	purger  ports.SessionPurger
	sweeper WindowSweeper
	config  config.ReaperConfig
	clock   Clock
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewSessionReaper constructs a new SessionReaper.
func NewSessionReaper(opts SessionReaperOptions) (*SessionReaper, error) {
	if opts.Purger == nil && opts.Sweeper == nil {
		return nil, errors.New("session reaper needs a purger or a sweeper")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	if opts.Config.BatchSize <= 0 {
		opts.Config.BatchSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}

	return &SessionReaper{
		purger:  opts.Purger,
		sweeper: opts.Sweeper,
		config:  opts.Config,
		clock:   clock,
		logger:  logger.With("component", "session_reaper"),
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SessionReaper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session reaper",
		"interval", s.config.Interval,
		"batch_size", s.config.BatchSize,
	)

	// Jitter keeps instances that start together from purging in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps a random delay up to 10% of the interval.
func (s *SessionReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// CleanupResult reports one pass of the reaper.
type CleanupResult struct {
	SessionsDeleted int64
	WindowsSwept    int
	Elapsed         time.Duration
}

// RunOnce deletes expired sessions in batches until a batch comes back short, then
// sweeps the limiter.
func (s *SessionReaper) RunOnce(ctx context.Context) (CleanupResult, error) {
	start := time.Now()
	var res CleanupResult

	var purgeErr error
	if s.purger != nil {
		res.SessionsDeleted, purgeErr = s.purgeExpired(ctx)
		if purgeErr != nil {
			purgeErr = fmt.Errorf("delete expired sessions: %w", purgeErr)
		}
	}
	if s.sweeper != nil {
		res.WindowsSwept = s.sweeper.Sweep()
	}
	res.Elapsed = time.Since(start)

	s.emitCleanupMetrics(res, purgeErr)

	if res.SessionsDeleted > 0 || res.WindowsSwept > 0 {
		s.logger.InfoContext(ctx, "session reaper pass complete",
			"sessions_deleted", res.SessionsDeleted,
			"windows_swept", res.WindowsSwept,
			"elapsed", res.Elapsed,
		)
	}
	return res, purgeErr
}

func (s *SessionReaper) purgeExpired(ctx context.Context) (int64, error) {
	var total int64
	cutoff := s.clock.Now()
	for {
		n, err := s.purger.DeleteExpired(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(s.config.BatchSize) {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *SessionReaper) emitCleanupMetrics(res CleanupResult, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil && !isContextCancellation(err):
		result = metrics.ResultError
	case res.SessionsDeleted == 0 && res.WindowsSwept == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if result == metrics.ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("session_reaper.run", 1, tags)
	if res.Elapsed > 0 {
		s.metrics.Timing("session_reaper.duration", res.Elapsed, metrics.CloneTags(tags))
	}
	if res.SessionsDeleted > 0 {
		s.metrics.Count("session_reaper.sessions_deleted", res.SessionsDeleted, nil)
	}
	if res.WindowsSwept > 0 {
		s.metrics.Count("session_reaper.windows_swept", int64(res.WindowsSwept), nil)
	}
	if err == nil {
		s.metrics.Gauge("session_reaper.last_success_epoch", float64(s.clock.Now().Unix()), nil)
	}
}

func (s *SessionReaper) logCleanupError(ctx context.Context, err error, label string) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
