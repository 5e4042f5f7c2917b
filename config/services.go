package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeSessionReaper runs periodic deletion of expired sessions.
	ServiceModeSessionReaper ServiceMode = "session-reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeSessionReaper,
	}
}

// ParseServices parses a comma-delimited list such as "http,session-reaper".
// Blank entries and duplicates are ignored; unknown names are an error.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	valid := ValidServiceModes()
	services := make(map[ServiceMode]bool, len(valid))

	for part := range strings.SplitSeq(servicesStr, ",") {
		mode := ServiceMode(strings.TrimSpace(part))
		if mode == "" {
			continue
		}
		if !slices.Contains(valid, mode) {
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", mode, joinModes(valid))
		}
		services[mode] = true
	}

	if len(services) == 0 {
		return nil, errors.New("at least one service must be specified")
	}
	return services, nil
}

func joinModes(modes []ServiceMode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// ReaperConfig contains session reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`

	// BatchSize is the maximum number of sessions deleted per statement.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
