package coordinator

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/stacklok/loresync/internal/config"
)

const (
	// defaultInterval applies when no valid interval is configured.
	defaultInterval = time.Hour
	// jitterFraction is the maximum relative offset applied to an interval.
	jitterFraction = 0.1
)

// getSyncInterval extracts the run interval from the schedule configuration
func getSyncInterval(schedule *config.ScheduleConfig) time.Duration {
	if schedule != nil && schedule.Interval != "" {
		if interval := schedule.GetInterval(); interval > 0 {
			return interval
		}
		slog.Warn("Invalid sync interval, using default",
			"interval", schedule.Interval,
			"default", defaultInterval)
	}
	return defaultInterval
}

// withJitter returns base moved by a random offset of at most ±10%.
func withJitter(base time.Duration) time.Duration {
	spread := int64(float64(base) * jitterFraction)
	if spread <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(2*spread+1) - spread)
	return base + offset
}
