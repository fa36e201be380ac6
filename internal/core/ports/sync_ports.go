package ports

import (
	"context"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// SettingsSource yields the current settings; it is consulted once per cycle.
type SettingsSource interface {
	Settings(ctx context.Context) (*domain.Settings, error)
}

// Sleeper pauses between throttled steps. It returns early with ctx.Err()
// when ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SyncService interface {
	RunCycle(ctx context.Context) (*domain.CycleSummary, error)
}

// SummaryReader exposes the last finished cycle to the status API.
type SummaryReader interface {
	LastSummary() *domain.CycleSummary
}
