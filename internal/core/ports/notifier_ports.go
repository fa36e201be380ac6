package ports

import (
	"context"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

type Notifier interface {
	NotifyVote(ctx context.Context, notice domain.VoteNotice) error
	NotifySummary(ctx context.Context, operatorAddress string, summary *domain.CycleSummary) error
}
