package notifier

import (
	"context"
	"log/slog"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

// LogNotifier writes notifications to a structured logger. It is the
// fallback when no delivery channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

var _ ports.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) NotifyVote(_ context.Context, notice domain.VoteNotice) error {
	n.logger.Info("vote cast",
		"identity", notice.Identity,
		"to", notice.NotifyAddress,
		"question", notice.Question,
		"answer", notice.Answer,
	)
	return nil
}

func (n *LogNotifier) NotifySummary(_ context.Context, operatorAddress string, s *domain.CycleSummary) error {
	n.logger.Info("cycle summary",
		"cycle_id", s.CycleID,
		"to", operatorAddress,
		"early_exit", s.EarlyExit,
		"new_polls", s.NewPolls,
		"active_polls", s.ActivePolls,
		"voted", s.Voted,
		"already_on_majority", s.AlreadyOnMajority,
		"already_off_majority", s.AlreadyOffMajority,
		"vote_failed", domain.Names(s.VoteFailed),
		"skipped", domain.Names(s.SkippedConfig),
		"token_failed", domain.Names(s.TokenFailed),
	)
	return nil
}
