package notifier

import (
	"context"
	"errors"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

// Multi fans every notification out to all notifiers. One failing notifier
// does not stop the others; their errors are joined.
type Multi []ports.Notifier

var _ ports.Notifier = Multi(nil)

func (m Multi) NotifyVote(ctx context.Context, notice domain.VoteNotice) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyVote(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifySummary(ctx context.Context, operatorAddress string, s *domain.CycleSummary) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifySummary(ctx, operatorAddress, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
