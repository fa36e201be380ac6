package ports

import (
	"context"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// PollGateway talks to the remote API on behalf of a single credential per
// call. It performs network I/O only.
type PollGateway interface {
	ListRecentItems(ctx context.Context, credential, channelID string) ([]domain.PollItem, error)
	ListRespondents(ctx context.Context, credential, channelID, pollID, answerID string) (domain.RespondentSet, error)
	SubmitVote(ctx context.Context, credential, channelID, pollID, answerID string) error
}
