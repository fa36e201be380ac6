package ports

import (
	"context"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// PollQueryService is the read side used by the status API.
type PollQueryService interface {
	ListPolls(ctx context.Context) (*domain.PollListing, error)
	GetPoll(ctx context.Context, id string) (*domain.PollView, error)
}
