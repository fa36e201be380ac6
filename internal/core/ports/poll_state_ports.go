package ports

import (
	"context"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// PollStateRepository persists the whole poll document. Save must replace
// the stored document atomically.
type PollStateRepository interface {
	Load(ctx context.Context) (*domain.PollDocument, error)
	Save(ctx context.Context, doc *domain.PollDocument) error
}
