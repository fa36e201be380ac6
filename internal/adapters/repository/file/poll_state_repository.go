// Package file persists the poll document as a single JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type pollStateRepository struct {
	path string
	mu   sync.Mutex
}

func NewPollStateRepository(path string) ports.PollStateRepository {
	return &pollStateRepository{path: path}
}

// Load returns an empty document when the file does not exist yet. A file
// that exists but does not parse is an error, never silently reset.
func (r *pollStateRepository) Load(_ context.Context) (*domain.PollDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewPollDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read poll state: %w", err)
	}

	doc := domain.NewPollDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode poll state %s: %w", r.path, err)
	}
	if doc.Polls == nil {
		doc.Polls = make(map[string]*domain.PollState)
	}
	return doc, nil
}

func (r *pollStateRepository) Save(_ context.Context, doc *domain.PollDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode poll state: %w", err)
	}
	if err := renameio.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write poll state: %w", err)
	}
	return nil
}
