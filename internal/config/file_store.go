package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

// document is the on-disk identities file. JSON files parse through the
// YAML decoder as well.
type document struct {
	PollChannelURL string            `yaml:"pollChannelUrl"`
	Accounts       []domain.Identity `yaml:"accounts"`
	OperatorNumber string            `yaml:"wa_admin"`
	Display        string            `yaml:"display"`
}

// FileStore reads settings from the identities document and writes
// credentials back into it. The file is re-read on every call so edits made
// between cycles take effect.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

var (
	_ ports.SettingsSource  = (*FileStore)(nil)
	_ ports.CredentialStore = (*FileStore)(nil)
)

func (s *FileStore) Settings(_ context.Context) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.PollChannelURL == "" {
		return nil, fmt.Errorf("%w: pollChannelUrl", domain.ErrConfigMissingField)
	}
	channelID, err := ChannelID(doc.PollChannelURL)
	if err != nil {
		return nil, err
	}

	return &domain.Settings{
		ChannelID:       channelID,
		Identities:      doc.Accounts,
		OperatorAddress: doc.OperatorNumber,
		Headless:        !strings.EqualFold(strings.TrimSpace(doc.Display), "on"),
	}, nil
}

func (s *FileStore) GetCredential(_ context.Context, identityID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	for _, acc := range doc.Accounts {
		if acc.ID == identityID {
			return acc.Credential, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrIdentityNotFound, identityID)
}

// SetCredential rewrites the document with the new credential. Fields this
// package does not know about are kept.
func (s *FileStore) SetCredential(_ context.Context, identityID, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if !setAccountField(tree, identityID, "authToken", credential) {
		return fmt.Errorf("%w: %s", domain.ErrIdentityNotFound, identityID)
	}

	out, err := s.encode(tree)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.path, err)
	}
	perm := os.FileMode(0o600)
	if info, err := os.Stat(s.path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := renameio.WriteFile(s.path, out, perm); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}

	s.logger.Debug("stored credential", "identity", identityID, "path", s.path)
	return nil
}

func (s *FileStore) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *FileStore) encode(tree map[string]any) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(tree); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func setAccountField(tree map[string]any, identityID, key, value string) bool {
	accounts, ok := tree["accounts"].([]any)
	if !ok {
		return false
	}
	for _, a := range accounts {
		acc, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := acc["accountName"].(string); name == identityID {
			acc[key] = value
			return true
		}
	}
	return false
}

// ChannelID returns the last non-empty path segment of a channel URL.
func ChannelID(channelURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(channelURL))
	if err != nil {
		return "", fmt.Errorf("invalid pollChannelUrl: %w", err)
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i], nil
		}
	}
	return "", errors.New("pollChannelUrl has no channel id")
}
