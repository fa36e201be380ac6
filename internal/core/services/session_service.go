package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type sessionService struct {
	store  ports.CredentialStore
	login  ports.LoginProvider
	now    func() time.Time
	logger *slog.Logger
}

func NewSessionService(store ports.CredentialStore, login ports.LoginProvider, logger *slog.Logger) ports.SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{
		store:  store,
		login:  login,
		now:    time.Now,
		logger: logger,
	}
}

// EnsureCredential returns the stored credential without probing it. Only
// tokens that carry a readable, already-past expiry are replaced eagerly.
func (s *sessionService) EnsureCredential(ctx context.Context, identity domain.Identity) (string, error) {
	credential, err := s.store.GetCredential(ctx, identity.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read credential for %s: %w", identity.ID, err)
	}

	if credential != "" && !s.expired(credential) {
		return credential, nil
	}

	if credential == "" {
		s.logger.Warn("no stored credential, logging in", "identity", identity.ID)
	} else {
		s.logger.Warn("stored credential expired, logging in", "identity", identity.ID)
	}
	return s.acquire(ctx, identity)
}

func (s *sessionService) Invalidate(ctx context.Context, identity domain.Identity) (string, error) {
	s.logger.Warn("credential rejected, logging in again", "identity", identity.ID)
	if err := s.store.SetCredential(ctx, identity.ID, ""); err != nil {
		s.logger.Error("failed to clear credential", "identity", identity.ID, "error", err)
	}
	return s.acquire(ctx, identity)
}

func (s *sessionService) acquire(ctx context.Context, identity domain.Identity) (string, error) {
	credential, err := s.login.Login(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrLoginFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrLoginFailed, identity.ID, err)
	}
	if credential == "" {
		return "", fmt.Errorf("%w: %s: empty credential", domain.ErrLoginFailed, identity.ID)
	}

	// The credential is still usable this cycle even if it cannot be stored.
	if err := s.store.SetCredential(ctx, identity.ID, credential); err != nil {
		s.logger.Error("failed to store credential", "identity", identity.ID, "error", err)
	} else {
		s.logger.Info("stored new credential", "identity", identity.ID)
	}
	return credential, nil
}

func (s *sessionService) expired(credential string) bool {
	token, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(s.now())
}
