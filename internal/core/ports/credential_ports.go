package ports

import (
	"context"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// CredentialStore is the durable identity-id to credential mapping. An empty
// credential means none is stored.
type CredentialStore interface {
	GetCredential(ctx context.Context, identityID string) (string, error)
	SetCredential(ctx context.Context, identityID, credential string) error
}

// LoginProvider obtains a fresh credential for an identity, typically by
// driving an interactive login page. Implementations return an error
// wrapping domain.ErrLoginFailed when no credential was captured.
type LoginProvider interface {
	Login(ctx context.Context, identity domain.Identity) (string, error)
}

type SessionManager interface {
	EnsureCredential(ctx context.Context, identity domain.Identity) (string, error)
	// Invalidate drops the stored credential and acquires a new one.
	Invalidate(ctx context.Context, identity domain.Identity) (string, error)
}
