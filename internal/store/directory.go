package store

import (
	"context"

	"github.com/google/uuid"

	"psychbook/backend/internal/domain"
)

// ProviderDirectory answers role questions about host users. The engine
// resolves roles once per operation and carries them as capabilities.
type ProviderDirectory interface {
	IsProvider(ctx context.Context, userID uuid.UUID) (bool, error)
	IsAdministrator(ctx context.Context, userID uuid.UUID) (bool, error)
}

type SessionTypeCatalog interface {
	GetSessionType(ctx context.Context, id uuid.UUID) (domain.SessionType, error)
	ListSessionTypes(ctx context.Context) ([]domain.SessionType, error)
}
