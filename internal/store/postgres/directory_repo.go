package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/store"
)

type DirectoryRepo struct {
	db *bun.DB
}

func NewDirectoryRepo(db *bun.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) IsProvider(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.hasRole(ctx, userID, domain.RolePsychologist)
}

func (r *DirectoryRepo) IsAdministrator(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.hasRole(ctx, userID, domain.RoleAdmin)
}

func (r *DirectoryRepo) hasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.User)(nil)).
		Where("id = ?", userID).
		Where("role = ?", role).
		Exists(ctx)
}

type SessionTypeRepo struct {
	db *bun.DB
}

func NewSessionTypeRepo(db *bun.DB) *SessionTypeRepo {
	return &SessionTypeRepo{db: db}
}

func (r *SessionTypeRepo) GetSessionType(ctx context.Context, id uuid.UUID) (domain.SessionType, error) {
	var st domain.SessionType
	err := r.db.NewSelect().
		Model(&st).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionType{}, store.ErrNotFound
		}
		return domain.SessionType{}, err
	}
	return st, nil
}

func (r *SessionTypeRepo) ListSessionTypes(ctx context.Context) ([]domain.SessionType, error) {
	var rows []domain.SessionType
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
