package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

// ProviderRepository reads the provider directory.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository constructs the repository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// FindByID returns a provider profile or sql.ErrNoRows.
func (r *ProviderRepository) FindByID(ctx context.Context, id string) (*models.Provider, error) {
	const query = `SELECT id, display_name, timezone, equipment, updated_at FROM providers WHERE id = $1`
	var provider models.Provider
	if err := r.db.GetContext(ctx, &provider, query, id); err != nil {
		return nil, err
	}
	return &provider, nil
}

// ListIDs returns every provider id.
func (r *ProviderRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM providers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list provider ids: %w", err)
	}
	return ids, nil
}
