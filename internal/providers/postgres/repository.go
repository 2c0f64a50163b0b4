// Package postgres provides the PostgreSQL implementation of the provider
// status store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/providers"
)

// Repository implements providers.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertStatus inserts or replaces the status row for a provider.
func (r *Repository) UpsertStatus(ctx context.Context, status *domain.ProviderStatus) error {
	query := `
		INSERT INTO provider_status (provider, status, last_checked_at, details)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider) DO UPDATE
		SET status = EXCLUDED.status,
		    last_checked_at = EXCLUDED.last_checked_at,
		    details = EXCLUDED.details
	`
	_, err := r.db.Exec(ctx, query,
		status.Provider,
		status.Status,
		status.LastCheckedAt,
		status.Details,
	)
	if err != nil {
		return fmt.Errorf("upsert provider status: %w", err)
	}
	return nil
}

// GetStatus retrieves the status of one provider.
func (r *Repository) GetStatus(ctx context.Context, provider string) (*domain.ProviderStatus, error) {
	query := `
		SELECT provider, status, last_checked_at, details
		FROM provider_status
		WHERE provider = $1
	`
	var status domain.ProviderStatus
	err := r.db.QueryRow(ctx, query, provider).Scan(
		&status.Provider,
		&status.Status,
		&status.LastCheckedAt,
		&status.Details,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, providers.ErrProviderNotFound
		}
		return nil, fmt.Errorf("get provider status: %w", err)
	}
	return &status, nil
}

// ListStatuses returns every tracked provider status.
func (r *Repository) ListStatuses(ctx context.Context) ([]domain.ProviderStatus, error) {
	query := `
		SELECT provider, status, last_checked_at, details
		FROM provider_status
		ORDER BY provider
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list provider statuses: %w", err)
	}
	defer rows.Close()

	statuses := make([]domain.ProviderStatus, 0)
	for rows.Next() {
		var status domain.ProviderStatus
		err := rows.Scan(
			&status.Provider,
			&status.Status,
			&status.LastCheckedAt,
			&status.Details,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provider status: %w", err)
		}
		statuses = append(statuses, status)
	}

	return statuses, rows.Err()
}
