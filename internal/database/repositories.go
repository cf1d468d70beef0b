// internal/database/repositories.go
package database

import (
	"context"
	"time"

	"github-commit-stream/internal/model"
)

const getRepositoryByFullName = `
SELECT id, full_name, description, default_branch, primary_language,
       webhook_id, webhook_secret, last_fetched_at
FROM repositories
WHERE full_name = $1
`

func (s *Store) GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	var repo model.Repository
	err := s.db.QueryRow(ctx, getRepositoryByFullName, fullName).Scan(
		&repo.ID,
		&repo.FullName,
		&repo.Description,
		&repo.DefaultBranch,
		&repo.PrimaryLanguage,
		&repo.WebhookID,
		&repo.WebhookSecret,
		&repo.LastFetchedAt,
	)
	return repo, err
}

const createRepository = `
INSERT INTO repositories (id, full_name, description, default_branch, primary_language, last_fetched_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING
`

const updateRepositoryMetadata = `
UPDATE repositories
SET description      = COALESCE($2, description),
    default_branch   = COALESCE($3, default_branch),
    primary_language = COALESCE($4, primary_language),
    updated_at       = now()
WHERE full_name = $1
`

// CreateRepository inserts the repository record, or refreshes its metadata
// when another request created it first. The bare ON CONFLICT target absorbs
// a unique violation on either the id or the full name, so racing cold-miss
// refreshes cannot fail each other.
func (s *Store) CreateRepository(ctx context.Context, repo model.Repository) error {
	tag, err := s.db.Exec(ctx, createRepository,
		repo.ID,
		repo.FullName,
		repo.Description,
		repo.DefaultBranch,
		repo.PrimaryLanguage,
		repo.LastFetchedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = s.db.Exec(ctx, updateRepositoryMetadata,
		repo.FullName,
		repo.Description,
		repo.DefaultBranch,
		repo.PrimaryLanguage,
	)
	return err
}

const updateRepositoryLastFetched = `
UPDATE repositories
SET last_fetched_at = GREATEST($2, last_fetched_at), updated_at = now()
WHERE full_name = $1
`

// UpdateRepositoryLastFetched records a completed upstream refresh. GREATEST
// keeps last_fetched_at monotonically non-decreasing when refreshes race.
func (s *Store) UpdateRepositoryLastFetched(ctx context.Context, fullName string, at time.Time) error {
	_, err := s.db.Exec(ctx, updateRepositoryLastFetched, fullName, at)
	return err
}

const setRepositoryWebhook = `
UPDATE repositories
SET webhook_id = $2, webhook_secret = $3, updated_at = now()
WHERE full_name = $1
`

func (s *Store) SetRepositoryWebhook(ctx context.Context, fullName string, hookID int64, secret string) error {
	_, err := s.db.Exec(ctx, setRepositoryWebhook, fullName, hookID, secret)
	return err
}

const clearRepositoryWebhook = `
UPDATE repositories
SET webhook_id = NULL, webhook_secret = NULL, updated_at = now()
WHERE full_name = $1
`

func (s *Store) ClearRepositoryWebhook(ctx context.Context, fullName string) error {
	_, err := s.db.Exec(ctx, clearRepositoryWebhook, fullName)
	return err
}
