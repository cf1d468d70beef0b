// internal/database/database.go
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-commit-stream/internal/model"
)

// ListCommitsParams filters and pages a commit read. From and To are
// inclusive bounds on the commit timestamp; nil means unbounded.
type ListCommitsParams struct {
	RepoFullName string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// CommitWindow bounds a commit count query the same way.
type CommitWindow struct {
	RepoFullName string
	From         *time.Time
	To           *time.Time
}

// Querier is the storage contract consumed by the cache, the webhook
// ingestor, and the API handlers.
type Querier interface {
	GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error)
	CreateRepository(ctx context.Context, repo model.Repository) error
	UpdateRepositoryLastFetched(ctx context.Context, fullName string, at time.Time) error
	SetRepositoryWebhook(ctx context.Context, fullName string, hookID int64, secret string) error
	ClearRepositoryWebhook(ctx context.Context, fullName string) error
	UpsertCommits(ctx context.Context, commits []model.Commit) (int64, error)
	ListCommits(ctx context.Context, arg ListCommitsParams) ([]model.Commit, error)
	CountCommits(ctx context.Context, arg CommitWindow) (int, error)
}

// TxQuerier adds transactional execution: fn runs against a Querier bound to
// a single transaction, committed iff fn returns nil.
type TxQuerier interface {
	Querier
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store is the pgx-backed Querier.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewStore creates a Store over a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// WithTx runs fn inside a single transaction. Rollback is a no-op once the
// transaction has committed.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
