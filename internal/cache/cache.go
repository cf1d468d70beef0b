// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github-commit-stream/internal/apperr"
	"github-commit-stream/internal/database"
	"github-commit-stream/internal/model"
)

// Default number of commits requested per upstream page on a refresh.
const defaultFetchPageSize = 100

// FetchResult is one page of upstream commit history.
type FetchResult struct {
	Commits       []model.Commit
	HasMore       bool
	RateRemaining int
}

// Fetcher retrieves commit history from the upstream hosting API.
type Fetcher interface {
	GetRepository(ctx context.Context, owner, name string) (model.Repository, error)
	FetchPage(ctx context.Context, owner, name string, since, until *time.Time, page, perPage int) (FetchResult, error)
}

// Query selects a window and page of a repository's commits.
type Query struct {
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

// ReadThroughCache answers commit queries from the store, refreshing the
// whole matching window from upstream first whenever the staleness policy
// says the cache cannot be trusted. Concurrent misses for the same
// repository each run their own refresh; the upsert is idempotent so the
// duplicate upstream calls are wasted work, not a correctness problem.
type ReadThroughCache struct {
	db       database.TxQuerier
	fetcher  Fetcher
	policy   StalenessPolicy
	logger   *slog.Logger
	pageSize int
	now      func() time.Time
}

// NewReadThroughCache creates a cache over the given store and fetcher.
// pageSize is the number of commits requested per upstream page on a refresh;
// values <= 0 fall back to the default.
func NewReadThroughCache(db database.TxQuerier, fetcher Fetcher, policy StalenessPolicy, pageSize int, logger *slog.Logger) *ReadThroughCache {
	if pageSize <= 0 {
		pageSize = defaultFetchPageSize
	}
	return &ReadThroughCache{
		db:       db,
		fetcher:  fetcher,
		policy:   policy,
		logger:   logger,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// GetCommits returns one page of commits for the repository, refreshing from
// upstream first if needed. The returned page always comes from the store so
// pagination behaves identically on both paths.
func (c *ReadThroughCache) GetCommits(ctx context.Context, repoFullName string, q Query) (model.CommitPage, error) {
	repo, err := c.db.GetRepositoryByFullName(ctx, repoFullName)
	known := true
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return model.CommitPage{}, &apperr.StorageError{Op: "get repository", Err: err}
		}
		known = false
	}

	if known && !c.policy.IsStale(repo.LastFetchedAt, q.To, c.now()) {
		page, err := c.readPage(ctx, c.db, repoFullName, q)
		if err != nil {
			return model.CommitPage{}, err
		}
		page.ServedFromCache = true
		return page, nil
	}

	rateRemaining, err := c.refresh(ctx, repoFullName, known, q)
	if err != nil {
		return model.CommitPage{}, err
	}

	page, err := c.readPage(ctx, c.db, repoFullName, q)
	if err != nil {
		return model.CommitPage{}, err
	}
	page.RateRemaining = rateRemaining
	return page, nil
}

// refresh pulls the entire matching window from upstream and persists it,
// together with the repository record and its last_fetched_at bump, as one
// transaction.
func (c *ReadThroughCache) refresh(ctx context.Context, repoFullName string, known bool, q Query) (int, error) {
	owner, name, err := splitFullName(repoFullName)
	if err != nil {
		return 0, err
	}
	logger := c.logger.With("owner", owner, "repo", name)
	logger.Info("Cache stale, refreshing from upstream")

	var (
		all           []model.Commit
		rateRemaining int
	)
	for page := 1; ; page++ {
		logger.Debug("Fetching commits page", "page", page)
		res, err := c.fetcher.FetchPage(ctx, owner, name, q.From, q.To, page, c.pageSize)
		if err != nil {
			return 0, err
		}
		all = append(all, res.Commits...)
		rateRemaining = res.RateRemaining
		if !res.HasMore {
			break
		}
	}
	logger.Info("Upstream refresh fetched commits", "count", len(all), "rate_remaining", rateRemaining)

	record := model.Repository{ID: repoFullName, FullName: repoFullName}
	if !known {
		meta, err := c.fetcher.GetRepository(ctx, owner, name)
		if err != nil {
			logger.Warn("Could not fetch repository metadata, storing bare record", "error", err)
		} else {
			record.Description = meta.Description
			record.DefaultBranch = meta.DefaultBranch
			record.PrimaryLanguage = meta.PrimaryLanguage
		}
	}

	fetchedAt := c.now()
	err = c.db.WithTx(ctx, func(tx database.Querier) error {
		if !known {
			if err := tx.CreateRepository(ctx, record); err != nil {
				return err
			}
		}
		if len(all) > 0 {
			if _, err := tx.UpsertCommits(ctx, all); err != nil {
				return err
			}
		}
		return tx.UpdateRepositoryLastFetched(ctx, repoFullName, fetchedAt)
	})
	if err != nil {
		return 0, &apperr.StorageError{Op: "persist refresh", Err: err}
	}
	return rateRemaining, nil
}

func (c *ReadThroughCache) readPage(ctx context.Context, q database.Querier, repoFullName string, query Query) (model.CommitPage, error) {
	total, err := q.CountCommits(ctx, database.CommitWindow{
		RepoFullName: repoFullName,
		From:         query.From,
		To:           query.To,
	})
	if err != nil {
		return model.CommitPage{}, &apperr.StorageError{Op: "count commits", Err: err}
	}

	commits, err := q.ListCommits(ctx, database.ListCommitsParams{
		RepoFullName: repoFullName,
		From:         query.From,
		To:           query.To,
		Limit:        query.Limit,
		Offset:       (query.Page - 1) * query.Limit,
	})
	if err != nil {
		return model.CommitPage{}, &apperr.StorageError{Op: "list commits", Err: err}
	}

	return model.CommitPage{
		Commits: commits,
		Total:   total,
		Page:    query.Page,
		HasMore: query.Page*query.Limit < total,
	}, nil
}

func splitFullName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &apperr.ErrInvalidRepoFormat{Repo: fullName}
	}
	return parts[0], parts[1], nil
}
