// internal/database/commits.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github-commit-stream/internal/model"
)

const upsertCommit = `
INSERT INTO commits (sha, repo_full_name, committed_at, author, message,
                     additions, deletions, files_changed,
                     primary_language, languages, ci_status, music_params)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (sha) DO UPDATE SET
    repo_full_name   = EXCLUDED.repo_full_name,
    committed_at     = EXCLUDED.committed_at,
    author           = EXCLUDED.author,
    message          = EXCLUDED.message,
    additions        = EXCLUDED.additions,
    deletions        = EXCLUDED.deletions,
    files_changed    = EXCLUDED.files_changed,
    primary_language = EXCLUDED.primary_language,
    languages        = EXCLUDED.languages,
    ci_status        = EXCLUDED.ci_status,
    music_params     = EXCLUDED.music_params
`

// UpsertCommits writes all commits in a single batched round trip, replacing
// any existing row with the same sha. Re-ingesting a delivery is therefore
// idempotent. Run it through WithTx when the batch must be all-or-nothing.
func (s *Store) UpsertCommits(ctx context.Context, commits []model.Commit) (int64, error) {
	batch := &pgx.Batch{}
	for _, c := range commits {
		languages, err := marshalNullable(c.Languages)
		if err != nil {
			return 0, err
		}
		batch.Queue(upsertCommit,
			c.SHA,
			c.RepoFullName,
			c.Timestamp,
			c.Author,
			c.Message,
			c.Additions,
			c.Deletions,
			c.FilesChanged,
			c.PrimaryLanguage,
			languages,
			string(c.CIStatus),
			[]byte(c.MusicParams),
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	var n int64
	for range commits {
		tag, err := results.Exec()
		if err != nil {
			return n, err
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

const listCommits = `
SELECT sha, repo_full_name, committed_at, author, message,
       additions, deletions, files_changed,
       primary_language, languages, ci_status, music_params
FROM commits
WHERE repo_full_name = $1
  AND ($2::timestamptz IS NULL OR committed_at >= $2)
  AND ($3::timestamptz IS NULL OR committed_at <= $3)
ORDER BY committed_at DESC, sha
LIMIT $4 OFFSET $5
`

func (s *Store) ListCommits(ctx context.Context, arg ListCommitsParams) ([]model.Commit, error) {
	rows, err := s.db.Query(ctx, listCommits,
		arg.RepoFullName, arg.From, arg.To, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		var (
			c         model.Commit
			languages []byte
			params    []byte
			status    string
		)
		err := rows.Scan(
			&c.SHA,
			&c.RepoFullName,
			&c.Timestamp,
			&c.Author,
			&c.Message,
			&c.Additions,
			&c.Deletions,
			&c.FilesChanged,
			&c.PrimaryLanguage,
			&languages,
			&status,
			&params,
		)
		if err != nil {
			return nil, err
		}
		c.CIStatus = model.CIStatus(status)
		if len(languages) > 0 {
			if err := json.Unmarshal(languages, &c.Languages); err != nil {
				return nil, fmt.Errorf("decode languages for commit %s: %w", c.SHA, err)
			}
		}
		if len(params) > 0 {
			c.MusicParams = json.RawMessage(params)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

const countCommits = `
SELECT count(*)
FROM commits
WHERE repo_full_name = $1
  AND ($2::timestamptz IS NULL OR committed_at >= $2)
  AND ($3::timestamptz IS NULL OR committed_at <= $3)
`

func (s *Store) CountCommits(ctx context.Context, arg CommitWindow) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, countCommits, arg.RepoFullName, arg.From, arg.To).Scan(&n)
	return n, err
}

func marshalNullable(m map[string]int) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
