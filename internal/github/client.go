// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github-commit-stream/internal/apperr"
	"github-commit-stream/internal/cache"
	"github-commit-stream/internal/language"
	"github-commit-stream/internal/model"
)

// Number of commits enriched (diff stats + check runs) in parallel per page.
const enrichConcurrency = 5

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	mapper model.ParamsMapper
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, mapper model.ParamsMapper, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		mapper: mapper,
		logger: logger,
	}
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (model.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return model.Repository{}, wrapUpstream(resp, err)
	}
	return model.Repository{
		ID:              repo.GetFullName(),
		FullName:        repo.GetFullName(),
		Description:     repo.Description,
		DefaultBranch:   repo.DefaultBranch,
		PrimaryLanguage: repo.Language,
	}, nil
}

// FetchPage fetches one page of a repository's commit history within the
// given window and enriches every commit with diff stats, a per-language
// change breakdown, and a collapsed CI status. HasMore is true exactly when
// the upstream returned a full page.
func (c *Client) FetchPage(ctx context.Context, owner, name string, since, until *time.Time, page, perPage int) (cache.FetchResult, error) {
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	if since != nil {
		opts.Since = *since
	}
	if until != nil {
		opts.Until = *until
	}

	c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", page)
	raw, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		return cache.FetchResult{}, wrapUpstream(resp, err)
	}

	commits := make([]model.Commit, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, rc := range raw {
		g.Go(func() error {
			enriched, err := c.enrichCommit(gctx, owner, name, rc)
			if err != nil {
				return err
			}
			commits[i] = enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cache.FetchResult{}, err
	}

	return cache.FetchResult{
		Commits:       commits,
		HasMore:       len(raw) == perPage,
		RateRemaining: resp.Rate.Remaining,
	}, nil
}

// enrichCommit fills in the fields the commit list endpoint does not carry:
// line-level diff stats, the per-language breakdown, and the CI status.
func (c *Client) enrichCommit(ctx context.Context, owner, name string, rc *github.RepositoryCommit) (model.Commit, error) {
	commit := model.Commit{
		SHA:          rc.GetSHA(),
		RepoFullName: owner + "/" + name,
		Timestamp:    rc.GetCommit().GetAuthor().GetDate().Time,
		Author:       resolveAuthor(rc),
		Message:      rc.GetCommit().GetMessage(),
	}

	detail, resp, err := c.gh.Repositories.GetCommit(ctx, owner, name, commit.SHA, nil)
	if err != nil {
		return model.Commit{}, wrapUpstream(resp, err)
	}
	commit.Additions = detail.GetStats().GetAdditions()
	commit.Deletions = detail.GetStats().GetDeletions()
	commit.FilesChanged = len(detail.Files)

	files := make([]language.WeightedFile, len(detail.Files))
	for i, f := range detail.Files {
		files[i] = language.WeightedFile{Name: f.GetFilename(), Changes: f.GetChanges()}
	}
	commit.Languages, commit.PrimaryLanguage = language.Breakdown(files)

	commit.CIStatus, err = c.checkStatus(ctx, owner, name, commit.SHA)
	if err != nil {
		return model.Commit{}, err
	}

	commit.MusicParams = c.mapper.Map(commit)
	return commit, nil
}

// checkStatus collapses the commit's check runs into a single CI status.
// Any failed, timed-out, or cancelled run wins; otherwise any queued or
// in-progress run means pending; no runs at all means unknown.
func (c *Client) checkStatus(ctx context.Context, owner, name, sha string) (model.CIStatus, error) {
	runs, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, owner, name, sha, nil)
	if err != nil {
		return model.CIUnknown, wrapUpstream(resp, err)
	}
	if runs.GetTotal() == 0 {
		return model.CIUnknown, nil
	}

	pending := false
	for _, run := range runs.CheckRuns {
		switch run.GetConclusion() {
		case "failure", "timed_out", "cancelled":
			return model.CIFail, nil
		}
		switch run.GetStatus() {
		case "queued", "in_progress":
			pending = true
		}
	}
	if pending {
		return model.CIPending, nil
	}
	return model.CIPass, nil
}

// resolveAuthor prefers the GitHub login of the resolved user and falls back
// to the name recorded on the commit itself.
func resolveAuthor(rc *github.RepositoryCommit) string {
	if login := rc.GetAuthor().GetLogin(); login != "" {
		return login
	}
	return rc.GetCommit().GetAuthor().GetName()
}

func wrapUpstream(resp *github.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	return &apperr.UpstreamError{StatusCode: status, Err: err}
}
