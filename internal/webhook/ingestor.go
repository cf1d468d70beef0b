// internal/webhook/ingestor.go
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github-commit-stream/internal/apperr"
	"github-commit-stream/internal/database"
	"github-commit-stream/internal/language"
	"github-commit-stream/internal/livebus"
	"github-commit-stream/internal/model"
)

// Broadcaster fans newly ingested commits out to live subscribers.
type Broadcaster interface {
	Broadcast(channelKey string, commits []model.Commit)
}

// Result is the outcome of a successfully handled delivery. Message is set
// for ping and ignored events, Processed for push events.
type Result struct {
	Message   string
	Processed int
}

// Ingestor authenticates and applies inbound push notifications.
type Ingestor struct {
	db     database.TxQuerier
	bus    Broadcaster
	mapper model.ParamsMapper
	logger *slog.Logger
}

// NewIngestor creates an Ingestor over the given store and bus.
func NewIngestor(db database.TxQuerier, bus Broadcaster, mapper model.ParamsMapper, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		db:     db,
		bus:    bus,
		mapper: mapper,
		logger: logger,
	}
}

type pushPayload struct {
	Repository *struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []pushCommit `json:"commits"`
}

type pushCommit struct {
	ID        string   `json:"id"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	Author    struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Ingest runs the delivery through its validation gates in order, then
// persists and broadcasts the pushed commits. Nothing is persisted or
// broadcast unless every gate before it passed.
func (in *Ingestor) Ingest(ctx context.Context, rawBody []byte, event, signature string) (Result, error) {
	if len(rawBody) == 0 {
		return Result{}, &apperr.InputError{Reason: "empty request body"}
	}

	var payload pushPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return Result{}, &apperr.InputError{Reason: "malformed JSON body"}
	}
	if payload.Repository == nil || payload.Repository.FullName == "" {
		return Result{}, &apperr.InputError{Reason: "payload missing repository.full_name"}
	}
	fullName := payload.Repository.FullName

	repo, err := in.db.GetRepositoryByFullName(ctx, fullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, &apperr.AuthError{Reason: "no webhook registered for repository"}
		}
		return Result{}, &apperr.StorageError{Op: "get repository", Err: err}
	}
	if repo.WebhookID == nil || repo.WebhookSecret == nil || *repo.WebhookSecret == "" {
		return Result{}, &apperr.AuthError{Reason: "no webhook registered for repository"}
	}

	if signature == "" {
		return Result{}, &apperr.AuthError{Reason: "missing signature header"}
	}
	if !verifySignature(rawBody, *repo.WebhookSecret, signature) {
		in.logger.Warn("Webhook signature mismatch", "repo", fullName, "event", event)
		return Result{}, &apperr.AuthError{Reason: "signature mismatch"}
	}

	switch event {
	case "ping":
		return Result{Message: "pong"}, nil
	case "push":
	default:
		in.logger.Info("Ignoring webhook event", "repo", fullName, "event", event)
		return Result{Message: "ignored: " + event}, nil
	}

	if len(payload.Commits) == 0 {
		return Result{Processed: 0}, nil
	}

	commits, err := in.mapCommits(fullName, payload.Commits)
	if err != nil {
		return Result{}, err
	}

	// One transaction for the whole delivery: either every pushed commit is
	// persisted or none are.
	err = in.db.WithTx(ctx, func(tx database.Querier) error {
		_, err := tx.UpsertCommits(ctx, commits)
		return err
	})
	if err != nil {
		return Result{}, &apperr.StorageError{Op: "upsert commits", Err: err}
	}

	in.bus.Broadcast(livebus.ChannelKey(fullName), commits)
	in.logger.Info("Ingested push", "repo", fullName, "commits", len(commits))
	return Result{Processed: len(commits)}, nil
}

// mapCommits translates push payload entries into canonical commits. Webhook
// payloads carry file lists but no line-level diff or check-run data, so the
// stats are file-list cardinalities, every file weighs 1 in the language
// breakdown, and the CI status is unknown.
func (in *Ingestor) mapCommits(fullName string, raw []pushCommit) ([]model.Commit, error) {
	commits := make([]model.Commit, len(raw))
	for i, rc := range raw {
		if rc.ID == "" {
			return nil, &apperr.InputError{Reason: fmt.Sprintf("commit at index %d missing id", i)}
		}
		ts, err := time.Parse(time.RFC3339, rc.Timestamp)
		if err != nil {
			return nil, &apperr.InputError{Reason: fmt.Sprintf("commit %s has invalid timestamp %q", rc.ID, rc.Timestamp)}
		}

		author := rc.Author.Username
		if author == "" {
			author = rc.Author.Name
		}

		touched := make([]language.WeightedFile, 0, len(rc.Added)+len(rc.Removed)+len(rc.Modified))
		for _, group := range [][]string{rc.Added, rc.Removed, rc.Modified} {
			for _, f := range group {
				touched = append(touched, language.WeightedFile{Name: f, Changes: 1})
			}
		}
		languages, primary := language.Breakdown(touched)

		commit := model.Commit{
			SHA:             rc.ID,
			RepoFullName:    fullName,
			Timestamp:       ts,
			Author:          author,
			Message:         rc.Message,
			Additions:       len(rc.Added) + len(rc.Modified),
			Deletions:       len(rc.Removed),
			FilesChanged:    len(rc.Added) + len(rc.Removed) + len(rc.Modified),
			PrimaryLanguage: primary,
			Languages:       languages,
			CIStatus:        model.CIUnknown,
		}
		commit.MusicParams = in.mapper.Map(commit)
		commits[i] = commit
	}
	return commits, nil
}

func verifySignature(body []byte, secret, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
