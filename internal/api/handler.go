// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"github-commit-stream/internal/apperr"
	"github-commit-stream/internal/cache"
	"github-commit-stream/internal/database"
	gh "github-commit-stream/internal/github"
	"github-commit-stream/internal/livebus"
	"github-commit-stream/internal/model"
	"github-commit-stream/internal/webhook"
)

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
)

// CommitReader answers paginated commit queries, refreshing from upstream as
// needed.
type CommitReader interface {
	GetCommits(ctx context.Context, repoFullName string, q cache.Query) (model.CommitPage, error)
}

// Ingestor applies an inbound webhook delivery.
type Ingestor interface {
	Ingest(ctx context.Context, rawBody []byte, event, signature string) (webhook.Result, error)
}

// HookManager manages the upstream webhook registration.
type HookManager interface {
	RegisterWebhook(ctx context.Context, owner, name, callbackURL string) (int64, string, error)
	RemoveWebhook(ctx context.Context, owner, name string, hookID int64) error
}

// Handler is the container for API dependencies.
type Handler struct {
	db          database.Querier
	reader      CommitReader
	ingestor    Ingestor
	hooks       HookManager
	bus         *livebus.Bus
	callbackURL string
	heartbeat   time.Duration
	logger      *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db database.Querier, reader CommitReader, ingestor Ingestor, hooks HookManager, bus *livebus.Bus, callbackURL string, heartbeat time.Duration, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:          db,
		reader:      reader,
		ingestor:    ingestor,
		hooks:       hooks,
		bus:         bus,
		callbackURL: callbackURL,
		heartbeat:   heartbeat,
		logger:      logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Post("/webhooks/github", h.handleWebhook)
	r.Route("/v1/repos/{owner}/{name}", func(r chi.Router) {
		r.With(middleware.Timeout(60 * time.Second)).Get("/commits", h.getCommits)
		r.Get("/live", h.handleLive)
		r.With(middleware.Timeout(30 * time.Second)).Post("/webhook", h.registerWebhook)
		r.With(middleware.Timeout(30 * time.Second)).Delete("/webhook", h.removeWebhook)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getCommits handles the polling read for a repository window.
// GET /v1/repos/{owner}/{name}/commits?from=&to=&page=&limit=
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	repoFullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")

	q, err := parseCommitQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.reader.GetCommits(r.Context(), repoFullName, q)
	if err != nil {
		h.respondCommitError(w, repoFullName, err)
		return
	}

	// CommitPage keeps ServedFromCache and RateRemaining out of the JSON.
	commits := page.Commits
	if commits == nil {
		commits = []model.Commit{}
	}
	respondWithJSON(w, http.StatusOK, model.CommitPage{
		Commits: commits,
		Total:   page.Total,
		Page:    page.Page,
		HasMore: page.HasMore,
	})
}

func (h *Handler) respondCommitError(w http.ResponseWriter, repo string, err error) {
	var inputErr *apperr.InputError
	var upstreamErr *apperr.UpstreamError
	var formatErr *apperr.ErrInvalidRepoFormat
	switch {
	case errors.As(err, &inputErr), errors.As(err, &formatErr):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstreamErr):
		h.logger.Error("Upstream fetch failed", "repo", repo, "error", err)
		code := http.StatusBadGateway
		if upstreamErr.StatusCode != 0 {
			code = upstreamErr.StatusCode
		}
		respondWithError(w, code, "Upstream API error")
	default:
		h.logger.Error("Failed to get commits", "repo", repo, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// handleWebhook accepts inbound push notifications.
// POST /webhooks/github
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	event := r.Header.Get("X-Event-Type")
	if event == "" {
		event = r.Header.Get("X-GitHub-Event")
	}
	signature := r.Header.Get("X-Signature-256")
	if signature == "" {
		signature = r.Header.Get("X-Hub-Signature-256")
	}

	result, err := h.ingestor.Ingest(r.Context(), body, event, signature)
	if err != nil {
		var inputErr *apperr.InputError
		var authErr *apperr.AuthError
		switch {
		case errors.As(err, &inputErr):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &authErr):
			respondWithError(w, http.StatusUnauthorized, err.Error())
		default:
			h.logger.Error("Webhook ingestion failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if result.Message != "" {
		respondWithJSON(w, http.StatusOK, map[string]string{"message": result.Message})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"processed": result.Processed})
}

// registerWebhook creates the upstream webhook registration and stores its
// id and secret on the repository record.
// POST /v1/repos/{owner}/{name}/webhook
func (h *Handler) registerWebhook(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	fullName := owner + "/" + name

	repo, err := h.db.GetRepositoryByFullName(r.Context(), fullName)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			h.logger.Error("Failed to get repository", "repo", fullName, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		// First contact with this repository; create the cache record so the
		// registration has somewhere to live.
		if err := h.db.CreateRepository(r.Context(), model.Repository{ID: fullName, FullName: fullName}); err != nil {
			h.logger.Error("Failed to create repository", "repo", fullName, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}
	if repo.WebhookID != nil {
		respondWithError(w, http.StatusConflict, "Webhook already registered")
		return
	}

	hookID, secret, err := h.hooks.RegisterWebhook(r.Context(), owner, name, h.callbackURL)
	if err != nil {
		switch {
		case errors.Is(err, gh.ErrHookExists):
			respondWithError(w, http.StatusConflict, "Webhook already registered")
		case errors.Is(err, gh.ErrInsufficientScope):
			respondWithError(w, http.StatusForbidden, "Insufficient permissions to manage webhooks")
		default:
			h.logger.Error("Failed to register webhook", "repo", fullName, "error", err)
			respondWithError(w, http.StatusBadGateway, "Upstream API error")
		}
		return
	}

	if err := h.db.SetRepositoryWebhook(r.Context(), fullName, hookID, secret); err != nil {
		h.logger.Error("Failed to store webhook registration", "repo", fullName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]int64{"hookId": hookID})
}

// removeWebhook deletes the upstream registration and clears the stored
// id and secret.
// DELETE /v1/repos/{owner}/{name}/webhook
func (h *Handler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	fullName := owner + "/" + name

	repo, err := h.db.GetRepositoryByFullName(r.Context(), fullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to get repository", "repo", fullName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repo.WebhookID == nil {
		respondWithError(w, http.StatusNotFound, "No webhook registered")
		return
	}

	if err := h.hooks.RemoveWebhook(r.Context(), owner, name, *repo.WebhookID); err != nil {
		h.logger.Error("Failed to remove webhook", "repo", fullName, "error", err)
		respondWithError(w, http.StatusBadGateway, "Upstream API error")
		return
	}

	if err := h.db.ClearRepositoryWebhook(r.Context(), fullName); err != nil {
		h.logger.Error("Failed to clear webhook registration", "repo", fullName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseCommitQuery validates the polling read parameters.
func parseCommitQuery(r *http.Request) (cache.Query, error) {
	q := cache.Query{Page: 1, Limit: defaultPageLimit}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return q, &apperr.InputError{Reason: "'page' must be an integer >= 1"}
		}
		q.Page = page
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return q, &apperr.InputError{Reason: "'limit' must be an integer between 1 and 100"}
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, &apperr.InputError{Reason: "'from' must be an RFC3339 timestamp"}
		}
		q.From = &from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, &apperr.InputError{Reason: "'to' must be an RFC3339 timestamp"}
		}
		q.To = &to
	}
	return q, nil
}
