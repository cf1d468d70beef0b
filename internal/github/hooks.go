// internal/github/hooks.go
package github

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/google/go-github/v62/github"
)

var (
	// ErrHookExists is returned when the repository already has a webhook
	// registered for our callback.
	ErrHookExists = errors.New("webhook already registered for repository")

	// ErrInsufficientScope is returned when the token cannot administer
	// hooks on the repository.
	ErrInsufficientScope = errors.New("token lacks permission to manage webhooks")
)

// RegisterWebhook creates a push webhook on the repository pointing at
// callbackURL and returns the upstream hook id together with the freshly
// generated shared secret.
func (c *Client) RegisterWebhook(ctx context.Context, owner, name, callbackURL string) (int64, string, error) {
	secret, err := newHookSecret()
	if err != nil {
		return 0, "", err
	}

	hook := &github.Hook{
		Events: []string{"push"},
		Active: github.Bool(true),
		Config: &github.HookConfig{
			URL:         github.String(callbackURL),
			ContentType: github.String("json"),
			Secret:      github.String(secret),
		},
	}

	created, resp, err := c.gh.Repositories.CreateHook(ctx, owner, name, hook)
	if err != nil {
		switch status(resp) {
		case http.StatusUnprocessableEntity:
			return 0, "", ErrHookExists
		case http.StatusForbidden, http.StatusNotFound:
			// GitHub answers 404 rather than 403 when the token cannot see
			// the repo's hooks at all.
			return 0, "", ErrInsufficientScope
		}
		return 0, "", wrapUpstream(resp, err)
	}

	c.logger.Info("Registered webhook", "owner", owner, "repo", name, "hook_id", created.GetID())
	return created.GetID(), secret, nil
}

// RemoveWebhook deletes the upstream webhook registration.
func (c *Client) RemoveWebhook(ctx context.Context, owner, name string, hookID int64) error {
	resp, err := c.gh.Repositories.DeleteHook(ctx, owner, name, hookID)
	if err != nil {
		if status(resp) == http.StatusNotFound {
			// Already gone upstream; clearing our record is still correct.
			return nil
		}
		return wrapUpstream(resp, err)
	}
	c.logger.Info("Removed webhook", "owner", owner, "repo", name, "hook_id", hookID)
	return nil
}

func newHookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func status(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}
