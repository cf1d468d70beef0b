// internal/model/models.go
package model

import (
	"encoding/json"
	"time"
)

// CIStatus is the collapsed result of all check runs for a commit.
type CIStatus string

const (
	CIPass    CIStatus = "pass"
	CIFail    CIStatus = "fail"
	CIPending CIStatus = "pending"
	CIUnknown CIStatus = "unknown"
)

// Commit is the canonical commit record. It is immutable once created;
// re-ingesting the same SHA replaces the whole row rather than patching it.
type Commit struct {
	SHA             string          `json:"sha"`
	RepoFullName    string          `json:"repo"`
	Timestamp       time.Time       `json:"timestamp"`
	Author          string          `json:"author"`
	Message         string          `json:"message"`
	Additions       int             `json:"additions"`
	Deletions       int             `json:"deletions"`
	FilesChanged    int             `json:"filesChanged"`
	PrimaryLanguage string          `json:"primaryLanguage"`
	Languages       map[string]int  `json:"languages"`
	CIStatus        CIStatus        `json:"ciStatus"`
	MusicParams     json.RawMessage `json:"musicParams,omitempty"`
}

// Repository is the cache record for a tracked repository. WebhookID and
// WebhookSecret stay nil until a webhook is registered; LastFetchedAt stays
// nil until the first upstream refresh.
type Repository struct {
	ID              string
	FullName        string
	Description     *string
	DefaultBranch   *string
	PrimaryLanguage *string
	WebhookID       *int64
	WebhookSecret   *string
	LastFetchedAt   *time.Time
}

// CommitPage is the result of a paginated commit read.
type CommitPage struct {
	Commits []Commit `json:"commits"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	HasMore bool     `json:"hasMore"`

	// ServedFromCache and RateRemaining are caller-facing diagnostics and
	// must never appear in a public response body.
	ServedFromCache bool `json:"-"`
	RateRemaining   int  `json:"-"`
}

// ParamsMapper turns a commit's metadata into the musical-parameter payload
// carried on the Commit. The mapping itself lives outside this service; the
// payload is stored and broadcast untouched.
type ParamsMapper interface {
	Map(c Commit) json.RawMessage
}

// NoopMapper satisfies ParamsMapper with an empty payload.
type NoopMapper struct{}

func (NoopMapper) Map(Commit) json.RawMessage { return nil }
