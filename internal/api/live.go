// internal/api/live.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github-commit-stream/internal/livebus"
	"github-commit-stream/internal/model"
)

// Buffered events per live connection. A consumer that falls this far behind
// has broadcasts dropped rather than blocking the ingesting request.
const liveEventBuffer = 16

// handleLive streams newly ingested commits for one repository over
// server-sent events. The stream carries a "connected" acknowledgment,
// "commits" events, and periodic "heartbeat" events so idle connections are
// not mistaken for dead ones. The subscription ends when the client
// disconnects.
// GET /v1/repos/{owner}/{name}/live
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	repoFullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
	channelKey := livebus.ChannelKey(repoFullName)
	ctx := r.Context()

	events := make(chan []model.Commit, liveEventBuffer)
	sub := livebus.SubscriberFunc(func(commits []model.Commit) error {
		if ctx.Err() != nil {
			return livebus.ErrDisconnected
		}
		select {
		case events <- commits:
			return nil
		default:
			h.logger.Warn("Live event buffer full, dropping broadcast", "channel", channelKey)
			return nil
		}
	})

	subscriberID := h.bus.Subscribe(channelKey, sub)
	defer h.bus.Unsubscribe(channelKey, subscriberID)
	logger := h.logger.With("channel", channelKey, "subscriber_id", subscriberID)
	logger.Info("Live subscription opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, "connected", map[string]string{"repo": repoFullName})
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Live subscription closed")
			return
		case commits := <-events:
			writeSSE(w, "commits", commits)
			flusher.Flush()
		case <-heartbeat.C:
			writeSSE(w, "heartbeat", map[string]int64{"ts": time.Now().Unix()})
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
