// internal/livebus/bus.go
package livebus

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github-commit-stream/internal/model"
)

// ErrDisconnected is returned by a Subscriber whose client is gone. The bus
// removes such subscribers after the broadcast pass; the error never
// propagates to the caller of Broadcast.
var ErrDisconnected = errors.New("subscriber disconnected")

// Subscriber receives broadcasts for one channel. Send is called with a
// non-empty commit list and returns ErrDisconnected once the underlying
// transport is closed.
type Subscriber interface {
	Send(commits []model.Commit) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(commits []model.Commit) error

func (f SubscriberFunc) Send(commits []model.Commit) error { return f(commits) }

// ChannelKey normalizes a repository full name into a channel key.
func ChannelKey(repoFullName string) string {
	return strings.ToLower(repoFullName)
}

// Bus is the process-local subscriber registry. It holds no history: a
// subscriber only sees broadcasts issued while it is registered.
type Bus struct {
	mu       sync.Mutex
	channels map[string]map[string]Subscriber
	logger   *slog.Logger
}

// NewBus creates an empty registry.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		channels: make(map[string]map[string]Subscriber),
		logger:   logger,
	}
}

// Subscribe registers sub on the channel and returns its process-unique id.
func (b *Bus) Subscribe(channelKey string, sub Subscriber) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.channels[channelKey]
	if !ok {
		subs = make(map[string]Subscriber)
		b.channels[channelKey] = subs
	}
	subs[id] = sub

	b.logger.Debug("Live subscriber joined", "channel", channelKey, "subscriber_id", id)
	return id
}

// Unsubscribe removes the subscriber. Unknown channels or ids are ignored.
func (b *Bus) Unsubscribe(channelKey, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(channelKey, subscriberID)
}

// Broadcast delivers commits to every subscriber currently on the channel.
// Subscribers whose Send reports disconnection are removed once the pass
// completes; a channel emptied this way is dropped from the registry.
func (b *Bus) Broadcast(channelKey string, commits []model.Commit) {
	if len(commits) == 0 {
		return
	}

	b.mu.Lock()
	snapshot := make(map[string]Subscriber, len(b.channels[channelKey]))
	for id, sub := range b.channels[channelKey] {
		snapshot[id] = sub
	}
	b.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	var dead []string
	for id, sub := range snapshot {
		if err := sub.Send(commits); err != nil {
			if !errors.Is(err, ErrDisconnected) {
				b.logger.Warn("Live delivery failed", "channel", channelKey, "subscriber_id", id, "error", err)
			}
			dead = append(dead, id)
		}
	}

	if len(dead) == 0 {
		return
	}
	b.mu.Lock()
	for _, id := range dead {
		b.removeLocked(channelKey, id)
	}
	b.mu.Unlock()
	b.logger.Debug("Pruned disconnected subscribers", "channel", channelKey, "count", len(dead))
}

// SubscriberCount returns the number of subscribers on one channel.
func (b *Bus) SubscriberCount(channelKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[channelKey])
}

// TotalSubscriberCount returns the number of subscribers across all channels.
func (b *Bus) TotalSubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, subs := range b.channels {
		total += len(subs)
	}
	return total
}

func (b *Bus) removeLocked(channelKey, subscriberID string) {
	subs, ok := b.channels[channelKey]
	if !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(b.channels, channelKey)
	}
}
