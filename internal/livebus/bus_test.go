// internal/livebus/bus_test.go
package livebus

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-commit-stream/internal/model"
)

func newTestBus() *Bus {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBus(logger)
}

func someCommits(n int) []model.Commit {
	commits := make([]model.Commit, n)
	for i := range commits {
		commits[i] = model.Commit{SHA: fmt.Sprintf("sha-%d", i), Timestamp: time.Now()}
	}
	return commits
}

func TestBus_BroadcastReachesAllSubscribers(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	received := map[string][][]model.Commit{}
	record := func(name string) Subscriber {
		return SubscriberFunc(func(commits []model.Commit) error {
			mu.Lock()
			defer mu.Unlock()
			received[name] = append(received[name], commits)
			return nil
		})
	}

	bus.Subscribe("o/r", record("first"))
	bus.Subscribe("o/r", record("second"))
	require.Equal(t, 2, bus.SubscriberCount("o/r"))

	commits := someCommits(3)
	bus.Broadcast("o/r", commits)

	assert.Equal(t, [][]model.Commit{commits}, received["first"])
	assert.Equal(t, [][]model.Commit{commits}, received["second"])
}

func TestBus_DisconnectedSubscriberIsPruned(t *testing.T) {
	bus := newTestBus()

	bus.Subscribe("o/r", SubscriberFunc(func([]model.Commit) error { return nil }))
	bus.Subscribe("o/r", SubscriberFunc(func([]model.Commit) error { return ErrDisconnected }))
	require.Equal(t, 2, bus.SubscriberCount("o/r"))

	bus.Broadcast("o/r", someCommits(1))

	assert.Equal(t, 1, bus.SubscriberCount("o/r"))
	assert.Equal(t, 1, bus.TotalSubscriberCount())
}

func TestBus_EmptiedChannelIsRemoved(t *testing.T) {
	bus := newTestBus()

	bus.Subscribe("o/r", SubscriberFunc(func([]model.Commit) error { return ErrDisconnected }))
	bus.Broadcast("o/r", someCommits(1))

	assert.Equal(t, 0, bus.SubscriberCount("o/r"))
	assert.Equal(t, 0, bus.TotalSubscriberCount())
	assert.NotContains(t, bus.channels, "o/r")
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	id := bus.Subscribe("o/r", SubscriberFunc(func([]model.Commit) error { return nil }))
	bus.Unsubscribe("o/r", id)
	assert.Equal(t, 0, bus.SubscriberCount("o/r"))

	// Unknown channel and id are no-ops.
	bus.Unsubscribe("o/r", id)
	bus.Unsubscribe("does/not-exist", "nope")
}

func TestBus_BroadcastToEmptyChannelIsNoop(t *testing.T) {
	bus := newTestBus()
	bus.Broadcast("o/r", someCommits(1))
	bus.Broadcast("o/r", nil)
	assert.Equal(t, 0, bus.TotalSubscriberCount())
}

func TestBus_SubscriberIDsAreUnique(t *testing.T) {
	bus := newTestBus()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := bus.Subscribe("o/r", SubscriberFunc(func([]model.Commit) error { return nil }))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestBus_ConcurrentSubscribeBroadcastUnsubscribe(t *testing.T) {
	bus := newTestBus()
	commits := someCommits(1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			id := bus.Subscribe("o/r", SubscriberFunc(func([]model.Commit) error { return nil }))
			bus.Unsubscribe("o/r", id)
		}()
		go func() {
			defer wg.Done()
			bus.Broadcast("o/r", commits)
		}()
		go func() {
			defer wg.Done()
			bus.Subscribe("other/repo", SubscriberFunc(func([]model.Commit) error { return ErrDisconnected }))
			bus.Broadcast("other/repo", commits)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount("o/r"))
}

func TestChannelKey(t *testing.T) {
	assert.Equal(t, "owner/repo", ChannelKey("Owner/Repo"))
	assert.Equal(t, "owner/repo", ChannelKey("owner/repo"))
}
