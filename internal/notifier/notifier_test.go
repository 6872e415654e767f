package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/model"
	"docingest/internal/repository"
)

// recordingGateway captures broadcasts; failFirst makes the first N calls
// fail, block makes every call wait until release is closed.
type recordingGateway struct {
	mu        sync.Mutex
	scopes    []string
	messages  [][]byte
	failFirst int
	failAll   bool
	release   chan struct{}
}

func (g *recordingGateway) Broadcast(_ context.Context, scope string, message []byte) error {
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return errors.New("gateway down")
	}
	if g.failFirst > 0 {
		g.failFirst--
		return errors.New("transient")
	}
	g.scopes = append(g.scopes, scope)
	g.messages = append(g.messages, message)
	return nil
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.messages)
}

func change(op repository.Op, id string, version int64) repository.Change {
	return repository.Change{
		Op: op,
		Document: model.Document{
			ID:       id,
			FolderID: "f-1",
			OwnerID:  "u-1",
			Version:  version,
		},
	}
}

func TestNotifier_DeliversInOrder(t *testing.T) {
	gw := &recordingGateway{}
	n, err := New(gw, prometheus.NewRegistry(), Options{})
	require.NoError(t, err)

	n.OnChange(change(repository.OpInsert, "d-1", 1))
	n.OnChange(change(repository.OpModify, "d-1", 2))
	n.OnChange(change(repository.OpRemove, "d-1", 2))
	n.Close()

	require.Equal(t, 3, gw.count())
	assert.Equal(t, []string{"f-1", "f-1", "f-1"}, gw.scopes)

	type envelope struct {
		Action string `json:"action"`
		Data   struct {
			FileID    string         `json:"fileId"`
			FolderID  string         `json:"folderId"`
			UserID    string         `json:"userId"`
			EventType string         `json:"eventType"`
			File      model.Document `json:"file"`
		} `json:"data"`
	}
	var envelopes []envelope
	for _, raw := range gw.messages {
		var e envelope
		require.NoError(t, json.Unmarshal(raw, &e))
		envelopes = append(envelopes, e)
	}

	assert.Equal(t, "file_created", envelopes[0].Action)
	assert.Equal(t, "INSERT", envelopes[0].Data.EventType)
	assert.Equal(t, "file_updated", envelopes[1].Action)
	assert.Equal(t, "MODIFY", envelopes[1].Data.EventType)
	assert.Equal(t, "file_deleted", envelopes[2].Action)
	assert.Equal(t, "REMOVE", envelopes[2].Data.EventType)

	assert.Equal(t, "d-1", envelopes[0].Data.FileID)
	assert.Equal(t, "u-1", envelopes[0].Data.UserID)
	assert.Equal(t, int64(2), envelopes[1].Data.File.Version)
}

func TestNotifier_BestEffortOnGatewayOutage(t *testing.T) {
	gw := &recordingGateway{failAll: true}
	n, err := New(gw, prometheus.NewRegistry(), Options{MaxAttempts: 2})
	require.NoError(t, err)

	// Must not block or panic even though every broadcast fails.
	n.OnChange(change(repository.OpInsert, "d-1", 1))
	n.Close()

	assert.Equal(t, 0, gw.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(n.failures))
	assert.Equal(t, float64(0), testutil.ToFloat64(n.dropped))
}

func TestNotifier_RetriesTransientFailure(t *testing.T) {
	gw := &recordingGateway{failFirst: 1}
	n, err := New(gw, prometheus.NewRegistry(), Options{MaxAttempts: 2})
	require.NoError(t, err)

	n.OnChange(change(repository.OpInsert, "d-1", 1))
	n.Close()

	assert.Equal(t, 1, gw.count())
	assert.Equal(t, float64(0), testutil.ToFloat64(n.failures))
}

func TestNotifier_DropsOnOverflow(t *testing.T) {
	release := make(chan struct{})
	gw := &recordingGateway{release: release}
	n, err := New(gw, prometheus.NewRegistry(), Options{QueueSize: 1})
	require.NoError(t, err)

	// First event occupies the consumer, second fills the queue, third
	// overflows and is dropped.
	n.OnChange(change(repository.OpInsert, "d-1", 1))
	require.Eventually(t, func() bool {
		return len(n.queue) == 0 // consumer picked up the first event
	}, time.Second, 5*time.Millisecond)
	n.OnChange(change(repository.OpModify, "d-1", 2))
	n.OnChange(change(repository.OpModify, "d-1", 3))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(n.dropped) == 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	n.Close()

	assert.Equal(t, 2, gw.count())
}

func TestNotifier_OnChangeAfterClose(t *testing.T) {
	gw := &recordingGateway{}
	n, err := New(gw, prometheus.NewRegistry(), Options{})
	require.NoError(t, err)
	n.Close()

	// Must be a no-op, not a panic on a closed channel.
	n.OnChange(change(repository.OpInsert, "d-1", 1))
	assert.Equal(t, 0, gw.count())
}
