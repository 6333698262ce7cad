package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/pkg/models"
)

// recordingStore captures feedback writes and can fail on demand.
type recordingStore struct {
	mu       sync.Mutex
	writes   map[string][]models.PerformanceDelta
	writeErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{writes: make(map[string][]models.PerformanceDelta)}
}

func (s *recordingStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	return nil, knowledge.ErrNotFound
}

func (s *recordingStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes[clientID] = append(s.writes[clientID], delta)
	return nil
}

func (s *recordingStore) List(ctx context.Context) ([]string, error) { return nil, nil }
func (s *recordingStore) Close() error                               { return nil }

func (s *recordingStore) deltas(clientID string) []models.PerformanceDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[clientID]
}

func newTestWriter(store *recordingStore) (*Writer, *knowledge.Broker) {
	broker := knowledge.NewBroker(store, time.Minute, 16)
	return New(store, broker, time.Second, zerolog.Nop()), broker
}

func sampleResponses() []models.AgentResponse {
	return []models.AgentResponse{
		{AgentID: "research-1", Confidence: 0.9, Latency: 100 * time.Millisecond, Succeeded: true},
		{AgentID: "seo-1", Confidence: 0.7, Latency: 300 * time.Millisecond, Succeeded: true},
		{AgentID: "seo-2", Succeeded: false, ErrorKind: "timeout"},
	}
}

func TestRecordWritesAggregatedDelta(t *testing.T) {
	store := newRecordingStore()
	w, broker := newTestWriter(store)
	defer broker.Close()

	w.Record("acme", models.CoordinationRequest{RequestID: "req-1"}, sampleResponses(), "final answer", 0.72)
	w.Close()

	deltas := store.deltas("acme")
	require.Len(t, deltas, 1)

	d := deltas[0]
	assert.Equal(t, "req-1", d.RequestID)
	assert.Equal(t, 0.72, d.QualityScore)
	assert.Equal(t, 2, d.AgentsSucceeded)
	assert.Equal(t, 1, d.AgentsFailed)
	assert.InDelta(t, 0.8, d.AvgConfidence, 1e-9)
	assert.Equal(t, 200*time.Millisecond, d.AvgLatency)
	assert.Equal(t, len("final answer"), d.AnswerLength)
}

func TestRecordIgnoresEmptyClientID(t *testing.T) {
	store := newRecordingStore()
	w, broker := newTestWriter(store)
	defer broker.Close()

	w.Record("", models.CoordinationRequest{RequestID: "req-1"}, sampleResponses(), "answer", 0.5)
	w.Close()

	assert.Empty(t, store.deltas(""))
}

func TestRecordAfterCloseIsNoop(t *testing.T) {
	store := newRecordingStore()
	w, broker := newTestWriter(store)
	defer broker.Close()

	w.Close()
	w.Record("acme", models.CoordinationRequest{RequestID: "req-1"}, sampleResponses(), "answer", 0.5)
	w.Close()

	assert.Empty(t, store.deltas("acme"))
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	store := newRecordingStore()
	store.writeErr = errors.New("disk full")
	w, broker := newTestWriter(store)
	defer broker.Close()

	// must not panic or block the caller
	w.Record("acme", models.CoordinationRequest{RequestID: "req-1"}, sampleResponses(), "answer", 0.5)
	w.Close()

	assert.Empty(t, store.deltas("acme"))
}
