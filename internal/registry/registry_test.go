package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/biodoia/agentmesh/pkg/resilience"
)

func testDescriptors() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		{ID: "seo-1", Type: models.AgentTypeTechnicalSEO, Endpoint: "http://seo-1", MaxCapacity: 10},
		{ID: "seo-2", Type: models.AgentTypeTechnicalSEO, Endpoint: "http://seo-2", MaxCapacity: 10},
		{ID: "research-1", Type: models.AgentTypeContentResearch, Endpoint: "http://research-1", MaxCapacity: 5},
	}
}

func newTestRegistry(cooldown time.Duration) *Registry {
	return New(resilience.BreakerConfig{
		FailureThreshold: 3,
		BaseCooldown:     cooldown,
		MaxCooldown:      10 * cooldown,
	}, testDescriptors())
}

func TestRegistryEligibilityAfterConsecutiveFailures(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.True(t, r.IsEligible("seo-1"))

	r.Report("seo-1", false, 100*time.Millisecond)
	r.Report("seo-1", false, 100*time.Millisecond)
	assert.True(t, r.IsEligible("seo-1"))

	r.Report("seo-1", false, 100*time.Millisecond)
	assert.False(t, r.IsEligible("seo-1"))

	// Other agents are unaffected
	assert.True(t, r.IsEligible("seo-2"))
	assert.True(t, r.IsEligible("research-1"))
}

func TestRegistryEligibilityRestoredAfterCooldown(t *testing.T) {
	r := newTestRegistry(20 * time.Millisecond)

	for i := 0; i < 3; i++ {
		r.Report("seo-1", false, time.Millisecond)
	}
	require.False(t, r.IsEligible("seo-1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, r.IsEligible("seo-1"))

	// Acquire consumes the single probe
	require.True(t, r.Acquire("seo-1"))
	assert.False(t, r.Acquire("seo-1"))
	r.Release("seo-1")

	r.Report("seo-1", true, time.Millisecond)
	assert.True(t, r.IsEligible("seo-1"))
}

func TestRegistryLoadTracking(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.True(t, r.Acquire("seo-1"))
	require.True(t, r.Acquire("seo-1"))
	assert.Equal(t, 2, r.Load("seo-1"))
	assert.Equal(t, 2, r.ActiveRequests())

	r.Release("seo-1")
	assert.Equal(t, 1, r.Load("seo-1"))

	r.Release("seo-1")
	r.Release("seo-1") // extra release must not go negative
	assert.Equal(t, 0, r.Load("seo-1"))
}

func TestRegistryAcquireEnforcesMaxCapacity(t *testing.T) {
	r := newTestRegistry(time.Hour)

	// research-1 is configured with MaxCapacity 5
	for i := 0; i < 5; i++ {
		require.True(t, r.Acquire("research-1"))
	}
	assert.False(t, r.Acquire("research-1"))
	assert.Equal(t, 5, r.Load("research-1"))

	// a refused acquire leaves the breaker untouched
	assert.True(t, r.IsEligible("research-1"))

	r.Release("research-1")
	assert.True(t, r.Acquire("research-1"))
}

func TestRegistryLatencyMovingAverage(t *testing.T) {
	r := newTestRegistry(time.Hour)

	r.Report("seo-1", true, 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, r.AvgLatency("seo-1"))

	r.Report("seo-1", true, 200*time.Millisecond)
	avg := r.AvgLatency("seo-1")
	assert.Greater(t, avg, 100*time.Millisecond)
	assert.Less(t, avg, 200*time.Millisecond)
}

func TestRegistryLastFailure(t *testing.T) {
	r := newTestRegistry(time.Hour)

	assert.True(t, r.LastFailure("seo-1").IsZero())

	before := time.Now()
	r.Report("seo-1", false, time.Millisecond)
	lf := r.LastFailure("seo-1")
	assert.False(t, lf.IsZero())
	assert.False(t, lf.Before(before))
}

func TestRegistryUnknownAgent(t *testing.T) {
	r := newTestRegistry(time.Hour)

	assert.False(t, r.IsEligible("ghost"))
	assert.False(t, r.Acquire("ghost"))

	_, err := r.Status("ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)
	assert.ErrorIs(t, r.Reset("ghost"), ErrUnknownAgent)
}

func TestRegistryResetRestoresEligibility(t *testing.T) {
	r := newTestRegistry(time.Hour)

	for i := 0; i < 3; i++ {
		r.Report("seo-1", false, time.Millisecond)
	}
	require.False(t, r.IsEligible("seo-1"))

	require.NoError(t, r.Reset("seo-1"))
	assert.True(t, r.IsEligible("seo-1"))
}

func TestRegistrySnapshot(t *testing.T) {
	r := newTestRegistry(time.Hour)

	r.Report("seo-1", true, 50*time.Millisecond)
	r.Report("seo-1", false, 150*time.Millisecond)

	snap := r.Snapshot()
	require.Len(t, snap, 3)

	st := snap["seo-1"]
	assert.Equal(t, "seo-1", st.AgentID)
	assert.Equal(t, models.AgentTypeTechnicalSEO, st.AgentType)
	assert.Equal(t, "closed", st.State)
	assert.True(t, st.Eligible)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-9)
	assert.Equal(t, 10, st.MaxCapacity)
}
