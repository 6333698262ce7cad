package knowledge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/agentmesh/pkg/models"
)

// stubStore is an in-memory Store that counts Load calls and can be
// made slow or failing per test.
type stubStore struct {
	mu      sync.Mutex
	cards   map[string][]models.ClientCard
	loads   atomic.Int64
	loadErr error
	delay   time.Duration
}

func newStubStore() *stubStore {
	return &stubStore{cards: make(map[string][]models.ClientCard)}
}

func (s *stubStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	s.loads.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	cards, ok := s.cards[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return cards, nil
}

func (s *stubStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	return nil
}

func (s *stubStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.cards))
	for id := range s.cards {
		out = append(out, id)
	}
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func card(clientID string, ct models.CardType, version int, data map[string]any) models.ClientCard {
	return models.ClientCard{
		ClientID: clientID,
		Type:     ct,
		Version:  version,
		Data:     data,
		IsActive: true,
	}
}

func acmeCards() []models.ClientCard {
	return []models.ClientCard{
		card("acme", models.CardTypeClientProfile, 1, map[string]any{
			"summary":  "Enterprise SaaS vendor",
			"industry": "software",
			"budget":   250000,
		}),
		card("acme", models.CardTypeBrandGuidelines, 2, map[string]any{
			"tone":              "professional",
			"avoid_words":       []string{"cheap"},
			"preferred_phrases": []string{"cost-effective"},
			"internal_notes":    "do not expose",
		}),
		card("acme", models.CardTypeTargetAudience, 1, map[string]any{
			"primary":   "CTOs",
			"age_range": "35-55",
			"income":    "high",
		}),
	}
}

func TestBrokerTreeCachesBackendLoads(t *testing.T) {
	store := newStubStore()
	store.cards["acme"] = acmeCards()
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	tree, err := b.Tree(t.Context(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", tree.ClientID)
	assert.Equal(t, 2, tree.Version)

	_, err = b.Tree(t.Context(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.loads.Load())
}

func TestBrokerConcurrentMissesCollapseIntoSingleLoad(t *testing.T) {
	store := newStubStore()
	store.cards["acme"] = acmeCards()
	store.delay = 20 * time.Millisecond
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := b.Tree(context.Background(), "acme")
			assert.NoError(t, err)
			assert.Equal(t, "acme", tree.ClientID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), store.loads.Load())
}

func TestBrokerInvalidateForcesReload(t *testing.T) {
	store := newStubStore()
	store.cards["acme"] = acmeCards()
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	_, err := b.Tree(t.Context(), "acme")
	require.NoError(t, err)

	store.mu.Lock()
	store.cards["acme"] = append(store.cards["acme"], card("acme", models.CardTypeBrandGuidelines, 3, map[string]any{
		"tone": "playful",
	}))
	store.mu.Unlock()

	b.Invalidate("acme")

	tree, err := b.Tree(t.Context(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Version)
	assert.Equal(t, int64(2), store.loads.Load())
}

func TestBrokerFilteredContext(t *testing.T) {
	store := newStubStore()
	store.cards["acme"] = acmeCards()
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	policies := models.DefaultExposurePolicies()

	t.Run("full access agent sees all fields", func(t *testing.T) {
		desc := models.AgentDescriptor{
			ID:             "research-1",
			Type:           models.AgentTypeContentResearch,
			ExposurePolicy: policies[models.AgentTypeContentResearch],
		}
		ctx, err := b.FilteredContext(t.Context(), desc, "acme", models.SensitivityStandard)
		require.NoError(t, err)

		profile := ctx[models.CardTypeClientProfile]
		assert.Equal(t, "software", profile["industry"])
		assert.Equal(t, 250000, profile["budget"])

		brand := ctx[models.CardTypeBrandGuidelines]
		assert.Equal(t, "professional", brand["tone"])
		assert.Contains(t, brand, "internal_notes")
	})

	t.Run("tone only agent sees filtered brand card", func(t *testing.T) {
		desc := models.AgentDescriptor{
			ID:             "seo-1",
			Type:           models.AgentTypeTechnicalSEO,
			ExposurePolicy: policies[models.AgentTypeTechnicalSEO],
		}
		ctx, err := b.FilteredContext(t.Context(), desc, "acme", models.SensitivityStandard)
		require.NoError(t, err)

		brand := ctx[models.CardTypeBrandGuidelines]
		assert.Equal(t, "professional", brand["tone"])
		assert.NotContains(t, brand, "internal_notes")

		audience := ctx[models.CardTypeTargetAudience]
		assert.Equal(t, "CTOs", audience["primary"])
		assert.NotContains(t, audience, "income")
	})

	t.Run("high sensitivity downgrades every level", func(t *testing.T) {
		desc := models.AgentDescriptor{
			ID:             "seo-1",
			Type:           models.AgentTypeTechnicalSEO,
			ExposurePolicy: policies[models.AgentTypeTechnicalSEO],
		}
		ctx, err := b.FilteredContext(t.Context(), desc, "acme", models.SensitivityHigh)
		require.NoError(t, err)

		// Intermediate levels downgrade to none, the cards disappear
		assert.NotContains(t, ctx, models.CardTypeBrandGuidelines)
		assert.NotContains(t, ctx, models.CardTypeTargetAudience)
	})

	t.Run("unknown client propagates not found", func(t *testing.T) {
		desc := models.AgentDescriptor{ID: "research-1", Type: models.AgentTypeContentResearch}
		_, err := b.FilteredContext(t.Context(), desc, "ghost", models.SensitivityStandard)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBrokerDegradesWhenBackendUnavailable(t *testing.T) {
	store := newStubStore()
	store.loadErr = ErrStoreUnavailable
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	desc := models.AgentDescriptor{ID: "research-1", Type: models.AgentTypeContentResearch}
	ctx, err := b.FilteredContext(t.Context(), desc, "acme", models.SensitivityStandard)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, ctx)
}

func TestBrokerPreviewNeverRevealsCardData(t *testing.T) {
	store := newStubStore()
	store.cards["acme"] = acmeCards()
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	policies := models.DefaultExposurePolicies()
	descriptors := []models.AgentDescriptor{
		{ID: "research-1", Type: models.AgentTypeContentResearch, ExposurePolicy: policies[models.AgentTypeContentResearch]},
		{ID: "seo-1", Type: models.AgentTypeTechnicalSEO, ExposurePolicy: policies[models.AgentTypeTechnicalSEO]},
		{ID: "seo-2", Type: models.AgentTypeTechnicalSEO, ExposurePolicy: policies[models.AgentTypeTechnicalSEO]},
	}

	preview, err := b.Preview(t.Context(), "acme", descriptors)
	require.NoError(t, err)

	assert.Equal(t, "acme", preview.ClientID)
	assert.Equal(t, 2, preview.TreeVersion)
	assert.ElementsMatch(t, []models.CardType{
		models.CardTypeBrandGuidelines,
		models.CardTypeClientProfile,
		models.CardTypeTargetAudience,
	}, preview.CardTypes)

	// One entry per agent type, not per agent
	require.Len(t, preview.Exposure, 2)
	seo := preview.Exposure[models.AgentTypeTechnicalSEO]
	assert.Equal(t, models.ExposureToneOnly, seo[models.CardTypeBrandGuidelines])
}

func TestBrokerListClients(t *testing.T) {
	store := newStubStore()
	store.cards["acme"] = acmeCards()
	store.cards["globex"] = []models.ClientCard{card("globex", models.CardTypeClientProfile, 1, map[string]any{"summary": "x"})}
	b := NewBroker(store, time.Minute, 16)
	defer b.Close()

	clients, err := b.ListClients(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, clients)
}
