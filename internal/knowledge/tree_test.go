package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/agentmesh/pkg/models"
)

func TestBuildTreeLayersCardsByType(t *testing.T) {
	cards := []models.ClientCard{
		card("acme", models.CardTypeClientProfile, 1, map[string]any{"summary": "a"}),
		card("acme", models.CardTypeContentStrategy, 1, map[string]any{"objectives": "b"}),
		card("acme", models.CardTypePerformanceHistory, 1, map[string]any{"summary": "c"}),
		card("acme", models.CardTypeRiskFlags, 1, map[string]any{"constraints": "d"}),
	}

	tree := BuildTree("acme", cards)

	assert.True(t, tree.Core.Present)
	assert.True(t, tree.Derived.Present)
	assert.True(t, tree.Execution.Present)
	assert.True(t, tree.Predictive.Present)
	assert.Equal(t, 1, tree.Version)
	assert.False(t, tree.BuiltAt.IsZero())
}

func TestBuildTreeHighestVersionWins(t *testing.T) {
	cards := []models.ClientCard{
		card("acme", models.CardTypeBrandGuidelines, 1, map[string]any{"tone": "old"}),
		card("acme", models.CardTypeBrandGuidelines, 3, map[string]any{"tone": "new"}),
		card("acme", models.CardTypeBrandGuidelines, 2, map[string]any{"tone": "middle"}),
	}

	tree := BuildTree("acme", cards)

	brand, ok := tree.Card(models.CardTypeBrandGuidelines)
	require.True(t, ok)
	assert.Equal(t, 3, brand.Version)
	assert.Equal(t, "new", brand.Data["tone"])
	assert.Equal(t, 3, tree.Version)
}

func TestBuildTreeSkipsInactiveAndForeignCards(t *testing.T) {
	inactive := card("acme", models.CardTypeClientProfile, 5, map[string]any{"summary": "x"})
	inactive.IsActive = false

	cards := []models.ClientCard{
		inactive,
		card("globex", models.CardTypeBrandGuidelines, 1, map[string]any{"tone": "y"}),
	}

	tree := BuildTree("acme", cards)

	assert.False(t, tree.Core.Present)
	assert.Empty(t, tree.CardTypes())
	assert.Equal(t, 0, tree.Version)
}

func TestBuildTreePartialPopulationIsValid(t *testing.T) {
	cards := []models.ClientCard{
		card("acme", models.CardTypeClientProfile, 1, map[string]any{"summary": "a"}),
	}

	tree := BuildTree("acme", cards)

	assert.True(t, tree.Core.Present)
	assert.False(t, tree.Derived.Present)
	assert.False(t, tree.Execution.Present)
	assert.False(t, tree.Predictive.Present)
	assert.Equal(t, []models.CardType{models.CardTypeClientProfile}, tree.CardTypes())
}
