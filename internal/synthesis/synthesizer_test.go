package synthesis

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/agentmesh/pkg/models"
)

func newTestSynthesizer() *Synthesizer {
	return New(zerolog.Nop())
}

func success(agentID string, typ models.AgentType, payload string, confidence float64) models.AgentResponse {
	return models.AgentResponse{
		AgentID:    agentID,
		AgentType:  typ,
		Payload:    payload,
		Confidence: confidence,
		Succeeded:  true,
	}
}

func brandTree(data map[string]any) *models.ClientKnowledgeTree {
	return &models.ClientKnowledgeTree{
		ClientID: "acme",
		Core: models.KnowledgeLayer{
			Present: true,
			Cards: map[models.CardType]models.ClientCard{
				models.CardTypeBrandGuidelines: {
					ClientID: "acme",
					Type:     models.CardTypeBrandGuidelines,
					Version:  1,
					Data:     data,
					IsActive: true,
				},
			},
		},
	}
}

func TestSynthesizeSingleResponseHasNoPrefix(t *testing.T) {
	s := newTestSynthesizer()

	answer := s.Synthesize([]models.AgentResponse{
		success("seo-1", models.AgentTypeTechnicalSEO, "fix your sitemap", 0.8),
	}, nil)

	assert.Equal(t, "fix your sitemap", answer)
}

func TestSynthesizeOrdersByConfidence(t *testing.T) {
	s := newTestSynthesizer()

	answer := s.Synthesize([]models.AgentResponse{
		success("seo-1", models.AgentTypeTechnicalSEO, "seo part", 0.6),
		success("research-1", models.AgentTypeContentResearch, "research part", 0.9),
	}, nil)

	parts := strings.Split(answer, "\n\n")
	require.Len(t, parts, 2)
	assert.Equal(t, "[content_research] research part", parts[0])
	assert.Equal(t, "[technical_seo] seo part", parts[1])
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	s := newTestSynthesizer()

	responses := []models.AgentResponse{
		success("b-agent", models.AgentTypeSocialMedia, "social part", 0.7),
		success("a-agent", models.AgentTypeContentResearch, "research part", 0.7),
	}

	first := s.Synthesize(responses, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Synthesize(responses, nil))
	}

	// Equal confidence breaks ties by agent id
	assert.True(t, strings.HasPrefix(first, "[content_research]"))
}

func TestSynthesizeSkipsFailedAndEmptyResponses(t *testing.T) {
	s := newTestSynthesizer()

	answer := s.Synthesize([]models.AgentResponse{
		{AgentID: "seo-1", AgentType: models.AgentTypeTechnicalSEO, Succeeded: false, ErrorKind: "timeout"},
		{AgentID: "seo-2", AgentType: models.AgentTypeTechnicalSEO, Succeeded: true, Payload: ""},
		success("research-1", models.AgentTypeContentResearch, "only useful answer", 0.5),
	}, nil)

	assert.Equal(t, "only useful answer", answer)
}

func TestSynthesizeDegradedAnswer(t *testing.T) {
	s := newTestSynthesizer()

	assert.Equal(t, DegradedAnswer, s.Synthesize(nil, nil))
	assert.Equal(t, DegradedAnswer, s.Synthesize([]models.AgentResponse{
		{AgentID: "seo-1", Succeeded: false},
	}, nil))
}

func TestSynthesizeAppliesBrandTone(t *testing.T) {
	s := newTestSynthesizer()

	tree := brandTree(map[string]any{
		"avoid_words":       []any{"cheap", "basic"},
		"preferred_phrases": []any{"cost-effective", "streamlined"},
	})

	answer := s.Synthesize([]models.AgentResponse{
		success("research-1", models.AgentTypeContentResearch, "Our cheap plan offers Basic features", 0.9),
	}, tree)

	assert.Equal(t, "Our cost-effective plan offers streamlined features", answer)
}

func TestBrandToneIsIdempotent(t *testing.T) {
	s := newTestSynthesizer()

	tree := brandTree(map[string]any{
		"avoid_words":       []any{"cheap", "simple"},
		"preferred_phrases": []any{"cheaper than ever", "straightforward"},
	})

	responses := []models.AgentResponse{
		success("research-1", models.AgentTypeContentResearch, "A cheap and simple setup", 0.9),
	}

	first := s.Synthesize(responses, tree)
	// "cheap" -> "cheaper than ever" would reintroduce the avoided word,
	// that pair must be skipped entirely
	assert.Equal(t, "A cheap and straightforward setup", first)

	again := s.Synthesize([]models.AgentResponse{
		success("research-1", models.AgentTypeContentResearch, first, 0.9),
	}, tree)
	assert.Equal(t, first, again)
}

func TestBrandToneIgnoresUnpairedAvoidWords(t *testing.T) {
	s := newTestSynthesizer()

	tree := brandTree(map[string]any{
		"avoid_words":       []any{"cheap", "basic"},
		"preferred_phrases": []any{"cost-effective"},
	})

	answer := s.Synthesize([]models.AgentResponse{
		success("research-1", models.AgentTypeContentResearch, "cheap and basic", 0.9),
	}, tree)

	assert.Equal(t, "cost-effective and basic", answer)
}

func TestSynthesizeTreeWithoutBrandCard(t *testing.T) {
	s := newTestSynthesizer()

	tree := &models.ClientKnowledgeTree{ClientID: "acme"}
	answer := s.Synthesize([]models.AgentResponse{
		success("research-1", models.AgentTypeContentResearch, "plain text", 0.9),
	}, tree)

	assert.Equal(t, "plain text", answer)
}
