package router

import (
	"sort"
	"strings"

	"github.com/biodoia/agentmesh/pkg/models"
)

// Classifier maps a free-form query to the agent types that should
// handle it. Implementations must always return at least one type.
type Classifier interface {
	Classify(query string) []models.AgentType
}

// KeywordClassifier is the baseline classifier: it matches lowercased
// query substrings against a configurable keyword map. Queries that
// match nothing fall back to the default type.
type KeywordClassifier struct {
	keywords    map[models.AgentType][]string
	defaultType models.AgentType
}

// NewKeywordClassifier builds a classifier from a keyword map.
// A nil or empty map falls back to the built-in defaults.
func NewKeywordClassifier(keywords map[models.AgentType][]string, defaultType models.AgentType) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = defaultKeywords()
	}
	if defaultType == "" {
		defaultType = models.AgentTypeContentResearch
	}
	lowered := make(map[models.AgentType][]string, len(keywords))
	for t, kws := range keywords {
		ls := make([]string, 0, len(kws))
		for _, kw := range kws {
			ls = append(ls, strings.ToLower(kw))
		}
		lowered[t] = ls
	}
	return &KeywordClassifier{keywords: lowered, defaultType: defaultType}
}

func defaultKeywords() map[models.AgentType][]string {
	return map[models.AgentType][]string{
		models.AgentTypeContentResearch: {"content", "article", "blog", "research", "topic", "write"},
		models.AgentTypeTechnicalSEO:    {"seo", "ranking", "sitemap", "crawl", "index", "schema", "meta"},
		models.AgentTypeProjectPlanning: {"plan", "timeline", "milestone", "roadmap", "schedule", "sprint"},
		models.AgentTypeBRDGeneration:   {"brd", "requirements", "business requirements", "scope document"},
		models.AgentTypeSocialMedia:     {"social", "twitter", "linkedin", "instagram", "post", "campaign"},
	}
}

// Classify returns the matched agent types sorted for determinism,
// or the default type when nothing matches.
func (c *KeywordClassifier) Classify(query string) []models.AgentType {
	q := strings.ToLower(query)
	matched := make(map[models.AgentType]bool)
	for t, kws := range c.keywords {
		for _, kw := range kws {
			if strings.Contains(q, kw) {
				matched[t] = true
				break
			}
		}
	}
	if len(matched) == 0 {
		return []models.AgentType{c.defaultType}
	}
	types := make([]models.AgentType, 0, len(matched))
	for t := range matched {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
