package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/pkg/models"
)

// Router selects the agents that should serve a request: it classifies
// the query into intents, filters candidates by health eligibility and
// ranks them by load and latency.
type Router struct {
	classifier    Classifier
	registry      *registry.Registry
	loadWeight    float64
	latencyWeight float64
	logger        zerolog.Logger
}

type Options struct {
	LoadWeight    float64
	LatencyWeight float64
}

func New(classifier Classifier, reg *registry.Registry, opts Options, logger zerolog.Logger) *Router {
	if opts.LoadWeight <= 0 {
		opts.LoadWeight = 0.6
	}
	if opts.LatencyWeight <= 0 {
		opts.LatencyWeight = 0.4
	}
	return &Router{
		classifier:    classifier,
		registry:      reg,
		loadWeight:    opts.LoadWeight,
		latencyWeight: opts.LatencyWeight,
		logger:        logger.With().Str("component", "router").Logger(),
	}
}

// Route resolves a request to an ordered list of agent descriptors.
// One agent is selected per intent. When no eligible agent exists for
// an intent the least-recently-failed agent of that type is used and
// the decision is marked degraded.
func (r *Router) Route(req models.CoordinationRequest) ([]models.AgentDescriptor, models.RoutingDecision) {
	intents := r.classifier.Classify(req.Query)

	decision := models.RoutingDecision{Intents: intents}
	selected := make([]models.AgentDescriptor, 0, len(intents))
	reasons := make([]string, 0, len(intents))

	byType := r.candidatesByType()
	for _, intent := range intents {
		candidates := byType[intent]
		if len(candidates) == 0 {
			reasons = append(reasons, fmt.Sprintf("%s: no agents configured", intent))
			continue
		}

		eligible := make([]models.AgentDescriptor, 0, len(candidates))
		for _, d := range candidates {
			if r.registry.IsEligible(d.ID) {
				eligible = append(eligible, d)
			}
		}

		if len(eligible) == 0 {
			// graceful degradation: pick the candidate whose last
			// failure is oldest, it is the most likely to have recovered
			fallback := r.leastRecentlyFailed(candidates)
			selected = append(selected, fallback)
			decision.Degraded = true
			reasons = append(reasons, fmt.Sprintf("%s: none eligible, fallback to %s", intent, fallback.ID))
			r.logger.Warn().
				Str("agent_type", string(intent)).
				Str("fallback", fallback.ID).
				Msg("no eligible agents, routing degraded")
			continue
		}

		best := r.rank(eligible)[0]
		selected = append(selected, best)
		reasons = append(reasons, fmt.Sprintf("%s: selected %s", intent, best.ID))
	}

	for _, d := range selected {
		decision.SelectedAgents = append(decision.SelectedAgents, d.ID)
	}
	decision.Reasoning = strings.Join(reasons, "; ")

	r.logger.Debug().
		Str("request_id", req.RequestID).
		Strs("selected", decision.SelectedAgents).
		Bool("degraded", decision.Degraded).
		Msg("routing decision")

	return selected, decision
}

func (r *Router) candidatesByType() map[models.AgentType][]models.AgentDescriptor {
	byType := make(map[models.AgentType][]models.AgentDescriptor)
	for _, d := range r.registry.Descriptors() {
		byType[d.Type] = append(byType[d.Type], d)
	}
	return byType
}

// rank orders descriptors by weighted score: load ratio and average
// latency, both lower-is-better. Ties break by agent id so the order
// is deterministic.
func (r *Router) rank(candidates []models.AgentDescriptor) []models.AgentDescriptor {
	ranked := make([]models.AgentDescriptor, len(candidates))
	copy(ranked, candidates)
	scores := make(map[string]float64, len(ranked))
	for _, d := range ranked {
		scores[d.ID] = r.score(d)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si < sj
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

func (r *Router) score(d models.AgentDescriptor) float64 {
	loadRatio := 0.0
	if d.MaxCapacity > 0 {
		loadRatio = float64(r.registry.Load(d.ID)) / float64(d.MaxCapacity)
	}
	// latency normalized against a 5s ceiling so both terms stay in [0,1]
	latency := r.registry.AvgLatency(d.ID).Seconds() / 5.0
	if latency > 1 {
		latency = 1
	}
	return r.loadWeight*loadRatio + r.latencyWeight*latency
}

func (r *Router) leastRecentlyFailed(candidates []models.AgentDescriptor) models.AgentDescriptor {
	best := candidates[0]
	bestFailure := r.registry.LastFailure(best.ID)
	for _, d := range candidates[1:] {
		lf := r.registry.LastFailure(d.ID)
		if lf.Before(bestFailure) || (lf.Equal(bestFailure) && d.ID < best.ID) {
			best = d
			bestFailure = lf
		}
	}
	return best
}
