package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// CardType classifica le client card per il filtraggio dei dati
type CardType string

const (
	// Core cards
	CardTypeClientProfile   CardType = "client_profile"
	CardTypeBrandGuidelines CardType = "brand_guidelines"
	CardTypeTargetAudience  CardType = "target_audience"

	// Derived knowledge
	CardTypeContentStrategy CardType = "content_strategy"
	CardTypeContentBrief    CardType = "content_brief"

	// Execution knowledge
	CardTypePerformanceHistory  CardType = "performance_history"
	CardTypeWorkflowPreferences CardType = "workflow_preferences"

	// Predictive knowledge
	CardTypeRecommendations CardType = "recommendations"
	CardTypeRiskFlags       CardType = "risk_flags"
)

// KnowledgeLayerName identifica uno dei quattro strati dell'albero
type KnowledgeLayerName string

const (
	LayerCore       KnowledgeLayerName = "core"
	LayerDerived    KnowledgeLayerName = "derived"
	LayerExecution  KnowledgeLayerName = "execution"
	LayerPredictive KnowledgeLayerName = "predictive"
)

// cardLayers mappa ogni card type sul proprio strato
var cardLayers = map[CardType]KnowledgeLayerName{
	CardTypeClientProfile:       LayerCore,
	CardTypeBrandGuidelines:     LayerCore,
	CardTypeTargetAudience:      LayerCore,
	CardTypeContentStrategy:     LayerDerived,
	CardTypeContentBrief:        LayerDerived,
	CardTypePerformanceHistory:  LayerExecution,
	CardTypeWorkflowPreferences: LayerExecution,
	CardTypeRecommendations:     LayerPredictive,
	CardTypeRiskFlags:           LayerPredictive,
}

// LayerOf restituisce lo strato di appartenenza di un card type.
// Card type sconosciuti finiscono nello strato derived.
func LayerOf(ct CardType) KnowledgeLayerName {
	if layer, ok := cardLayers[ct]; ok {
		return layer
	}
	return LayerDerived
}

// AuditEntry è una voce del log append-only di una card
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// ClientCard è un record tipizzato e versionato di conoscenza su un cliente.
// È di proprietà del knowledge store: il broker la legge e la aggrega soltanto.
type ClientCard struct {
	CardID     uuid.UUID      `json:"card_id"`
	ClientID   string         `json:"client_id"`
	Type       CardType       `json:"card_type"`
	Version    int            `json:"version"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	IsActive   bool           `json:"is_active"`
	AuditTrail []AuditEntry   `json:"audit_trail,omitempty"`
}

// KnowledgeLayer è uno strato dell'albero di conoscenza.
// Present distingue "strato vuoto" da "strato mai popolato": l'assenza
// di card per uno strato non è un errore.
type KnowledgeLayer struct {
	Present bool                    `json:"present"`
	Cards   map[CardType]ClientCard `json:"cards,omitempty"`
}

// ClientKnowledgeTree è l'aggregato per-cliente a quattro strati.
// Invariante: esattamente un albero per client id.
type ClientKnowledgeTree struct {
	ClientID   string         `json:"client_id"`
	Version    int            `json:"version"`
	BuiltAt    time.Time      `json:"built_at"`
	Core       KnowledgeLayer `json:"core"`
	Derived    KnowledgeLayer `json:"derived"`
	Execution  KnowledgeLayer `json:"execution"`
	Predictive KnowledgeLayer `json:"predictive"`
}

// Layer restituisce lo strato con il nome indicato
func (t *ClientKnowledgeTree) Layer(name KnowledgeLayerName) *KnowledgeLayer {
	switch name {
	case LayerCore:
		return &t.Core
	case LayerDerived:
		return &t.Derived
	case LayerExecution:
		return &t.Execution
	case LayerPredictive:
		return &t.Predictive
	default:
		return nil
	}
}

// Card restituisce la card attiva di un certo tipo, se presente
func (t *ClientKnowledgeTree) Card(ct CardType) (ClientCard, bool) {
	layer := t.Layer(LayerOf(ct))
	if layer == nil || !layer.Present {
		return ClientCard{}, false
	}
	card, ok := layer.Cards[ct]
	return card, ok
}

// CardTypes elenca i card type presenti nell'albero, in ordine stabile
func (t *ClientKnowledgeTree) CardTypes() []CardType {
	var out []CardType
	for _, name := range []KnowledgeLayerName{LayerCore, LayerDerived, LayerExecution, LayerPredictive} {
		layer := t.Layer(name)
		if !layer.Present {
			continue
		}
		for ct := range layer.Cards {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
