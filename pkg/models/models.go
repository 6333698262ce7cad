package models

import (
	"time"
)

// AgentType categorizza gli agenti specializzati
type AgentType string

const (
	AgentTypeContentResearch AgentType = "content_research"
	AgentTypeTechnicalSEO    AgentType = "technical_seo"
	AgentTypeProjectPlanning AgentType = "project_planning"
	AgentTypeBRDGeneration   AgentType = "brd_generation"
	AgentTypeSocialMedia     AgentType = "social_media"
)

// Priority indica la priorità di una richiesta
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Sensitivity indica il livello di sensibilità dei dati di una richiesta
type Sensitivity string

const (
	SensitivityStandard Sensitivity = "standard"
	SensitivityHigh     Sensitivity = "high"
)

// AgentDescriptor descrive un agente registrato nel sistema.
// I campi sono statici e caricati dalla configurazione all'avvio;
// lo stato runtime (salute, carico, latenza) vive nel registry.
type AgentDescriptor struct {
	ID                string             `json:"agent_id"`
	Type              AgentType          `json:"agent_type"`
	Endpoint          string             `json:"endpoint"`
	RequiredCardTypes []CardType         `json:"required_card_types,omitempty"`
	MaxCapacity       int                `json:"max_capacity"`
	Timeout           time.Duration      `json:"timeout"`
	ExposurePolicy    DataExposurePolicy `json:"-"`
}

// CoordinationRequest rappresenta una richiesta di coordinamento
type CoordinationRequest struct {
	RequestID        string      `json:"request_id"`
	Query            string      `json:"query"`
	ClientID         string      `json:"client_id,omitempty"`
	UseClientContext bool        `json:"use_client_context"`
	Sensitivity      Sensitivity `json:"sensitivity,omitempty"`
	Priority         Priority    `json:"priority,omitempty"`
	Deadline         time.Time   `json:"deadline,omitempty"`
}

// AgentResponse rappresenta la risposta di un singolo agente.
// Confidence e Latency provengono sempre dalla chiamata reale,
// mai da valori simulati.
type AgentResponse struct {
	AgentID    string        `json:"agent_id"`
	AgentType  AgentType     `json:"agent_type"`
	Payload    string        `json:"payload"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
	Succeeded  bool          `json:"succeeded"`
	ErrorKind  string        `json:"error_kind,omitempty"`
}

// RoutingDecision descrive la decisione di routing per una richiesta
type RoutingDecision struct {
	SelectedAgents []string    `json:"selected_agents"`
	Intents        []AgentType `json:"intents"`
	Reasoning      string      `json:"reasoning"`
	Degraded       bool        `json:"degraded"`
}

// CoordinationResponse è la risposta finale del coordinatore
type CoordinationResponse struct {
	RequestID           string          `json:"request_id"`
	RoutingDecision     RoutingDecision `json:"routing_decision"`
	AgentResponses      []AgentResponse `json:"agent_responses"`
	SynthesizedResponse string          `json:"synthesized_response"`
	ProcessingTime      float64         `json:"processing_time"`
	QualityScore        float64         `json:"quality_score"`
	Partial             bool            `json:"partial"`
	ClientContextUsed   bool            `json:"client_context_used,omitempty"`
}

// AgentStatus fotografa lo stato runtime di un agente
type AgentStatus struct {
	AgentID         string        `json:"agent_id"`
	AgentType       AgentType     `json:"agent_type"`
	State           string        `json:"state"`
	Eligible        bool          `json:"eligible"`
	CurrentLoad     int           `json:"current_load"`
	MaxCapacity     int           `json:"max_capacity"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	SuccessRate     float64       `json:"success_rate"`
	LastFailure     time.Time     `json:"last_failure,omitempty"`
	Endpoint        string        `json:"endpoint"`
}

// SystemHealth descrive lo stato complessivo del sistema
type SystemHealth struct {
	Status         string        `json:"status"`
	Timestamp      time.Time     `json:"timestamp"`
	Agents         []AgentStatus `json:"agents"`
	ActiveRequests int           `json:"active_requests"`
	Uptime         float64       `json:"uptime_seconds"`
}

// QualityMetrics metriche di qualità aggregate
type QualityMetrics struct {
	ResponseAccuracy float64 `json:"response_accuracy"`
	AvgQualityScore  float64 `json:"avg_quality_score"`
	PartialRate      float64 `json:"partial_rate"`
	ErrorRate        float64 `json:"error_rate"`
}

// PerformanceMetrics metriche di performance aggregate
type PerformanceMetrics struct {
	Timestamp          time.Time `json:"timestamp"`
	RequestsPerMinute  float64   `json:"requests_per_minute"`
	AvgResponseTime    float64   `json:"average_response_time"`
	P95ResponseTime    float64   `json:"p95_response_time"`
	P99ResponseTime    float64   `json:"p99_response_time"`
	ErrorRate          float64   `json:"error_rate"`
	InFlightRequests   int       `json:"in_flight_requests"`
	CacheHitRate       float64   `json:"cache_hit_rate"`
	TotalRequests      int64     `json:"total_requests"`
	TotalAgentFailures int64     `json:"total_agent_failures"`
}

// PerformanceDelta è il delta di performance scritto nello strato
// di execution knowledge dopo ogni richiesta coordinata.
type PerformanceDelta struct {
	RequestID      string        `json:"request_id"`
	Timestamp      time.Time     `json:"timestamp"`
	QualityScore   float64       `json:"quality_score"`
	AvgConfidence  float64       `json:"avg_confidence"`
	AvgLatency     time.Duration `json:"avg_latency"`
	AgentsSucceeded int          `json:"agents_succeeded"`
	AgentsFailed    int          `json:"agents_failed"`
	AnswerLength    int          `json:"answer_length"`
}
