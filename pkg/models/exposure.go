package models

// ExposureLevel indica quanto dei campi di una card viene rivelato
// a un determinato agent type. I livelli sono monotonicamente
// restrittivi: none produce un insieme vuoto, full_access la card
// non filtrata.
type ExposureLevel string

const (
	ExposureFull             ExposureLevel = "full_access"
	ExposureSummaryOnly      ExposureLevel = "summary_only"
	ExposureDemographicsOnly ExposureLevel = "demographics_only"
	ExposureToneOnly         ExposureLevel = "tone_and_messaging_only"
	ExposureTechnicalOnly    ExposureLevel = "technical_only"
	ExposureNone             ExposureLevel = "none"
)

// Downgrade abbassa il livello di un gradino sull'ordinamento fisso
// full_access > summary_only > {demographics, tone, technical} > none.
// I livelli intermedi sono specializzazioni laterali dello stesso rango:
// il downgrade di ciascuno, come quello di summary_only, porta a none.
func (l ExposureLevel) Downgrade() ExposureLevel {
	switch l {
	case ExposureFull:
		return ExposureSummaryOnly
	case ExposureSummaryOnly, ExposureDemographicsOnly, ExposureToneOnly, ExposureTechnicalOnly:
		return ExposureNone
	default:
		return ExposureNone
	}
}

// DataExposurePolicy mappa (card type) -> livello di esposizione per
// un singolo agent type. I card type senza entry risolvono a none.
type DataExposurePolicy map[CardType]ExposureLevel

// Resolve restituisce il livello per un card type, con default none
func (p DataExposurePolicy) Resolve(ct CardType) ExposureLevel {
	if p == nil {
		return ExposureNone
	}
	if level, ok := p[ct]; ok {
		return level
	}
	return ExposureNone
}

// DefaultExposurePolicies restituisce le policy di esposizione di default
// per ogni agent type conosciuto.
func DefaultExposurePolicies() map[AgentType]DataExposurePolicy {
	return map[AgentType]DataExposurePolicy{
		AgentTypeContentResearch: {
			CardTypeClientProfile:      ExposureFull,
			CardTypeBrandGuidelines:    ExposureFull,
			CardTypeTargetAudience:     ExposureFull,
			CardTypeContentStrategy:    ExposureFull,
			CardTypeContentBrief:       ExposureFull,
			CardTypePerformanceHistory: ExposureSummaryOnly,
			CardTypeRecommendations:    ExposureSummaryOnly,
		},
		AgentTypeTechnicalSEO: {
			CardTypeClientProfile:   ExposureTechnicalOnly,
			CardTypeBrandGuidelines: ExposureToneOnly,
			CardTypeTargetAudience:  ExposureDemographicsOnly,
			CardTypeContentStrategy: ExposureSummaryOnly,
			CardTypeRiskFlags:       ExposureTechnicalOnly,
		},
		AgentTypeProjectPlanning: {
			CardTypeClientProfile:       ExposureSummaryOnly,
			CardTypeContentStrategy:     ExposureFull,
			CardTypeWorkflowPreferences: ExposureFull,
			CardTypePerformanceHistory:  ExposureSummaryOnly,
			CardTypeRecommendations:     ExposureFull,
		},
		AgentTypeBRDGeneration: {
			CardTypeClientProfile:   ExposureFull,
			CardTypeContentStrategy: ExposureSummaryOnly,
			CardTypeRiskFlags:       ExposureFull,
		},
		AgentTypeSocialMedia: {
			CardTypeBrandGuidelines: ExposureToneOnly,
			CardTypeTargetAudience:  ExposureDemographicsOnly,
			CardTypeContentBrief:    ExposureSummaryOnly,
		},
	}
}
