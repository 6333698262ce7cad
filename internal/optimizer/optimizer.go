package optimizer

import (
	"github.com/biodoia/agentmesh/pkg/models"
)

// Optimizer rimodella il contesto filtrato nella forma di payload che
// ogni agent type si aspetta. Trasformazione pura e stateless: input
// identici producono sempre output identici.
type Optimizer struct{}

// New crea un nuovo optimizer
func New() *Optimizer {
	return &Optimizer{}
}

// Format produce il payload di contesto per un agent type.
// Gli agent type sconosciuti ricevono il contesto filtrato invariato,
// con i card type come chiavi.
func (o *Optimizer) Format(agentType models.AgentType, filtered map[models.CardType]map[string]any) map[string]any {
	if len(filtered) == 0 {
		return nil
	}

	switch agentType {
	case models.AgentTypeContentResearch:
		return o.formatContentResearch(filtered)
	case models.AgentTypeTechnicalSEO:
		return o.formatTechnicalSEO(filtered)
	case models.AgentTypeSocialMedia:
		return o.formatSocialMedia(filtered)
	case models.AgentTypeProjectPlanning:
		return o.formatProjectPlanning(filtered)
	case models.AgentTypeBRDGeneration:
		return o.formatBRDGeneration(filtered)
	default:
		return passthrough(filtered)
	}
}

// formatContentResearch: gli agenti di content research ricevono
// brand voice, profilo audience e strategia di contenuto.
func (o *Optimizer) formatContentResearch(filtered map[models.CardType]map[string]any) map[string]any {
	out := make(map[string]any)
	putIfPresent(out, "brandVoice", filtered[models.CardTypeBrandGuidelines])
	putIfPresent(out, "audienceProfile", filtered[models.CardTypeTargetAudience])
	putIfPresent(out, "contentStrategy", filtered[models.CardTypeContentStrategy])
	putIfPresent(out, "clientProfile", filtered[models.CardTypeClientProfile])
	putIfPresent(out, "contentBrief", filtered[models.CardTypeContentBrief])
	putIfPresent(out, "performanceSummary", filtered[models.CardTypePerformanceHistory])
	putIfPresent(out, "recommendations", filtered[models.CardTypeRecommendations])
	return nonEmpty(out)
}

// formatTechnicalSEO: gli agenti SEO tecnici ricevono un riassunto di
// tono, requisiti tecnici e note di compliance.
func (o *Optimizer) formatTechnicalSEO(filtered map[models.CardType]map[string]any) map[string]any {
	out := make(map[string]any)
	putIfPresent(out, "toneSummary", filtered[models.CardTypeBrandGuidelines])
	putIfPresent(out, "audienceSummary", filtered[models.CardTypeTargetAudience])

	technical := make(map[string]any)
	mergeFields(technical, filtered[models.CardTypeClientProfile], "technical_requirements", "schema", "constraints", "integrations")
	mergeFields(technical, filtered[models.CardTypeRiskFlags], "technical_requirements", "constraints")
	putIfPresent(out, "technicalRequirements", technical)

	compliance := make(map[string]any)
	mergeFields(compliance, filtered[models.CardTypeClientProfile], "compliance_requirements")
	mergeFields(compliance, filtered[models.CardTypeRiskFlags], "compliance_requirements")
	putIfPresent(out, "complianceNotes", compliance)

	putIfPresent(out, "strategySummary", filtered[models.CardTypeContentStrategy])
	return nonEmpty(out)
}

// formatSocialMedia: tono, audience e brief correnti
func (o *Optimizer) formatSocialMedia(filtered map[models.CardType]map[string]any) map[string]any {
	out := make(map[string]any)
	putIfPresent(out, "brandVoice", filtered[models.CardTypeBrandGuidelines])
	putIfPresent(out, "audience", filtered[models.CardTypeTargetAudience])
	putIfPresent(out, "briefs", filtered[models.CardTypeContentBrief])
	return nonEmpty(out)
}

// formatProjectPlanning: workflow, strategia e storico
func (o *Optimizer) formatProjectPlanning(filtered map[models.CardType]map[string]any) map[string]any {
	out := make(map[string]any)
	putIfPresent(out, "clientSummary", filtered[models.CardTypeClientProfile])
	putIfPresent(out, "workflowPreferences", filtered[models.CardTypeWorkflowPreferences])
	putIfPresent(out, "strategy", filtered[models.CardTypeContentStrategy])
	putIfPresent(out, "performanceHistory", filtered[models.CardTypePerformanceHistory])
	putIfPresent(out, "recommendations", filtered[models.CardTypeRecommendations])
	return nonEmpty(out)
}

// formatBRDGeneration: profilo cliente, sintesi strategia e rischi
func (o *Optimizer) formatBRDGeneration(filtered map[models.CardType]map[string]any) map[string]any {
	out := make(map[string]any)
	putIfPresent(out, "clientProfile", filtered[models.CardTypeClientProfile])
	putIfPresent(out, "strategySummary", filtered[models.CardTypeContentStrategy])
	putIfPresent(out, "riskFlags", filtered[models.CardTypeRiskFlags])
	return nonEmpty(out)
}

// passthrough mantiene il contesto filtrato invariato
func passthrough(filtered map[models.CardType]map[string]any) map[string]any {
	out := make(map[string]any, len(filtered))
	for ct, fields := range filtered {
		out[string(ct)] = fields
	}
	return out
}

func putIfPresent(out map[string]any, key string, fields map[string]any) {
	if len(fields) > 0 {
		out[key] = fields
	}
}

func mergeFields(dst map[string]any, src map[string]any, keys ...string) {
	for _, k := range keys {
		if v, ok := src[k]; ok {
			dst[k] = v
		}
	}
}

func nonEmpty(out map[string]any) map[string]any {
	if len(out) == 0 {
		return nil
	}
	return out
}
