package knowledge

import (
	"github.com/biodoia/agentmesh/pkg/models"
)

// levelFields definisce la proiezione fissa di campi per ogni livello
// di esposizione intermedio. full_access non filtra, none svuota.
var levelFields = map[models.ExposureLevel]map[string]bool{
	models.ExposureSummaryOnly: {
		"summary":            true,
		"overview":           true,
		"primary":            true,
		"messaging_pillars":  true,
		"objectives":         true,
	},
	models.ExposureDemographicsOnly: {
		"primary":      true,
		"age_range":    true,
		"regions":      true,
		"demographics": true,
		"interests":    true,
	},
	models.ExposureToneOnly: {
		"tone":              true,
		"voice":             true,
		"avoid_words":       true,
		"preferred_phrases": true,
		"messaging_pillars": true,
	},
	models.ExposureTechnicalOnly: {
		"technical_requirements":  true,
		"compliance_requirements": true,
		"schema":                  true,
		"constraints":             true,
		"integrations":            true,
	},
}

// ProjectionFields restituisce l'insieme di campi ammessi da un livello.
// nil significa "tutti i campi" (full_access).
func ProjectionFields(level models.ExposureLevel) map[string]bool {
	switch level {
	case models.ExposureFull:
		return nil
	case models.ExposureNone:
		return map[string]bool{}
	default:
		if fields, ok := levelFields[level]; ok {
			return fields
		}
		// Livello sconosciuto: nessun campo
		return map[string]bool{}
	}
}

// Project applica la proiezione di un livello ai dati di una card.
// Il risultato è una copia: la card originale non viene mai mutata.
func Project(data map[string]any, level models.ExposureLevel) map[string]any {
	if level == models.ExposureNone || len(data) == 0 {
		return nil
	}

	if level == models.ExposureFull {
		out := make(map[string]any, len(data))
		for k, v := range data {
			out[k] = v
		}
		return out
	}

	allowed := ProjectionFields(level)
	if len(allowed) == 0 {
		return nil
	}

	var out map[string]any
	for k, v := range data {
		if !allowed[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}
