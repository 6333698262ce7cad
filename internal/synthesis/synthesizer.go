package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/biodoia/agentmesh/pkg/models"
)

// DegradedAnswer è il marker restituito quando nessun agente ha
// prodotto una risposta valida.
const DegradedAnswer = "[degraded] no agent responses available"

// Synthesizer fonde le risposte degli agenti in un'unica risposta
// finale, allineata al tono del brand quando l'albero di conoscenza
// contiene brand guidelines.
type Synthesizer struct {
	logger zerolog.Logger
}

// New crea un nuovo synthesizer
func New(logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		logger: logger.With().Str("component", "synthesizer").Logger(),
	}
}

// Synthesize fonde le risposte in ordine di confidence decrescente
// (parità risolta per agent id) e applica il post-processing di brand
// tone se disponibile. La fusione è deterministica: gli stessi input
// producono sempre lo stesso output.
func (s *Synthesizer) Synthesize(responses []models.AgentResponse, tree *models.ClientKnowledgeTree) string {
	succeeded := make([]models.AgentResponse, 0, len(responses))
	for _, r := range responses {
		if r.Succeeded && r.Payload != "" {
			succeeded = append(succeeded, r)
		}
	}

	if len(succeeded) == 0 {
		s.logger.Warn().Msg("no successful agent responses, returning degraded answer")
		return DegradedAnswer
	}

	sort.Slice(succeeded, func(i, j int) bool {
		if succeeded[i].Confidence != succeeded[j].Confidence {
			return succeeded[i].Confidence > succeeded[j].Confidence
		}
		return succeeded[i].AgentID < succeeded[j].AgentID
	})

	var b strings.Builder
	for i, r := range succeeded {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if len(succeeded) > 1 {
			fmt.Fprintf(&b, "[%s] ", r.AgentType)
		}
		b.WriteString(strings.TrimSpace(r.Payload))
	}

	answer := b.String()
	if tree != nil {
		answer = s.applyBrandTone(answer, tree)
	}
	return answer
}

// applyBrandTone sostituisce i termini vietati con le frasi preferite
// indicate nelle brand guidelines. L'operazione è idempotente: una
// seconda applicazione non modifica ulteriormente il testo.
func (s *Synthesizer) applyBrandTone(answer string, tree *models.ClientKnowledgeTree) string {
	card, ok := tree.Card(models.CardTypeBrandGuidelines)
	if !ok {
		return answer
	}

	replacements := toneReplacements(card.Data)
	if len(replacements) == 0 {
		return answer
	}

	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, avoid := range keys {
		preferred := replacements[avoid]
		// skip replacements whose target still contains the avoided
		// term, they would never converge
		if strings.Contains(strings.ToLower(preferred), avoid) {
			continue
		}
		answer = replaceInsensitive(answer, avoid, preferred)
	}
	return answer
}

// toneReplacements accoppia avoid_words e preferred_phrases per indice.
// Parole vietate senza frase preferita corrispondente vengono ignorate:
// rimuoverle cambierebbe il senso del testo.
func toneReplacements(data map[string]any) map[string]string {
	avoid := stringSlice(data["avoid_words"])
	preferred := stringSlice(data["preferred_phrases"])

	out := make(map[string]string)
	for i, w := range avoid {
		if i >= len(preferred) {
			break
		}
		w = strings.ToLower(strings.TrimSpace(w))
		p := strings.TrimSpace(preferred[i])
		if w != "" && p != "" {
			out[w] = p
		}
	}
	return out
}

// replaceInsensitive sostituisce ogni occorrenza case-insensitive di
// old con new, preservando il resto del testo.
func replaceInsensitive(text, old, new string) string {
	lower := strings.ToLower(text)
	lowerOld := strings.ToLower(old)

	var b strings.Builder
	start := 0
	for {
		idx := strings.Index(lower[start:], lowerOld)
		if idx < 0 {
			b.WriteString(text[start:])
			return b.String()
		}
		abs := start + idx
		b.WriteString(text[start:abs])
		b.WriteString(new)
		start = abs + len(old)
	}
}

func stringSlice(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, e := range vs {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
