package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/pkg/models"
)

// Writer aggiorna lo strato di execution knowledge dopo ogni risposta
// coordinata. Le scritture avvengono fuori dal percorso della richiesta:
// i fallimenti vengono loggati e mai propagati al chiamante.
type Writer struct {
	store   knowledge.Store
	broker  *knowledge.Broker
	timeout time.Duration
	logger  zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New crea un nuovo feedback writer
func New(store knowledge.Store, broker *knowledge.Broker, timeout time.Duration, logger zerolog.Logger) *Writer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Writer{
		store:   store,
		broker:  broker,
		timeout: timeout,
		logger:  logger.With().Str("component", "feedback").Logger(),
	}
}

// Record registra in modo asincrono le metriche aggregate della
// richiesta e invalida la cache del cliente. Fire-and-forget: il
// chiamante non attende né osserva l'esito.
func (w *Writer) Record(clientID string, req models.CoordinationRequest, responses []models.AgentResponse, finalAnswer string, qualityScore float64) {
	if clientID == "" {
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()

	delta := buildDelta(req.RequestID, responses, finalAnswer, qualityScore)

	// detached from the request context so the write completes even
	// after the caller has already received its response
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.store.Write(ctx, clientID, delta); err != nil {
			w.logger.Error().
				Err(err).
				Str("client_id", clientID).
				Str("request_id", req.RequestID).
				Msg("feedback write failed")
			return
		}

		w.broker.Invalidate(clientID)
		w.logger.Debug().
			Str("client_id", clientID).
			Str("request_id", req.RequestID).
			Float64("quality_score", delta.QualityScore).
			Msg("performance delta recorded")
	}()
}

// Close attende il completamento delle scritture in corso
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

// buildDelta calcola le metriche aggregate della richiesta
func buildDelta(requestID string, responses []models.AgentResponse, finalAnswer string, qualityScore float64) models.PerformanceDelta {
	delta := models.PerformanceDelta{
		RequestID:    requestID,
		Timestamp:    time.Now().UTC(),
		QualityScore: qualityScore,
		AnswerLength: len(finalAnswer),
	}

	var confSum float64
	var latSum time.Duration
	for _, r := range responses {
		if r.Succeeded {
			delta.AgentsSucceeded++
			confSum += r.Confidence
			latSum += r.Latency
		} else {
			delta.AgentsFailed++
		}
	}
	if delta.AgentsSucceeded > 0 {
		delta.AvgConfidence = confSum / float64(delta.AgentsSucceeded)
		delta.AvgLatency = latSum / time.Duration(delta.AgentsSucceeded)
	}
	return delta
}
