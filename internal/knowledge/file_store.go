package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileStore persiste le card come un file JSON per cliente
// (<data_dir>/<client_id>.json contenente l'array di card).
type FileStore struct {
	dir string

	// Serializza i read-modify-write dello stesso file
	mu sync.Mutex
}

// NewFileStore crea un nuovo store su filesystem
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: data directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(clientID string) string {
	return filepath.Join(s.dir, clientID+".json")
}

// Load carica tutte le card di un cliente
func (s *FileStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	data, err := os.ReadFile(s.path(clientID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var cards []models.ClientCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("%w: corrupt card file for %s: %v", ErrStoreUnavailable, clientID, err)
	}

	return cards, nil
}

// Write appende il delta di performance alla card performance_history
// del cliente, creandola se assente. La scrittura è atomica (tmp+rename).
func (s *FileStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.Load(ctx, clientID)
	if err != nil && err != ErrNotFound {
		return err
	}

	cards = appendPerformanceDelta(cards, clientID, delta)

	data, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tmp := s.path(clientID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, s.path(clientID)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	log.Debug().Str("client", clientID).Str("request", delta.RequestID).Msg("Performance delta written")
	return nil
}

// List elenca i client id presenti nella directory
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close non ha risorse da rilasciare
func (s *FileStore) Close() error { return nil }

// appendPerformanceDelta aggiorna (o crea) la card performance_history
// con una nuova entry. Usato da tutti i backend per semantica uniforme.
func appendPerformanceDelta(cards []models.ClientCard, clientID string, delta models.PerformanceDelta) []models.ClientCard {
	now := time.Now().UTC()

	entry := map[string]any{
		"request_id":       delta.RequestID,
		"timestamp":        delta.Timestamp,
		"quality_score":    delta.QualityScore,
		"avg_confidence":   delta.AvgConfidence,
		"avg_latency_ms":   delta.AvgLatency.Milliseconds(),
		"agents_succeeded": delta.AgentsSucceeded,
		"agents_failed":    delta.AgentsFailed,
		"answer_length":    delta.AnswerLength,
	}

	for i := range cards {
		if cards[i].Type != models.CardTypePerformanceHistory || !cards[i].IsActive {
			continue
		}

		if cards[i].Data == nil {
			cards[i].Data = map[string]any{}
		}
		entries, _ := cards[i].Data["entries"].([]any)
		cards[i].Data["entries"] = append(entries, entry)
		cards[i].Version++
		cards[i].UpdatedAt = now
		cards[i].AuditTrail = append(cards[i].AuditTrail, models.AuditEntry{
			Timestamp: now,
			Actor:     "feedback-writer",
			Action:    "append_performance",
			Detail:    delta.RequestID,
		})
		return cards
	}

	// Nessuna card performance_history attiva: creala
	return append(cards, models.ClientCard{
		CardID:    uuid.New(),
		ClientID:  clientID,
		Type:      models.CardTypePerformanceHistory,
		Version:   1,
		Data:      map[string]any{"entries": []any{entry}},
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
		AuditTrail: []models.AuditEntry{{
			Timestamp: now,
			Actor:     "feedback-writer",
			Action:    "create",
			Detail:    delta.RequestID,
		}},
	})
}
