package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	cardsKeyPrefix = "agentmesh:cards:"
	clientsSetKey  = "agentmesh:clients"
)

// RedisStore usa Redis come document store: le card di un cliente
// vivono in un hash (campo = card id, valore = card serializzata JSON),
// l'insieme dei clienti in un set.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore crea un nuovo store Redis e verifica la connessione
func NewRedisStore(cfg *config.StorageConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func cardsKey(clientID string) string { return cardsKeyPrefix + clientID }

// Load carica tutte le card di un cliente
func (s *RedisStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	fields, err := s.client.HGetAll(ctx, cardsKey(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	cards := make([]models.ClientCard, 0, len(fields))
	for id, raw := range fields {
		var card models.ClientCard
		if err := json.Unmarshal([]byte(raw), &card); err != nil {
			return nil, fmt.Errorf("%w: corrupt card %s for %s: %v", ErrStoreUnavailable, id, clientID, err)
		}
		cards = append(cards, card)
	}

	// Ordine stabile per tipo e versione
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Type != cards[j].Type {
			return cards[i].Type < cards[j].Type
		}
		return cards[i].Version < cards[j].Version
	})
	return cards, nil
}

// Write appende il delta di performance alla card performance_history
func (s *RedisStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	cards, err := s.Load(ctx, clientID)
	if err != nil && err != ErrNotFound {
		return err
	}

	updated := appendPerformanceDelta(cards, clientID, delta)

	// Riscrivi solo la card performance_history aggiornata
	for _, card := range updated {
		if card.Type != models.CardTypePerformanceHistory || !card.IsActive {
			continue
		}

		raw, err := json.Marshal(card)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, cardsKey(clientID), card.CardID.String(), raw)
		pipe.SAdd(ctx, clientsSetKey, clientID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: performance card not materialized for %s", ErrStoreUnavailable, clientID)
}

// List elenca i client id registrati nel set
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, clientsSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close chiude il client Redis
func (s *RedisStore) Close() error { return s.client.Close() }
