package knowledge

import (
	"context"
	"time"

	"github.com/biodoia/agentmesh/pkg/cache"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Broker media ogni accesso alla conoscenza cliente: costruisce il
// ClientKnowledgeTree dal backend, lo mantiene in cache con TTL e
// applica le policy di esposizione per produrre il contesto filtrato
// specifico di ogni agente.
//
// Richieste concorrenti per lo stesso cliente non in cache collassano
// in un singolo fetch (single-flight): tutti i chiamanti attendono lo
// stesso load in corso invece di duplicarlo.
type Broker struct {
	store Store
	cache *cache.MemoryCache
	ttl   time.Duration
	group singleflight.Group
}

// NewBroker crea un nuovo broker
func NewBroker(store Store, ttl time.Duration, maxEntries int) *Broker {
	return &Broker{
		store: store,
		cache: cache.NewMemoryCache(maxEntries, ttl),
		ttl:   ttl,
	}
}

// Tree restituisce l'albero di conoscenza del cliente, dalla cache se
// fresco, altrimenti caricandolo dal backend con single-flight.
func (b *Broker) Tree(ctx context.Context, clientID string) (*models.ClientKnowledgeTree, error) {
	if v, ok := b.cache.Get(clientID); ok {
		return v.(*models.ClientKnowledgeTree), nil
	}

	v, err, shared := b.group.Do(clientID, func() (any, error) {
		// Double-check: un altro flight potrebbe aver già popolato la cache
		if v, ok := b.cache.Get(clientID); ok {
			return v, nil
		}

		cards, err := b.store.Load(ctx, clientID)
		if err != nil {
			return nil, err
		}

		tree := BuildTree(clientID, cards)
		b.cache.Set(clientID, tree, b.ttl)

		log.Debug().
			Str("client", clientID).
			Int("version", tree.Version).
			Int("card_types", len(tree.CardTypes())).
			Msg("Knowledge tree built")

		return tree, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		log.Debug().Str("client", clientID).Msg("Knowledge fetch collapsed into in-flight load")
	}

	return v.(*models.ClientKnowledgeTree), nil
}

// FilteredContext produce il contesto cliente filtrato per un agente:
// per ogni card type presente nell'albero risolve il livello di
// esposizione dalla policy dell'agente (default none), lo degrada di un
// gradino se la sensibilità è alta, e proietta solo i campi ammessi.
//
// Il contesto cliente è best-effort: se il backend non è raggiungibile
// il risultato è vuoto ma la richiesta non fallisce.
func (b *Broker) FilteredContext(ctx context.Context, desc models.AgentDescriptor, clientID string, sensitivity models.Sensitivity) (map[models.CardType]map[string]any, error) {
	tree, err := b.Tree(ctx, clientID)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		log.Warn().
			Err(err).
			Str("client", clientID).
			Str("agent", desc.ID).
			Msg("Knowledge store unavailable, degrading to empty context")
		return nil, ErrStoreUnavailable
	}

	var out map[models.CardType]map[string]any
	for _, ct := range tree.CardTypes() {
		level := desc.ExposurePolicy.Resolve(ct)
		if sensitivity == models.SensitivityHigh {
			level = level.Downgrade()
		}
		if level == models.ExposureNone {
			continue
		}

		card, ok := tree.Card(ct)
		if !ok {
			continue
		}

		projected := Project(card.Data, level)
		if len(projected) == 0 {
			continue
		}

		if out == nil {
			out = make(map[models.CardType]map[string]any)
		}
		out[ct] = projected
	}

	return out, nil
}

// ExposurePreview descrive quali card type verrebbero esposti a ogni
// agent type per un cliente, senza rivelarne i dati.
type ExposurePreview struct {
	ClientID    string                                                  `json:"client_id"`
	CardTypes   []models.CardType                                       `json:"card_types"`
	TreeVersion int                                                     `json:"tree_version"`
	Exposure    map[models.AgentType]map[models.CardType]models.ExposureLevel `json:"exposure"`
}

// Preview calcola l'anteprima di esposizione per un cliente
func (b *Broker) Preview(ctx context.Context, clientID string, descriptors []models.AgentDescriptor) (*ExposurePreview, error) {
	tree, err := b.Tree(ctx, clientID)
	if err != nil {
		return nil, err
	}

	preview := &ExposurePreview{
		ClientID:    clientID,
		CardTypes:   tree.CardTypes(),
		TreeVersion: tree.Version,
		Exposure:    make(map[models.AgentType]map[models.CardType]models.ExposureLevel),
	}

	for _, desc := range descriptors {
		if _, seen := preview.Exposure[desc.Type]; seen {
			continue
		}
		levels := make(map[models.CardType]models.ExposureLevel)
		for _, ct := range preview.CardTypes {
			if level := desc.ExposurePolicy.Resolve(ct); level != models.ExposureNone {
				levels[ct] = level
			}
		}
		preview.Exposure[desc.Type] = levels
	}

	return preview, nil
}

// Invalidate rimuove l'albero di un cliente dalla cache, così la
// prossima richiesta osserva lo stato aggiornato del backend.
func (b *Broker) Invalidate(clientID string) {
	b.cache.Delete(clientID)
	log.Debug().Str("client", clientID).Msg("Knowledge tree invalidated")
}

// ListClients elenca i client id conosciuti dal backend
func (b *Broker) ListClients(ctx context.Context) ([]string, error) {
	return b.store.List(ctx)
}

// CacheStats espone le statistiche della cache per il monitoring
func (b *Broker) CacheStats() cache.Stats {
	return b.cache.Stats()
}

// Close rilascia cache e backend
func (b *Broker) Close() error {
	b.cache.Close()
	return b.store.Close()
}
