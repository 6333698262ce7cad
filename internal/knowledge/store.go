package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/models"
)

var (
	// ErrNotFound indica che il cliente non esiste nel knowledge store
	ErrNotFound = errors.New("client not found")

	// ErrStoreUnavailable indica un errore di accesso al backend.
	// Il broker degrada a contesto vuoto, non propaga mai questo
	// errore alla richiesta.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrAccessDenied indica che il principal non è autorizzato sul cliente
	ErrAccessDenied = errors.New("access to client denied")
)

// Store è l'interfaccia stretta verso il backend di persistenza delle
// client card. Le implementazioni (file, database, redis, api) sono
// intercambiabili dietro questa interfaccia.
type Store interface {
	// Load carica tutte le card di un cliente
	Load(ctx context.Context, clientID string) ([]models.ClientCard, error)

	// Write appende un delta di performance allo strato di execution
	// knowledge del cliente
	Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error

	// List elenca i client id conosciuti dal backend
	List(ctx context.Context) ([]string, error)

	// Close rilascia le risorse del backend
	Close() error
}

// NewStore istanzia il backend selezionato dalla configurazione
func NewStore(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.DataDirectory)
	case "database":
		return NewSQLStore(cfg)
	case "redis":
		return NewRedisStore(cfg)
	case "api":
		return NewAPIStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
