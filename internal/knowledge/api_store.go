package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/go-resty/resty/v2"
)

// APIStore raggiunge un knowledge service remoto via HTTP.
// Endpoints attesi:
//
//	GET  /clients                          -> {"client_ids": [...]}
//	GET  /clients/{id}/cards               -> [card, ...]
//	POST /clients/{id}/performance         <- delta
type APIStore struct {
	client *resty.Client
}

// NewAPIStore crea un nuovo store HTTP
func NewAPIStore(cfg *config.StorageConfig) (*APIStore, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api store: base url not configured")
	}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &APIStore{client: client}, nil
}

// Load carica tutte le card di un cliente
func (s *APIStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	var cards []models.ClientCard

	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&cards).
		Get(fmt.Sprintf("/clients/%s/cards", clientID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return cards, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrStoreUnavailable, resp.StatusCode())
	}
}

// Write invia il delta di performance al servizio remoto
func (s *APIStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(delta).
		Post(fmt.Sprintf("/clients/%s/performance", clientID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: unexpected status %d", ErrStoreUnavailable, resp.StatusCode())
	}
	return nil
}

// List elenca i client id conosciuti dal servizio remoto
func (s *APIStore) List(ctx context.Context) ([]string, error) {
	var body struct {
		ClientIDs []string `json:"client_ids"`
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/clients")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrStoreUnavailable, resp.StatusCode())
	}
	return body.ClientIDs, nil
}

// Close non ha risorse da rilasciare
func (s *APIStore) Close() error { return nil }
