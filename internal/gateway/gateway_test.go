package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodoia/agentmesh/internal/coordinator"
	"github.com/biodoia/agentmesh/internal/dispatch"
	"github.com/biodoia/agentmesh/internal/feedback"
	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/internal/optimizer"
	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/internal/router"
	"github.com/biodoia/agentmesh/internal/stats"
	"github.com/biodoia/agentmesh/internal/synthesis"
	"github.com/biodoia/agentmesh/pkg/auth"
	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/biodoia/agentmesh/pkg/resilience"
)

const testSecret = "gateway-test-secret"

// staticStore serves a fixed card set for one client.
type staticStore struct {
	cards map[string][]models.ClientCard
}

func (s *staticStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	cards, ok := s.cards[clientID]
	if !ok {
		return nil, knowledge.ErrNotFound
	}
	return cards, nil
}

func (s *staticStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	return nil
}

func (s *staticStore) List(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.cards))
	for id := range s.cards {
		out = append(out, id)
	}
	return out, nil
}

func (s *staticStore) Close() error { return nil }

// okClient answers every agent call with a fixed payload.
type okClient struct{}

func (okClient) Call(ctx context.Context, desc models.AgentDescriptor, call dispatch.AgentCall) (dispatch.AgentReply, error) {
	return dispatch.AgentReply{Payload: "agent answer", Confidence: 0.9}, nil
}

func newTestGateway(t *testing.T) (*Gateway, *registry.Registry) {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Auth.JWTSecret = testSecret
	cfg.Monitoring.Prometheus.Enabled = false

	policies := models.DefaultExposurePolicies()
	descriptors := []models.AgentDescriptor{
		{ID: "seo-1", Type: models.AgentTypeTechnicalSEO, Endpoint: "http://seo-1", MaxCapacity: 10, ExposurePolicy: policies[models.AgentTypeTechnicalSEO]},
	}

	store := &staticStore{cards: map[string][]models.ClientCard{
		"acme": {{ClientID: "acme", Type: models.CardTypeBrandGuidelines, Version: 1, IsActive: true, Data: map[string]any{"tone": "formal"}}},
		"zeta": {{ClientID: "zeta", Type: models.CardTypeClientProfile, Version: 1, IsActive: true, Data: map[string]any{"summary": "retail"}}},
	}}

	reg := registry.New(resilience.BreakerConfig{
		FailureThreshold: 3,
		BaseCooldown:     time.Hour,
		MaxCooldown:      10 * time.Hour,
	}, descriptors)
	broker := knowledge.NewBroker(store, time.Minute, 16)
	rt := router.New(router.NewKeywordClassifier(nil, ""), reg, router.Options{}, zerolog.Nop())
	dispatcher := dispatch.New(okClient{}, reg, dispatch.Config{MaxAttempts: 1, DefaultTimeout: time.Second}, zerolog.Nop())
	fb := feedback.New(store, broker, time.Second, zerolog.Nop())

	coord := coordinator.New(coordinator.Deps{
		Router:      rt,
		Broker:      broker,
		Optimizer:   optimizer.New(),
		Dispatcher:  dispatcher,
		Synthesizer: synthesis.New(zerolog.Nop()),
		Feedback:    fb,
		Registry:    reg,
		Collector:   stats.NewCollector(),
	}, 5*time.Second, zerolog.Nop())
	t.Cleanup(func() { coord.Close() })

	gw, err := New(cfg, coord)
	require.NoError(t, err)
	return gw, reg
}

func token(t *testing.T, role string, clientAccess ...string) string {
	t.Helper()
	m := auth.NewJWTManager(auth.JWTConfig{SecretKey: testSecret})
	tok, err := m.GenerateToken("test-principal", role, clientAccess)
	require.NoError(t, err)
	return tok
}

func doRequest(t *testing.T, gw *Gateway, method, path, bearer string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := gw.App().Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpointIsPublic(t *testing.T) {
	gw, _ := newTestGateway(t)

	resp := doRequest(t, gw, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	gw, _ := newTestGateway(t)

	t.Run("missing token", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodPost, "/coordinate", "", map[string]any{"query": "seo audit"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodPost, "/coordinate", "garbage", map[string]any{"query": "seo audit"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestCoordinateEndpoint(t *testing.T) {
	gw, _ := newTestGateway(t)
	tok := token(t, auth.RoleService)

	t.Run("success", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodPost, "/coordinate", tok, map[string]any{"query": "seo audit"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "agent answer", body["synthesized_response"])
		assert.NotEmpty(t, body["request_id"])
	})

	t.Run("empty query rejected", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodPost, "/coordinate", tok, map[string]any{"query": ""})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCoordinateClientEndpoint(t *testing.T) {
	gw, _ := newTestGateway(t)

	t.Run("principal with access gets client context", func(t *testing.T) {
		tok := token(t, auth.RoleService, "acme")
		resp := doRequest(t, gw, http.MethodPost, "/coordinate/client", tok, map[string]any{
			"query":     "seo audit",
			"client_id": "acme",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["client_context_used"])
	})

	t.Run("principal without access proceeds without context", func(t *testing.T) {
		tok := token(t, auth.RoleService, "globex")
		resp := doRequest(t, gw, http.MethodPost, "/coordinate/client", tok, map[string]any{
			"query":     "seo audit",
			"client_id": "acme",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Nil(t, body["client_context_used"])
	})

	t.Run("missing client_id rejected", func(t *testing.T) {
		tok := token(t, auth.RoleService, "acme")
		resp := doRequest(t, gw, http.MethodPost, "/coordinate/client", tok, map[string]any{
			"query": "seo audit",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestClientContextEndpointEnforcesAccess(t *testing.T) {
	gw, _ := newTestGateway(t)

	t.Run("denied without access", func(t *testing.T) {
		tok := token(t, auth.RoleService, "globex")
		resp := doRequest(t, gw, http.MethodGet, "/clients/acme/context", tok, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("allowed with wildcard", func(t *testing.T) {
		tok := token(t, auth.RoleService, "*")
		resp := doRequest(t, gw, http.MethodGet, "/clients/acme/context", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "acme", body["client_id"])
	})

	t.Run("unknown client", func(t *testing.T) {
		tok := token(t, auth.RoleService, "*")
		resp := doRequest(t, gw, http.MethodGet, "/clients/ghost/context", tok, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListClientsFiltersByPrincipalAccess(t *testing.T) {
	gw, _ := newTestGateway(t)

	listClients := func(tok string) []string {
		resp := doRequest(t, gw, http.MethodGet, "/clients", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		raw, ok := body["clients"].([]any)
		require.True(t, ok)
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			out = append(out, v.(string))
		}
		return out
	}

	t.Run("scoped principal sees only its clients", func(t *testing.T) {
		clients := listClients(token(t, auth.RoleService, "acme"))
		assert.Equal(t, []string{"acme"}, clients)
	})

	t.Run("wildcard principal sees all clients", func(t *testing.T) {
		clients := listClients(token(t, auth.RoleService, "*"))
		assert.ElementsMatch(t, []string{"acme", "zeta"}, clients)
	})

	t.Run("principal without access sees none", func(t *testing.T) {
		clients := listClients(token(t, auth.RoleService))
		assert.Empty(t, clients)
	})
}

func TestAgentStatusEndpoints(t *testing.T) {
	gw, _ := newTestGateway(t)
	tok := token(t, auth.RoleService)

	t.Run("all agents", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodGet, "/agents/status", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("single agent", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodGet, "/agents/seo-1/status", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "seo-1", body["agent_id"])
		assert.Equal(t, "closed", body["state"])
	})

	t.Run("unknown agent", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodGet, "/agents/ghost/status", tok, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthDetailedReportsUnhealthy(t *testing.T) {
	gw, reg := newTestGateway(t)
	tok := token(t, auth.RoleService)

	resp := doRequest(t, gw, http.MethodGet, "/health/detailed", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for i := 0; i < 3; i++ {
		reg.Report("seo-1", false, time.Millisecond)
	}

	resp = doRequest(t, gw, http.MethodGet, "/health/detailed", tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	gw, reg := newTestGateway(t)

	t.Run("operator forbidden", func(t *testing.T) {
		tok := token(t, auth.RoleOperator)
		resp := doRequest(t, gw, http.MethodPost, "/admin/agents/seo-1/reset", tok, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin can reset an agent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			reg.Report("seo-1", false, time.Millisecond)
		}
		require.False(t, reg.IsEligible("seo-1"))

		tok := token(t, auth.RoleAdmin)
		resp := doRequest(t, gw, http.MethodPost, "/admin/agents/seo-1/reset", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, reg.IsEligible("seo-1"))
	})
}

func TestMaintenanceMode(t *testing.T) {
	gw, _ := newTestGateway(t)
	admin := token(t, auth.RoleAdmin)
	svc := token(t, auth.RoleService)

	resp := doRequest(t, gw, http.MethodPost, "/admin/maintenance", admin, map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("coordination rejected", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodPost, "/coordinate", svc, map[string]any{"query": "seo audit"})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("health still reachable", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("admin can disable", func(t *testing.T) {
		resp := doRequest(t, gw, http.MethodPost, "/admin/maintenance", admin, map[string]any{"enabled": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doRequest(t, gw, http.MethodPost, "/coordinate", svc, map[string]any{"query": "seo audit"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
