package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roamline/roamline/internal/agent"
	"github.com/roamline/roamline/internal/config"
	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/llm"
	"github.com/roamline/roamline/internal/logging"
	"github.com/roamline/roamline/internal/places"
	"github.com/roamline/roamline/internal/store"
	"github.com/roamline/roamline/internal/subagent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, store.Store, *llm.MockClient) {
	t.Helper()
	log := logging.New(io.Discard, "debug")
	st := store.NewMemoryStore(time.Minute, log)
	t.Cleanup(func() { _ = st.Close() })

	mockLLM := &llm.MockClient{ProviderName: "mock"}
	travel := subagent.NewRunner(
		&subagent.StaticSearcher{Kind: "accommodation"},
		&subagent.StaticSearcher{Kind: "flight"},
		time.Second, log,
	)
	sv := agent.NewSupervisor(st, mockLLM, &places.MockClient{}, travel, log)
	return New(config.Defaults(), sv, st, log), st, mockLLM
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
}

func TestSessionLifecycle(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/sessions", CreateSessionRequest{
		Trip: domain.TripInfo{Destination: "Lisbon", DurationDays: 3},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StateInfoGathering, created.State)
	assert.Equal(t, "Lisbon", created.Trip.Destination)

	rec = doJSON(t, h, http.MethodGet, "/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Contains(t, list["sessions"], created.ID)

	rec = doJSON(t, h, http.MethodDelete, "/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTurnEndpoint(t *testing.T) {
	srv, st, mockLLM := testServer(t)
	h := srv.Handler()

	session, err := st.Create(domain.TripInfo{})
	require.NoError(t, err)

	mockLLM.GenerateFunc = func(ctx context.Context, req llm.Request) (*llm.Reply, error) {
		return &llm.Reply{
			Message: "Sounds fun! How many days?",
			Fields:  json.RawMessage(`{"destination": "Rome"}`),
		}, nil
	}

	rec := doJSON(t, h, http.MethodPost, "/v1/turn", domain.TurnRequest{
		SessionID: session.ID,
		Trigger:   domain.TriggerUserMessage,
		Message:   "I want to see Rome",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Rome", resp.TripInfo.Destination)
	assert.Equal(t, "Sounds fun! How many days?", resp.Message)
}

func TestTurnEndpointErrors(t *testing.T) {
	srv, st, _ := testServer(t)
	h := srv.Handler()

	session, err := st.Create(domain.TripInfo{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		body     any
		raw      string
		wantCode int
	}{
		{"unknown session", domain.TurnRequest{
			SessionID: "nope", Trigger: domain.TriggerUserMessage, Message: "hi",
		}, "", http.StatusNotFound},
		{"missing message", domain.TurnRequest{
			SessionID: session.ID, Trigger: domain.TriggerUserMessage,
		}, "", http.StatusBadRequest},
		{"malformed body", nil, "{not json", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tc.raw != "" {
				req := httptest.NewRequest(http.MethodPost, "/v1/turn", bytes.NewBufferString(tc.raw))
				rec = httptest.NewRecorder()
				h.ServeHTTP(rec, req)
			} else {
				rec = doJSON(t, h, http.MethodPost, "/v1/turn", tc.body)
			}
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not found", resp["error"])
}

func TestWebSocketRequiresKnownSession(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/ws?sessionId=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		cfg  config.ServerConfig
		want string
	}{
		{config.ServerConfig{Bind: "loopback", Port: 8093}, "127.0.0.1:8093"},
		{config.ServerConfig{Bind: "lan", Port: 8093}, "0.0.0.0:8093"},
		{config.ServerConfig{Bind: "custom", Host: "10.0.0.5", Port: 9000}, "10.0.0.5:9000"},
		{config.ServerConfig{Bind: "custom", Port: 9000}, "0.0.0.0:9000"},
		{config.ServerConfig{Port: 8093}, "127.0.0.1:8093"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%s", tc.cfg.Bind, tc.want), func(t *testing.T) {
			assert.Equal(t, tc.want, resolveBindAddr(tc.cfg))
		})
	}
}
