package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewatch-systems/gatewatch/internal/bans"
	"github.com/gatewatch-systems/gatewatch/internal/models"
	"github.com/gatewatch-systems/gatewatch/internal/query"
	"github.com/gatewatch-systems/gatewatch/internal/repository"
	"github.com/gatewatch-systems/gatewatch/internal/service"
	"github.com/gatewatch-systems/gatewatch/internal/stats"
)

type fixture struct {
	handler  *Handler
	store    *stats.Store
	registry *bans.Registry
	events   *repository.InMemoryStore
}

func newFixture() *fixture {
	store := stats.NewStore(stats.Config{})
	registry := bans.NewRegistry(bans.Config{DefaultTTL: time.Hour})
	events := repository.NewInMemoryStore(0)

	svc := service.NewService(store, registry)
	q := query.NewService(events)

	return &fixture{
		handler:  NewHandler(svc, q, nil),
		store:    store,
		registry: registry,
		events:   events,
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.HealthCheck(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestOverview(t *testing.T) {
	f := newFixture()
	f.store.Record(&models.Event{Timestamp: time.Now(), SrcIP: "1.1.1.1", Country: "DE"})
	f.registry.Ban(bans.BanParams{IP: "9.9.9.9", Source: models.BanSourceManual})

	req := httptest.NewRequest(http.MethodGet, "/api/stats/overview", nil)
	rec := httptest.NewRecorder()
	f.handler.Overview(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var snap models.StatsSnapshot
	data, _ := json.Marshal(env.Data)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, int64(1), snap.TotalEvents)
	assert.Equal(t, int64(1), snap.BannedIPs)
}

func TestListEvents(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.events.Insert(context.Background(), &models.Event{
			ID:        uint64(i + 1),
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
			EventType: models.EventTypeAlert,
			SrcIP:     fmt.Sprintf("203.0.113.%d", i),
			DestIP:    "10.0.0.1",
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=2", nil)
	rec := httptest.NewRecorder()
	f.handler.ListEvents(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var page models.EventPage
	data, _ := json.Marshal(env.Data)
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Events, 2)
	assert.Equal(t, uint64(3), page.Events[0].ID)
}

func TestListEventsRejectsUnknownType(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/events?type=netflow", nil)
	rec := httptest.NewRecorder()
	f.handler.ListEvents(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "netflow")
}

func TestCreateBan(t *testing.T) {
	f := newFixture()

	body, _ := json.Marshal(models.BanRequest{
		IPAddress: "203.0.113.9",
		Reason:    "manual block",
		Permanent: true,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/bans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.CreateBan(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.True(t, f.registry.IsActive("203.0.113.9"))
}

func TestCreateBanValidationError(t *testing.T) {
	f := newFixture()

	body, _ := json.Marshal(models.BanRequest{IPAddress: "not-an-ip"})
	req := httptest.NewRequest(http.MethodPost, "/api/bans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.CreateBan(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "ip_address")
}

func TestCreateBanMalformedBody(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/bans", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.handler.CreateBan(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBans(t *testing.T) {
	f := newFixture()
	f.registry.Ban(bans.BanParams{IP: "1.2.3.4", Source: models.BanSourceRule})

	req := httptest.NewRequest(http.MethodGet, "/api/bans", nil)
	rec := httptest.NewRecorder()
	f.handler.ListBans(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var records []models.BanRecord
	data, _ := json.Marshal(env.Data)
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "1.2.3.4", records[0].IPAddress)
}

func TestDeleteBan(t *testing.T) {
	f := newFixture()
	f.registry.Ban(bans.BanParams{IP: "1.2.3.4", Source: models.BanSourceManual})

	req := httptest.NewRequest(http.MethodDelete, "/api/bans/1.2.3.4", nil)
	rec := httptest.NewRecorder()
	f.handler.DeleteBan(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.registry.IsActive("1.2.3.4"))
}

func TestDeleteBanIdempotent(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodDelete, "/api/bans/5.6.7.8", nil)
	rec := httptest.NewRecorder()
	f.handler.DeleteBan(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "unban of absent IP succeeds")
}

func TestDeleteBanMissingTarget(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodDelete, "/api/bans/", nil)
	rec := httptest.NewRecorder()
	f.handler.DeleteBan(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBanHistory(t *testing.T) {
	f := newFixture()
	f.registry.Ban(bans.BanParams{IP: "1.2.3.4", Reason: "scan", Source: models.BanSourceRule})
	f.registry.Unban("1.2.3.4")

	req := httptest.NewRequest(http.MethodGet, "/api/bans/history?limit=10", nil)
	rec := httptest.NewRecorder()
	f.handler.BanHistory(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var entries []models.BanAuditEntry
	data, _ := json.Marshal(env.Data)
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, models.BanActionUnban, entries[0].Action)
}
