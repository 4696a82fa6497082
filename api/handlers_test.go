/*
handlers_test.go - HTTP API tests over the full router

Tests for:
- Entity CRUD flow
- Owner-scoped points flow (auto-ensure, adjust, exchange)
- Batch adjustment
- Error mapping (400 bad input, 404 missing, 409 insufficient points)
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/allcare/points-engine/api"
	"github.com/allcare/points-engine/ident"
	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/registry"
	"github.com/allcare/points-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := memory.New()
	log := zap.NewNop()
	repo := registry.New(st, log, ident.New)
	engine := points.New(st, repo, log, ident.New)

	ctx := context.Background()
	require.NoError(t, repo.Load(ctx))
	require.NoError(t, engine.Load(ctx))

	handler := api.NewHandler(repo, engine, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		StaticDir:      t.TempDir(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func createCustomer(t *testing.T, srv *httptest.Server, name string) api.EntityDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/customers", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dto api.EntityDTO
	decodeInto(t, resp, &dto)
	return dto
}

// =============================================================================
// ENTITY ENDPOINTS
// =============================================================================

func TestEntityCRUDFlow(t *testing.T) {
	srv := newTestServer(t)

	// Create
	created := createCustomer(t, srv, "Wang Mei")
	assert.NotEmpty(t, created.ID)

	// List
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []api.EntityDTO
	decodeInto(t, resp, &list)
	require.Len(t, list, 1)

	// Update
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/customers/"+created.ID,
		map[string]any{"name": "Wang Mei", "phone": "555-0101"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated api.EntityDTO
	decodeInto(t, resp, &updated)
	assert.Equal(t, "555-0101", updated.Phone)

	// Delete
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/customers/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateEntity_MissingName_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/customers", map[string]any{"phone": "555"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownKindSegment_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/robots", nil)
	resp.Body.Close()
	// No matching route; the static fallback serves the SPA shell
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// OWNER-SCOPED POINTS
// =============================================================================

func TestGetOwnerBalance_AutoCreatesZeroBalance(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv, "Wang Mei")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID+"/points", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b api.BalanceDTO
	decodeInto(t, resp, &b)
	assert.Equal(t, cust.ID, b.OwnerID)
	assert.Equal(t, 0, int(b.Points))
	assert.Equal(t, "Wang Mei", b.OwnerName)
}

func TestAdjustOwner_FlowWithStringAmount(t *testing.T) {
	// Amounts posted as numeric strings decode leniently.
	srv := newTestServer(t)
	cust := createCustomer(t, srv, "Wang Mei")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID+"/points", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+cust.ID+"/points/adjust",
		map[string]any{"amount": "25", "direction": "increase"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b api.BalanceDTO
	decodeInto(t, resp, &b)
	assert.Equal(t, 25, int(b.Points))

	// History shows one record with the default reason
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID+"/points/records", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []api.ChangeRecordDTO
	decodeInto(t, resp, &records)
	require.Len(t, records, 1)
	assert.Equal(t, 25, int(records[0].PointChange))
	assert.Equal(t, "points adjustment", records[0].Reason)
}

func TestAdjustOwner_BadDirection(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv, "Wang Mei")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+cust.ID+"/points/adjust",
		map[string]any{"amount": 10, "direction": "sideways"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExchange_FlowAndInsufficient(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv, "Wang Mei")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID+"/points", nil)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+cust.ID+"/points/adjust",
		map[string]any{"amount": 30, "direction": "increase"})
	resp.Body.Close()

	// Redeem 20 of 30
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+cust.ID+"/points/exchange",
		map[string]any{"date": "2026/08/15", "item": "Coffee mug", "pointsUsed": 20, "operator": "Alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b api.BalanceDTO
	decodeInto(t, resp, &b)
	assert.Equal(t, 10, int(b.Points))
	assert.Contains(t, b.ExchangeRecord, "|Coffee mug|Wang Mei|20|Alice")

	// Redeeming more than remains conflicts
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+cust.ID+"/points/exchange",
		map[string]any{"date": "2026/08/15", "item": "Tea set", "pointsUsed": 11, "operator": "Alice"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Structured projection of the log
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID+"/points/exchanges", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []points.LogEntry
	decodeInto(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Coffee mug", entries[0].Item)
	assert.Equal(t, "20", entries[0].PointsUsed)
}

// =============================================================================
// RECORD-SCOPED POINTS
// =============================================================================

func TestBatchAdjust_AdjustsEveryBalance(t *testing.T) {
	srv := newTestServer(t)

	c1 := createCustomer(t, srv, "Wang Mei")
	c2 := createCustomer(t, srv, "Li Jun")
	for _, id := range []string{c1.ID, c2.ID} {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+id+"/points", nil)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/points/customers/batch-adjust",
		map[string]any{"amount": 10, "direction": "increase", "reason": "holiday bonus"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result api.BatchAdjustResultDTO
	decodeInto(t, resp, &result)
	assert.Equal(t, 2, result.Adjusted)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/points/customers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balances []api.BalanceDTO
	decodeInto(t, resp, &balances)
	require.Len(t, balances, 2)
	for _, b := range balances {
		assert.Equal(t, 10, int(b.Points))
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/points/customers/records", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []api.ChangeRecordDTO
	decodeInto(t, resp, &records)
	require.Len(t, records, 2)
	assert.Equal(t, records[0].CreatedAt, records[1].CreatedAt, "batch shares one moment")
	for _, r := range records {
		assert.Equal(t, "holiday bonus", r.Reason)
	}
}

func TestCreateBalance_UnknownOwner_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/points/customers",
		map[string]any{"ownerId": "missing", "points": 10})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateBalance_EditEmitsRecord(t *testing.T) {
	srv := newTestServer(t)
	cust := createCustomer(t, srv, "Wang Mei")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/points/customers",
		map[string]any{"ownerId": cust.ID, "points": 40})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var b api.BalanceDTO
	decodeInto(t, resp, &b)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/points/customers/"+b.ID,
		map[string]any{"points": 55, "notes": "vip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated api.BalanceDTO
	decodeInto(t, resp, &updated)
	assert.Equal(t, 55, int(updated.Points))
	assert.Equal(t, "vip", updated.Notes)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/points/customers/records", nil)
	var records []api.ChangeRecordDTO
	decodeInto(t, resp, &records)
	require.Len(t, records, 1)
	assert.Equal(t, 15, int(records[0].PointChange))
	assert.Equal(t, "modified via edit", records[0].Reason)
}

// =============================================================================
// STATS AND ADMIN
// =============================================================================

func TestStats(t *testing.T) {
	srv := newTestServer(t)

	cust := createCustomer(t, srv, "Wang Mei")
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID+"/points", nil)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/customers/"+cust.ID+"/points/adjust",
		map[string]any{"amount": 40, "direction": "increase"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats api.StatsDTO
	decodeInto(t, resp, &stats)
	assert.Equal(t, 1, stats.Customers)
	assert.Equal(t, 0, stats.Employees)
	assert.Equal(t, 40, stats.CustomerPoints)
}

func TestSeedAndReset(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/seed", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/customers", nil)
	var customers []api.EntityDTO
	decodeInto(t, resp, &customers)
	assert.NotEmpty(t, customers)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/points/customers/records", nil)
	var records []api.ChangeRecordDTO
	decodeInto(t, resp, &records)
	assert.NotEmpty(t, records, "seed produces demo history")

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/admin/reset", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/customers", nil)
	var after []api.EntityDTO
	decodeInto(t, resp, &after)
	assert.Empty(t, after)
}
