/*
handlers.go - HTTP handlers

PURPOSE:
  Translates HTTP requests into registry and engine calls. Handlers stay
  thin: decode, delegate, map errors, encode.

URL SHAPE:
  Owner kind rides in the path as a plural segment ("customers" or
  "employees", constrained by a route regex) and maps onto the singular
  domain kind here.
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/registry"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	Repo   *registry.Repository
	Engine *points.Engine
	Log    *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(repo *registry.Repository, engine *points.Engine, log *zap.Logger) *Handler {
	return &Handler{Repo: repo, Engine: engine, Log: log}
}

// kindParam resolves the {kind} path segment. The route regex guarantees
// the segment is one of the two plurals.
func kindParam(r *http.Request) points.OwnerKind {
	if chi.URLParam(r, "kind") == "employees" {
		return points.KindEmployee
	}
	return points.KindCustomer
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// =============================================================================
// ENTITY ENDPOINTS
// =============================================================================

// ListEntities handles GET /api/{kind}
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	entities := h.Repo.List(kind)
	dtos := make([]EntityDTO, len(entities))
	for i, e := range entities {
		dtos[i] = toEntityDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntity handles GET /api/{kind}/{id}
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	e, err := h.Repo.Get(kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "entity not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(e))
}

// CreateEntity handles POST /api/{kind}
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	var req EntityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	e, err := h.Repo.Add(r.Context(), kind, req.fields())
	if err != nil {
		writeDomainError(w, "failed to create entity", err)
		return
	}
	h.Log.Info("entity created",
		zap.String("kind", string(kind)), zap.String("id", e.ID))
	writeJSON(w, http.StatusCreated, toEntityDTO(e))
}

// UpdateEntity handles PUT /api/{kind}/{id}
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	var req EntityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	e, err := h.Repo.Update(r.Context(), kind, chi.URLParam(r, "id"), req.fields())
	if err != nil {
		writeDomainError(w, "failed to update entity", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(e))
}

// DeleteEntity handles DELETE /api/{kind}/{id}
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	id := chi.URLParam(r, "id")

	if err := h.Repo.Delete(r.Context(), kind, id); err != nil {
		writeDomainError(w, "failed to delete entity", err)
		return
	}
	h.Log.Info("entity deleted",
		zap.String("kind", string(kind)), zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// OWNER-SCOPED POINTS ENDPOINTS
// =============================================================================

// GetOwnerBalance handles GET /api/{kind}/{id}/points
//
// Opening an owner's points view auto-creates a zero balance when none
// exists, so every entity always has a balance to show.
func (h *Handler) GetOwnerBalance(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	ownerID := chi.URLParam(r, "id")

	if _, err := h.Repo.Get(kind, ownerID); err != nil {
		writeDomainError(w, "entity not found", err)
		return
	}

	b, created, err := h.Engine.EnsureBalance(r.Context(), kind, ownerID)
	if err != nil {
		writeDomainError(w, "failed to load balance", err)
		return
	}
	if created {
		h.Log.Info("balance auto-created",
			zap.String("kind", string(kind)), zap.String("ownerId", ownerID))
	}
	writeJSON(w, http.StatusOK, h.toBalanceDTO(kind, b))
}

// AdjustOwner handles POST /api/{kind}/{id}/points/adjust
func (h *Handler) AdjustOwner(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	ownerID := chi.URLParam(r, "id")

	var req AdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	direction, ok := parseDirection(req.Direction)
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be increase or decrease", nil)
		return
	}

	b, err := h.Engine.AdjustSingle(r.Context(), kind, ownerID, int(req.Amount), direction, req.Reason)
	if err != nil {
		writeDomainError(w, "failed to adjust points", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toBalanceDTO(kind, b))
}

// ExchangeOwner handles POST /api/{kind}/{id}/points/exchange
func (h *Handler) ExchangeOwner(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	ownerID := chi.URLParam(r, "id")

	var req ExchangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Item == "" {
		writeError(w, http.StatusBadRequest, "item is required", nil)
		return
	}
	if req.PointsUsed <= 0 {
		writeError(w, http.StatusBadRequest, "pointsUsed must be positive", nil)
		return
	}

	b, err := h.Engine.RecordExchange(r.Context(), kind, ownerID, req.Date, req.Item, int(req.PointsUsed), req.Operator)
	if err != nil {
		writeDomainError(w, "failed to record exchange", err)
		return
	}
	h.Log.Info("exchange recorded",
		zap.String("kind", string(kind)),
		zap.String("ownerId", ownerID),
		zap.String("item", req.Item),
		zap.Int("pointsUsed", int(req.PointsUsed)))
	writeJSON(w, http.StatusOK, h.toBalanceDTO(kind, b))
}

// OwnerRecords handles GET /api/{kind}/{id}/points/records
func (h *Handler) OwnerRecords(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	records := h.Engine.ChangeRecordsForOwner(kind, chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h.toRecordDTOs(kind, records))
}

// OwnerExchanges handles GET /api/{kind}/{id}/points/exchanges
//
// Projects the balance's raw exchange-log text into structured entries.
func (h *Handler) OwnerExchanges(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	b, err := h.Engine.BalanceByOwner(kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "balance not found", err)
		return
	}
	entries := points.ParseLog(b.ExchangeRecord)
	if entries == nil {
		entries = []points.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// RECORD-SCOPED POINTS ENDPOINTS
// =============================================================================

// ListBalances handles GET /api/points/{kind}
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	writeJSON(w, http.StatusOK, h.toBalanceDTOs(kind, h.Engine.Balances(kind)))
}

// CreateBalance handles POST /api/points/{kind}
func (h *Handler) CreateBalance(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	var req CreateBalanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "ownerId is required", nil)
		return
	}
	if _, err := h.Repo.Get(kind, req.OwnerID); err != nil {
		writeDomainError(w, "entity not found", err)
		return
	}

	b, err := h.Engine.CreateBalance(r.Context(), kind, points.CreateInput{
		OwnerID:        req.OwnerID,
		Points:         int(req.Points),
		StartDate:      req.StartDate,
		ExchangeRecord: req.ExchangeRecord,
		Notes:          req.Notes,
	})
	if err != nil {
		writeDomainError(w, "failed to create balance", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toBalanceDTO(kind, b))
}

// UpdateBalance handles PUT /api/points/{kind}/{id}
func (h *Handler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	var req UpdateBalanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := points.BalanceInput{
		Points:         int(req.Points),
		StartDate:      req.StartDate,
		ExchangeRecord: req.ExchangeRecord,
		Notes:          req.Notes,
	}
	b, err := h.Engine.SetBalance(r.Context(), kind, chi.URLParam(r, "id"), in, req.Reason, points.CauseDirectEdit)
	if err != nil {
		writeDomainError(w, "failed to update balance", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toBalanceDTO(kind, b))
}

// DeleteBalance handles DELETE /api/points/{kind}/{id}
func (h *Handler) DeleteBalance(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	if err := h.Engine.DeleteBalance(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to delete balance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchAdjust handles POST /api/points/{kind}/batch-adjust
func (h *Handler) BatchAdjust(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)

	var req BatchAdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	direction, ok := parseDirection(req.Direction)
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be increase or decrease", nil)
		return
	}

	n, err := h.Engine.BatchAdjust(r.Context(), kind, int(req.Amount), direction, req.Reason)
	if err != nil {
		writeDomainError(w, "failed to batch adjust", err)
		return
	}
	h.Log.Info("batch adjustment applied",
		zap.String("kind", string(kind)),
		zap.String("direction", req.Direction),
		zap.Int("amount", int(req.Amount)),
		zap.Int("adjusted", n))
	writeJSON(w, http.StatusOK, BatchAdjustResultDTO{Adjusted: n})
}

// ListRecords handles GET /api/points/{kind}/records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	kind := kindParam(r)
	writeJSON(w, http.StatusOK, h.toRecordDTOs(kind, h.Engine.ChangeRecords(kind)))
}

// =============================================================================
// STATS
// =============================================================================

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	customers := h.Repo.List(points.KindCustomer)
	employees := h.Repo.List(points.KindEmployee)

	var customerPoints, employeePoints int
	for _, b := range h.Engine.Balances(points.KindCustomer) {
		customerPoints += int(b.Points)
	}
	for _, b := range h.Engine.Balances(points.KindEmployee) {
		employeePoints += int(b.Points)
	}

	hours := decimal.Zero
	for _, c := range customers {
		hours = hours.Add(c.Hours)
	}

	avg := decimal.Zero
	if owners := len(customers) + len(employees); owners > 0 {
		avg = decimal.NewFromInt(int64(customerPoints + employeePoints)).
			Div(decimal.NewFromInt(int64(owners))).Round(2)
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		Customers:      len(customers),
		Employees:      len(employees),
		CustomerPoints: customerPoints,
		EmployeePoints: employeePoints,
		CustomerHours:  hours,
		AvgPoints:      avg,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDirection(s string) (points.Direction, bool) {
	switch points.Direction(s) {
	case points.Increase:
		return points.Increase, true
	case points.Decrease:
		return points.Decrease, true
	}
	return "", false
}
