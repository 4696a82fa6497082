/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the external contract.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

NUMERIC INPUT:
  Point values use points.FlexInt so numeric strings and empty inputs
  decode leniently (to 0) instead of failing the whole request.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/registry"
)

// =============================================================================
// ENTITY TYPES
// =============================================================================

// EntityDTO represents a customer or employee in API responses.
type EntityDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Age       points.FlexInt  `json:"age,omitempty"`
	Phone     string          `json:"phone"`
	Wechat    string          `json:"wechat,omitempty"`
	Email     string          `json:"email,omitempty"`
	Address   string          `json:"address,omitempty"`
	City      string          `json:"city,omitempty"`
	Status    string          `json:"status"`
	Notes     string          `json:"notes,omitempty"`
	Hours     decimal.Decimal `json:"hours"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

// EntityRequest is the request to create or update an entity.
type EntityRequest struct {
	Name    string          `json:"name"`
	Age     points.FlexInt  `json:"age"`
	Phone   string          `json:"phone"`
	Wechat  string          `json:"wechat"`
	Email   string          `json:"email"`
	Address string          `json:"address"`
	City    string          `json:"city"`
	Status  string          `json:"status"`
	Notes   string          `json:"notes"`
	Hours   decimal.Decimal `json:"hours"`
}

func (r EntityRequest) fields() registry.Fields {
	return registry.Fields{
		Name:    r.Name,
		Age:     int(r.Age),
		Phone:   r.Phone,
		Wechat:  r.Wechat,
		Email:   r.Email,
		Address: r.Address,
		City:    r.City,
		Status:  r.Status,
		Notes:   r.Notes,
		Hours:   r.Hours,
	}
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

// BalanceDTO represents a points balance record.
type BalanceDTO struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"ownerId"`
	OwnerName      string         `json:"ownerName,omitempty"`
	Points         points.FlexInt `json:"points"`
	StartDate      string         `json:"startDate,omitempty"`
	ExchangeRecord string         `json:"exchangeRecord"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

// CreateBalanceRequest is the add-record form payload.
type CreateBalanceRequest struct {
	OwnerID        string         `json:"ownerId"`
	Points         points.FlexInt `json:"points"`
	StartDate      string         `json:"startDate"`
	ExchangeRecord string         `json:"exchangeRecord"`
	Notes          string         `json:"notes"`
}

// UpdateBalanceRequest is the edit form payload.
type UpdateBalanceRequest struct {
	Points         points.FlexInt `json:"points"`
	StartDate      string         `json:"startDate"`
	ExchangeRecord string         `json:"exchangeRecord"`
	Notes          string         `json:"notes"`
	Reason         string         `json:"reason"`
}

// AdjustRequest adjusts one owner's points by an absolute amount.
type AdjustRequest struct {
	Amount    points.FlexInt `json:"amount"`
	Direction string         `json:"direction"` // "increase" | "decrease"
	Reason    string         `json:"reason"`
}

// BatchAdjustRequest applies one adjustment to every balance of a kind.
type BatchAdjustRequest struct {
	Amount    points.FlexInt `json:"amount"`
	Direction string         `json:"direction"`
	Reason    string         `json:"reason"`
}

// ExchangeRequest redeems points for an item.
type ExchangeRequest struct {
	Date       string         `json:"date"` // YYYY-MM-DD from the day picker
	Item       string         `json:"item"`
	PointsUsed points.FlexInt `json:"pointsUsed"`
	Operator   string         `json:"operator"`
}

// ChangeRecordDTO represents one audit entry.
type ChangeRecordDTO struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"ownerId"`
	OwnerName      string         `json:"ownerName,omitempty"`
	PointChange    points.FlexInt `json:"pointChange"`
	PreviousPoints points.FlexInt `json:"previousPoints"`
	NewPoints      points.FlexInt `json:"newPoints"`
	CurrentPoints  points.FlexInt `json:"currentPoints"`
	Reason         string         `json:"reason"`
	CreatedAt      string         `json:"createdAt"`
	Timestamp      string         `json:"timestamp"`
}

// BatchAdjustResultDTO reports how many balances a batch touched.
type BatchAdjustResultDTO struct {
	Adjusted int `json:"adjusted"`
}

// =============================================================================
// STATS
// =============================================================================

// StatsDTO is the dashboard summary.
type StatsDTO struct {
	Customers      int             `json:"customers"`
	Employees      int             `json:"employees"`
	CustomerPoints int             `json:"customerPoints"`
	EmployeePoints int             `json:"employeePoints"`
	CustomerHours  decimal.Decimal `json:"customerHours"`
	AvgPoints      decimal.Decimal `json:"avgPoints"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntityDTO(e registry.Entity) EntityDTO {
	return EntityDTO{
		ID:        e.ID,
		Name:      e.Name,
		Age:       e.Age,
		Phone:     e.Phone,
		Wechat:    e.Wechat,
		Email:     e.Email,
		Address:   e.Address,
		City:      e.City,
		Status:    e.Status,
		Notes:     e.Notes,
		Hours:     e.Hours,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) toBalanceDTO(kind points.OwnerKind, b points.Balance) BalanceDTO {
	return BalanceDTO{
		ID:             b.ID,
		OwnerID:        b.OwnerID,
		OwnerName:      h.Repo.OwnerName(kind, b.OwnerID),
		Points:         b.Points,
		StartDate:      b.StartDate,
		ExchangeRecord: b.ExchangeRecord,
		Notes:          b.Notes,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) toBalanceDTOs(kind points.OwnerKind, balances []points.Balance) []BalanceDTO {
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = h.toBalanceDTO(kind, b)
	}
	return dtos
}

func (h *Handler) toRecordDTO(kind points.OwnerKind, r points.ChangeRecord) ChangeRecordDTO {
	return ChangeRecordDTO{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		OwnerName:      h.Repo.OwnerName(kind, r.OwnerID),
		PointChange:    r.PointChange,
		PreviousPoints: r.PreviousPoints,
		NewPoints:      r.NewPoints,
		CurrentPoints:  r.CurrentPoints,
		Reason:         r.Reason,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		Timestamp:      r.Timestamp,
	}
}

func (h *Handler) toRecordDTOs(kind points.OwnerKind, records []points.ChangeRecord) []ChangeRecordDTO {
	dtos := make([]ChangeRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = h.toRecordDTO(kind, r)
	}
	return dtos
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case points.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, points.ErrInsufficientPoints):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, points.ErrPersistenceFailure):
		writeError(w, http.StatusInternalServerError, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
