/*
Package points implements the loyalty points ledger.

PURPOSE:
  Owns point-balance records and the append-only point-change-record log
  for two owner kinds (customers and employees). Every balance mutation
  flows through one engine that:
  - clamps balances at zero (points are never persisted negative)
  - derives exactly one signed change record per nonzero delta
  - appends redemption entries to the per-balance exchange log
  - persists the affected collections and only then commits them in memory

KEY CONCEPTS IN THIS FILE (types.go):
  - OwnerKind: customer vs employee, with collection-name mapping
  - Balance:   the mutable per-owner points record
  - ChangeRecord: the immutable audit entry derived from mutations
  - Cause:     tagged adjustment cause carrying its default-reason rule
  - FlexInt:   lenient integer decoding (non-numeric input reads as 0)

SEE ALSO:
  - engine.go:   balance operations
  - exchange.go: redemption log operations
  - errors.go:   error taxonomy
*/
package points

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/allcare/points-engine/store"
)

// DisplayTimeLayout is the layout of the human-readable timestamp carried
// on change records and exchange entries.
const DisplayTimeLayout = "2006/01/02 15:04:05"

// =============================================================================
// OWNER KIND
// =============================================================================

// OwnerKind identifies which entity collection a balance belongs to.
type OwnerKind string

const (
	KindCustomer OwnerKind = "customer"
	KindEmployee OwnerKind = "employee"
)

// Kinds lists all owner kinds.
var Kinds = []OwnerKind{KindCustomer, KindEmployee}

// Valid reports whether k is a known kind.
func (k OwnerKind) Valid() bool {
	return k == KindCustomer || k == KindEmployee
}

// EntityCollection returns the collection holding this kind's entities.
func (k OwnerKind) EntityCollection() string {
	if k == KindEmployee {
		return store.Employees
	}
	return store.Customers
}

// BalanceCollection returns the collection holding this kind's balances.
func (k OwnerKind) BalanceCollection() string {
	if k == KindEmployee {
		return store.EmployeePoints
	}
	return store.CustomerPoints
}

// RecordCollection returns the collection holding this kind's change records.
func (k OwnerKind) RecordCollection() string {
	if k == KindEmployee {
		return store.EmployeePointRecords
	}
	return store.CustomerPointRecords
}

// =============================================================================
// FLEXIBLE INTEGER - lenient numeric decoding
// =============================================================================

// FlexInt is an integer that decodes leniently from JSON: numbers, numeric
// strings, empty strings, null, and garbage all produce a value (garbage
// produces 0, never an error). It always encodes as a plain number.
//
// The original data set contains point values stored both as numbers and
// as strings; this keeps every stored document readable.
type FlexInt int

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(f))), nil
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate decimals ("12.0") and anything else as zero.
		if fl, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			*f = FlexInt(int(fl))
			return nil
		}
		*f = 0
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// =============================================================================
// BALANCE - mutable per-owner points record
// =============================================================================

// Balance is one points record. OwnerID references an entity of the
// balance's kind; the reference is weak — deleting the entity does not
// delete the balance (audit retention).
//
// INVARIANT: Points is never persisted negative; mutations clamp at zero.
type Balance struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Points         FlexInt   `json:"points"`
	StartDate      string    `json:"startDate,omitempty"`
	ExchangeRecord string    `json:"exchangeRecord"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// BalanceInput carries the editable fields of a balance.
type BalanceInput struct {
	Points         int
	StartDate      string
	ExchangeRecord string
	Notes          string
}

// CreateInput carries the fields of the add-record form.
type CreateInput struct {
	OwnerID        string
	Points         int
	StartDate      string
	ExchangeRecord string
	Notes          string
}

// =============================================================================
// CHANGE RECORD - immutable audit entry
// =============================================================================

// ChangeRecord is an append-only audit entry emitted whenever a balance
// changes by a nonzero delta. Never mutated or deleted after creation;
// records survive deletion of the balance they describe.
type ChangeRecord struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	PointChange    FlexInt   `json:"pointChange"`
	PreviousPoints FlexInt   `json:"previousPoints"`
	NewPoints      FlexInt   `json:"newPoints"`
	CurrentPoints  FlexInt   `json:"currentPoints"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
	Timestamp      string    `json:"timestamp"`
}

// =============================================================================
// DIRECTION AND CAUSE
// =============================================================================

// Direction is the sign of an adjustment; decrease negates the magnitude.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// Signed applies the direction to an absolute magnitude.
func (d Direction) Signed(magnitude int) int {
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if d == Decrease {
		return -magnitude
	}
	return magnitude
}

// Cause tags why a balance changed. Each cause carries its own
// default-reason rule, resolved once at the call site.
type Cause string

const (
	// CauseUnspecified is a balance update with no declared cause; its
	// default reason follows the sign of the delta.
	CauseUnspecified      Cause = ""
	CauseDirectEdit       Cause = "direct_edit"
	CauseManualAdjustment Cause = "manual_adjustment"
	CauseExchange         Cause = "exchange"
	CauseBatchAdjustment  Cause = "batch_adjustment"
)

// DefaultReason returns the reason recorded when the caller supplies none.
// detail is the exchanged item description for CauseExchange; ignored
// otherwise.
func (c Cause) DefaultReason(delta int, detail string) string {
	switch c {
	case CauseDirectEdit:
		return "modified via edit"
	case CauseManualAdjustment:
		return "points adjustment"
	case CauseBatchAdjustment:
		return "batch point adjustment"
	case CauseExchange:
		return "exchanged for: " + detail
	}
	if delta > 0 {
		return "points increased"
	}
	return "points decreased"
}

// =============================================================================
// JSON HELPERS
// =============================================================================

// mustJSON marshals v; collection values are plain structs and slices, so
// marshaling cannot fail at runtime.
func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
