/*
engine.go - Points ledger operations

PURPOSE:
  The Engine is the single coordinating component owning the four points
  collections (balances and change records for both owner kinds). Every
  mutation:
  1. builds the next value of the affected collections
  2. persists them through the document store
  3. commits them in memory only after the write succeeds
  4. derives exactly one ChangeRecord per nonzero balance delta

INVARIANTS:
  - Points are never persisted negative (clamped at zero)
  - Change records are append-only: no update, no delete, ever
  - Deleting a balance does NOT delete its change records (audit retention)

CONCURRENCY:
  Operations are serialized behind one mutex. Persistence is whole-
  collection-replace, so the last write wins; there is no optimistic
  versioning (single-admin scope).

SEE ALSO:
  - exchange.go: redemption log operations built on the same mutation path
  - state.go:    load/persist plumbing
*/
package points

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/allcare/points-engine/store"
)

// NameResolver resolves an owner's display name for exchange entries.
// Implemented by the registry; unknown owners resolve to "unknown".
type NameResolver interface {
	OwnerName(kind OwnerKind, ownerID string) string
}

// Engine owns point balances and their audit trail.
type Engine struct {
	mu    sync.Mutex
	st    store.Store
	names NameResolver
	log   *zap.Logger

	balances map[OwnerKind][]Balance
	records  map[OwnerKind][]ChangeRecord

	// ensured guards the auto-create path: owners processed in this
	// session are never auto-created twice, even before the persistence
	// round trip completes.
	ensured map[OwnerKind]map[string]bool

	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

// New creates an engine. Call Load before use.
func New(st store.Store, names NameResolver, log *zap.Logger, newID func() string) *Engine {
	e := &Engine{
		st:       st,
		names:    names,
		log:      log,
		balances: make(map[OwnerKind][]Balance),
		records:  make(map[OwnerKind][]ChangeRecord),
		ensured:  make(map[OwnerKind]map[string]bool),
		Clock:    time.Now,
		NewID:    newID,
	}
	for _, kind := range Kinds {
		e.balances[kind] = []Balance{}
		e.records[kind] = []ChangeRecord{}
		e.ensured[kind] = make(map[string]bool)
	}
	return e
}

// =============================================================================
// QUERIES
// =============================================================================

// Balances returns all balance records of a kind, in insertion order.
func (e *Engine) Balances(kind OwnerKind) []Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cloneBalances(kind)
}

// BalanceByID returns the balance with the given record id.
func (e *Engine) BalanceByID(kind OwnerKind, id string) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexByID(kind, id); i >= 0 {
		return e.balances[kind][i], nil
	}
	return Balance{}, ErrNotFound
}

// BalanceByOwner returns the first balance (by insertion order) owned by
// ownerID. Multiple balances per owner are possible through the manual
// add-record path; operations keyed by owner act on the first.
func (e *Engine) BalanceByOwner(kind OwnerKind, ownerID string) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexByOwner(kind, ownerID); i >= 0 {
		return e.balances[kind][i], nil
	}
	return Balance{}, ErrNotFound
}

// ChangeRecords returns every change record of a kind, newest first.
// Records sharing a createdAt (batch adjustments) keep insertion order.
func (e *Engine) ChangeRecords(kind OwnerKind) []ChangeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortRecordsNewestFirst(e.records[kind])
}

// ChangeRecordsForOwner returns one owner's change records, newest first.
func (e *Engine) ChangeRecordsForOwner(kind OwnerKind, ownerID string) []ChangeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	var owned []ChangeRecord
	for _, r := range e.records[kind] {
		if r.OwnerID == ownerID {
			owned = append(owned, r)
		}
	}
	return sortRecordsNewestFirst(owned)
}

// =============================================================================
// BALANCE CREATION
// =============================================================================

// EnsureBalance creates a zero-point balance for ownerID if none exists.
// Idempotent: repeated calls for the same owner within a session create at
// most one record. Returns the balance and whether it was created.
func (e *Engine) EnsureBalance(ctx context.Context, kind OwnerKind, ownerID string) (Balance, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexByOwner(kind, ownerID); i >= 0 {
		e.ensured[kind][ownerID] = true
		return e.balances[kind][i], false, nil
	}
	if e.ensured[kind][ownerID] {
		// Already auto-created this session; the record must exist, but
		// guard against a racing delete by reporting not-created.
		return Balance{}, false, nil
	}

	now := e.Clock()
	b := Balance{
		ID:        e.NewID(),
		OwnerID:   ownerID,
		Points:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := append(e.cloneBalances(kind), b)
	if err := e.persistBalances(ctx, kind, next); err != nil {
		return Balance{}, false, err
	}
	e.balances[kind] = next
	e.ensured[kind][ownerID] = true
	return b, true, nil
}

// CreateBalance explicitly creates a balance record (the add-record form).
// Unlike EnsureBalance it always creates, even when the owner already has
// one; no change record is emitted for the initial value.
func (e *Engine) CreateBalance(ctx context.Context, kind OwnerKind, in CreateInput) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Clock()
	b := Balance{
		ID:             e.NewID(),
		OwnerID:        in.OwnerID,
		Points:         FlexInt(clamp(in.Points)),
		StartDate:      in.StartDate,
		ExchangeRecord: in.ExchangeRecord,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	next := append(e.cloneBalances(kind), b)
	if err := e.persistBalances(ctx, kind, next); err != nil {
		return Balance{}, err
	}
	e.balances[kind] = next
	return b, nil
}

// =============================================================================
// BALANCE MUTATION
// =============================================================================

// SetBalance is the general update entry point (the edit form). It
// replaces the editable fields, clamps points at zero, and emits one
// change record when the points value actually changed.
//
// reason may be empty; the cause's default-reason rule then applies.
func (e *Engine) SetBalance(ctx context.Context, kind OwnerKind, id string, in BalanceInput, reason string, cause Cause) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setBalanceLocked(ctx, kind, id, in, reason, cause, "")
}

// setBalanceLocked implements SetBalance; detail feeds the exchange
// default reason. Caller holds the mutex.
func (e *Engine) setBalanceLocked(ctx context.Context, kind OwnerKind, id string, in BalanceInput, reason string, cause Cause, detail string) (Balance, error) {
	i := e.indexByID(kind, id)
	if i < 0 {
		return Balance{}, ErrNotFound
	}
	old := e.balances[kind][i]

	now := e.Clock()
	newPoints := clamp(in.Points)
	delta := newPoints - int(old.Points)

	updated := old
	updated.Points = FlexInt(newPoints)
	updated.StartDate = in.StartDate
	updated.ExchangeRecord = in.ExchangeRecord
	updated.Notes = in.Notes
	updated.UpdatedAt = now

	nextBalances := e.cloneBalances(kind)
	nextBalances[i] = updated

	var nextRecords []ChangeRecord
	if delta != 0 {
		if reason == "" {
			reason = cause.DefaultReason(delta, detail)
		}
		rec := e.newChangeRecord(old.OwnerID, delta, int(old.Points), newPoints, reason, now)
		nextRecords = append(append([]ChangeRecord{}, e.records[kind]...), rec)
	}

	if err := e.persistBalances(ctx, kind, nextBalances); err != nil {
		return Balance{}, err
	}
	if nextRecords != nil {
		if err := e.persistRecords(ctx, kind, nextRecords); err != nil {
			return Balance{}, err
		}
		e.records[kind] = nextRecords
	}
	e.balances[kind] = nextBalances
	return updated, nil
}

// AdjustSingle applies a signed adjustment to an owner's balance (the
// adjust-points dialog). magnitude is absolute; direction gives the sign.
// The new balance is clamped at zero and the change record carries the
// clamped delta. The engine trusts the caller to reject zero magnitudes.
func (e *Engine) AdjustSingle(ctx context.Context, kind OwnerKind, ownerID string, magnitude int, direction Direction, reason string) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexByOwner(kind, ownerID)
	if i < 0 {
		return Balance{}, ErrNotFound
	}
	b := e.balances[kind][i]

	newPoints := clamp(int(b.Points) + direction.Signed(magnitude))
	if reason == "" {
		reason = CauseManualAdjustment.DefaultReason(newPoints-int(b.Points), "")
	}
	in := BalanceInput{
		Points:         newPoints,
		StartDate:      b.StartDate,
		ExchangeRecord: b.ExchangeRecord,
		Notes:          b.Notes,
	}
	return e.setBalanceLocked(ctx, kind, b.ID, in, reason, CauseManualAdjustment, "")
}

// BatchAdjust applies one signed delta to every balance of a kind.
// All emitted change records share a single createdAt/timestamp captured
// at batch start, so the whole batch is attributable to one moment. The
// recorded pointChange is the requested delta even where clamping reduced
// the effective change; previous/new points always reflect actual values.
//
// Returns the number of balances adjusted.
func (e *Engine) BatchAdjust(ctx context.Context, kind OwnerKind, magnitude int, direction Direction, reason string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	signed := direction.Signed(magnitude)
	if reason == "" {
		reason = CauseBatchAdjustment.DefaultReason(signed, "")
	}

	now := e.Clock()
	nextBalances := e.cloneBalances(kind)
	nextRecords := append([]ChangeRecord{}, e.records[kind]...)

	for i, b := range nextBalances {
		current := int(b.Points)
		newPoints := clamp(current + signed)

		b.Points = FlexInt(newPoints)
		b.UpdatedAt = now
		nextBalances[i] = b

		if signed != 0 {
			rec := e.newChangeRecord(b.OwnerID, signed, current, newPoints, reason, now)
			nextRecords = append(nextRecords, rec)
		}
	}

	if err := e.persistBalances(ctx, kind, nextBalances); err != nil {
		return 0, err
	}
	if err := e.persistRecords(ctx, kind, nextRecords); err != nil {
		return 0, err
	}
	e.balances[kind] = nextBalances
	e.records[kind] = nextRecords
	return len(nextBalances), nil
}

// DeleteBalance removes a balance record. Idempotent: deleting an absent
// id is a no-op. Change records referencing the owner are retained; the
// history outlives the record it describes.
func (e *Engine) DeleteBalance(ctx context.Context, kind OwnerKind, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexByID(kind, id)
	if i < 0 {
		return nil
	}

	next := e.cloneBalances(kind)
	next = append(next[:i], next[i+1:]...)
	if err := e.persistBalances(ctx, kind, next); err != nil {
		return err
	}
	e.balances[kind] = next
	return nil
}

// Reset clears every points collection, in store and memory.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, kind := range Kinds {
		if err := e.persistBalances(ctx, kind, []Balance{}); err != nil {
			return err
		}
		if err := e.persistRecords(ctx, kind, []ChangeRecord{}); err != nil {
			return err
		}
		e.balances[kind] = []Balance{}
		e.records[kind] = []ChangeRecord{}
		e.ensured[kind] = make(map[string]bool)
	}
	return nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (e *Engine) newChangeRecord(ownerID string, delta, previous, current int, reason string, now time.Time) ChangeRecord {
	return ChangeRecord{
		ID:             e.NewID(),
		OwnerID:        ownerID,
		PointChange:    FlexInt(delta),
		PreviousPoints: FlexInt(previous),
		NewPoints:      FlexInt(current),
		CurrentPoints:  FlexInt(current),
		Reason:         reason,
		CreatedAt:      now,
		Timestamp:      now.Format(DisplayTimeLayout),
	}
}

func (e *Engine) indexByID(kind OwnerKind, id string) int {
	for i, b := range e.balances[kind] {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) indexByOwner(kind OwnerKind, ownerID string) int {
	for i, b := range e.balances[kind] {
		if b.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

// clamp floors a points value at zero. There is no ceiling.
func clamp(points int) int {
	if points < 0 {
		return 0
	}
	return points
}

// sortRecordsNewestFirst orders by createdAt descending, preserving
// insertion order within equal timestamps (batch records).
func sortRecordsNewestFirst(records []ChangeRecord) []ChangeRecord {
	out := make([]ChangeRecord, len(records))
	copy(out, records)
	// Stable sort keeps batch insertion order for equal createdAt.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
