/*
state.go - In-memory collections and the persistence contract

The engine holds every balance and change record in memory and treats the
document store as a snapshot target: each mutation builds the next value
of the affected collections, writes them, and only commits them in memory
once the write succeeds. A failed write therefore leaves memory and the
last persisted snapshot identical (no divergence to reconcile).

Decode failures on load are recovered by substituting an empty collection
and logging the anomaly; the store's contents are never a reason to crash.
*/
package points

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/allcare/points-engine/store"
)

// Load reads every points collection into memory. Safe to call again to
// re-read the store (the ensure-session set is reset).
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, kind := range Kinds {
		balances, err := loadCollection[Balance](ctx, e.st, kind.BalanceCollection(), e.log)
		if err != nil {
			return err
		}
		records, err := loadCollection[ChangeRecord](ctx, e.st, kind.RecordCollection(), e.log)
		if err != nil {
			return err
		}
		e.balances[kind] = balances
		e.records[kind] = records
		e.ensured[kind] = make(map[string]bool)
	}
	return nil
}

// loadCollection reads and decodes one collection. Absent or undecodable
// documents produce an empty collection; only store read errors propagate.
func loadCollection[T any](ctx context.Context, st store.Store, name string, log *zap.Logger) ([]T, error) {
	data, err := st.Read(ctx, name)
	if err != nil {
		// Unreadable (e.g. sealed with a different passphrase): recover
		// with an empty collection, per the decode-failure policy.
		log.Warn("collection unreadable, starting empty",
			zap.String("collection", name), zap.Error(err))
		return []T{}, nil
	}
	if len(data) == 0 {
		return []T{}, nil
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		log.Warn("collection undecodable, starting empty",
			zap.String("collection", name),
			zap.Error(fmt.Errorf("%w: %v", ErrDecodeFailure, err)))
		return []T{}, nil
	}
	return out, nil
}

// persistBalances writes a candidate balance collection. The caller
// commits it in memory only when this returns nil.
func (e *Engine) persistBalances(ctx context.Context, kind OwnerKind, balances []Balance) error {
	if err := e.st.Write(ctx, kind.BalanceCollection(), mustJSON(balances)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, kind.BalanceCollection(), err)
	}
	return nil
}

// persistRecords writes a candidate change-record collection.
func (e *Engine) persistRecords(ctx context.Context, kind OwnerKind, records []ChangeRecord) error {
	if err := e.st.Write(ctx, kind.RecordCollection(), mustJSON(records)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, kind.RecordCollection(), err)
	}
	return nil
}

// cloneBalances copies a kind's balance slice for candidate mutation.
func (e *Engine) cloneBalances(kind OwnerKind) []Balance {
	out := make([]Balance, len(e.balances[kind]))
	copy(out, e.balances[kind])
	return out
}
