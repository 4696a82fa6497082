/*
registry_test.go - Entity CRUD behavior tests

Tests for:
- Create/update/delete with full-replace edit semantics
- Idempotent deletion without cascading into points collections
- Name resolution for the exchange log
- Commit-after-write discipline on persistence failure
*/
package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/registry"
	"github.com/allcare/points-engine/store/memory"
)

func newTestRepo(t *testing.T) (*registry.Repository, *memory.Memory) {
	t.Helper()
	st := memory.New()
	n := 0
	r := registry.New(st, zap.NewNop(), func() string {
		n++
		return string(rune('a'+n-1)) + "-entity"
	})
	require.NoError(t, r.Load(context.Background()))
	return r, st
}

func TestAdd_AssignsIDAndTimestamps(t *testing.T) {
	r, _ := newTestRepo(t)

	e, err := r.Add(context.Background(), points.KindCustomer, registry.Fields{
		Name:  "Wang Mei",
		Phone: "555-0101",
		Hours: decimal.NewFromFloat(2.5),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Wang Mei", e.Name)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)
	assert.True(t, e.Hours.Equal(decimal.NewFromFloat(2.5)))

	list := r.List(points.KindCustomer)
	require.Len(t, list, 1)
	assert.Equal(t, e.ID, list[0].ID)
}

func TestKindsAreSeparateCollections(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Add(ctx, points.KindCustomer, registry.Fields{Name: "Customer"})
	require.NoError(t, err)
	_, err = r.Add(ctx, points.KindEmployee, registry.Fields{Name: "Employee"})
	require.NoError(t, err)

	assert.Len(t, r.List(points.KindCustomer), 1)
	assert.Len(t, r.List(points.KindEmployee), 1)
	assert.Equal(t, "Customer", r.List(points.KindCustomer)[0].Name)
}

func TestUpdate_FullReplacePreservesCreatedAt(t *testing.T) {
	// GIVEN: An entity with several fields set
	// WHEN: An update supplies only a subset
	// THEN: Unsupplied fields clear (full-replace edit form semantics)
	//       while createdAt is preserved

	r, _ := newTestRepo(t)
	ctx := context.Background()

	e, err := r.Add(ctx, points.KindCustomer, registry.Fields{
		Name: "Wang Mei", Phone: "555-0101", City: "Richmond",
	})
	require.NoError(t, err)

	updated, err := r.Update(ctx, points.KindCustomer, e.ID, registry.Fields{
		Name: "Wang Mei", Phone: "555-0199",
	})
	require.NoError(t, err)
	assert.Equal(t, "555-0199", updated.Phone)
	assert.Empty(t, updated.City, "unsupplied field clears")
	assert.Equal(t, e.CreatedAt, updated.CreatedAt)
}

func TestUpdate_UnknownID_NotFound(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := r.Update(context.Background(), points.KindCustomer, "missing",
		registry.Fields{Name: "Nobody"})
	assert.ErrorIs(t, err, points.ErrNotFound)
}

func TestDelete_Idempotent(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	e, err := r.Add(ctx, points.KindCustomer, registry.Fields{Name: "Wang Mei"})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, points.KindCustomer, e.ID))
	assert.Empty(t, r.List(points.KindCustomer))

	// Deleting again is a no-op
	assert.NoError(t, r.Delete(ctx, points.KindCustomer, e.ID))
}

func TestDelete_DoesNotTouchPointsCollections(t *testing.T) {
	// GIVEN: An entity with a balance and history in the same store
	// WHEN: The entity is deleted
	// THEN: The balance and change records remain

	st := memory.New()
	ctx := context.Background()

	n := 0
	newID := func() string { n++; return string(rune('a'+n-1)) + "-x" }
	r := registry.New(st, zap.NewNop(), newID)
	require.NoError(t, r.Load(ctx))
	e := points.New(st, r, zap.NewNop(), newID)
	require.NoError(t, e.Load(ctx))

	ent, err := r.Add(ctx, points.KindCustomer, registry.Fields{Name: "Wang Mei"})
	require.NoError(t, err)
	_, err = e.CreateBalance(ctx, points.KindCustomer, points.CreateInput{OwnerID: ent.ID, Points: 10})
	require.NoError(t, err)
	_, err = e.AdjustSingle(ctx, points.KindCustomer, ent.ID, 5, points.Increase, "")
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, points.KindCustomer, ent.ID))

	b, err := e.BalanceByOwner(points.KindCustomer, ent.ID)
	require.NoError(t, err, "balance survives entity deletion")
	assert.Equal(t, 15, int(b.Points))
	assert.Len(t, e.ChangeRecordsForOwner(points.KindCustomer, ent.ID), 1)
}

func TestOwnerName_ResolvesOrEmpty(t *testing.T) {
	r, _ := newTestRepo(t)

	e, err := r.Add(context.Background(), points.KindEmployee, registry.Fields{Name: "Alice Zhang"})
	require.NoError(t, err)

	assert.Equal(t, "Alice Zhang", r.OwnerName(points.KindEmployee, e.ID))
	assert.Empty(t, r.OwnerName(points.KindEmployee, "missing"))
	assert.Empty(t, r.OwnerName(points.KindCustomer, e.ID), "kinds do not cross-resolve")
}

func TestAdd_FailedWriteLeavesMemoryUnchanged(t *testing.T) {
	r, st := newTestRepo(t)
	ctx := context.Background()

	st.FailWrites = errors.New("disk full")

	_, err := r.Add(ctx, points.KindCustomer, registry.Fields{Name: "Wang Mei"})
	require.Error(t, err)
	assert.ErrorIs(t, err, points.ErrPersistenceFailure)
	assert.Empty(t, r.List(points.KindCustomer))
}

func TestLoad_RoundTripsThroughStore(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	n := 0
	newID := func() string { n++; return string(rune('a'+n-1)) + "-y" }
	r1 := registry.New(st, zap.NewNop(), newID)
	require.NoError(t, r1.Load(ctx))
	_, err := r1.Add(ctx, points.KindCustomer, registry.Fields{
		Name: "Wang Mei", Hours: decimal.NewFromFloat(12.5),
	})
	require.NoError(t, err)

	r2 := registry.New(st, zap.NewNop(), newID)
	require.NoError(t, r2.Load(ctx))

	list := r2.List(points.KindCustomer)
	require.Len(t, list, 1)
	assert.Equal(t, "Wang Mei", list[0].Name)
	assert.True(t, list[0].Hours.Equal(decimal.NewFromFloat(12.5)))
}
