/*
Package registry provides CRUD over the customer and employee collections.

PURPOSE:
  The points ledger references owners by id; this package owns those
  entities. It follows the same persistence discipline as the engine:
  build the next collection value, write it, commit in memory only on
  success.

DELETION:
  Deleting an entity does NOT cascade to its balance or change records.
  History is retained for audit; the balance record must be removed
  explicitly if that is wanted.
*/
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/store"
)

// Entity is a customer or employee record. Hours is tracked for customers
// only (service hours accumulated; fractional, so decimal not int).
type Entity struct {
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
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Fields carries the editable fields of an entity. Update replaces all of
// them (full-replace semantics, matching the edit form).
type Fields struct {
	Name    string
	Age     int
	Phone   string
	Wechat  string
	Email   string
	Address string
	City    string
	Status  string
	Notes   string
	Hours   decimal.Decimal
}

// Repository owns the two entity collections.
type Repository struct {
	mu  sync.Mutex
	st  store.Store
	log *zap.Logger

	entities map[points.OwnerKind][]Entity

	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

// New creates a repository. Call Load before use.
func New(st store.Store, log *zap.Logger, newID func() string) *Repository {
	r := &Repository{
		st:       st,
		log:      log,
		entities: make(map[points.OwnerKind][]Entity),
		Clock:    time.Now,
		NewID:    newID,
	}
	for _, kind := range points.Kinds {
		r.entities[kind] = []Entity{}
	}
	return r
}

// Load reads both entity collections into memory. Absent or undecodable
// documents load as empty collections.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range points.Kinds {
		entities, err := r.loadKind(ctx, kind)
		if err != nil {
			return err
		}
		r.entities[kind] = entities
	}
	return nil
}

// List returns all entities of a kind, in insertion order.
func (r *Repository) List(kind points.OwnerKind) []Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clone(kind)
}

// Get returns one entity, or ErrNotFound.
func (r *Repository) Get(kind points.OwnerKind, id string) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(kind, id); i >= 0 {
		return r.entities[kind][i], nil
	}
	return Entity{}, points.ErrNotFound
}

// Add creates an entity with a fresh id and timestamps.
func (r *Repository) Add(ctx context.Context, kind points.OwnerKind, f Fields) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Clock()
	e := Entity{
		ID:        r.NewID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(&e, f)

	next := append(r.clone(kind), e)
	if err := r.persist(ctx, kind, next); err != nil {
		return Entity{}, err
	}
	r.entities[kind] = next
	return e, nil
}

// Update replaces all editable fields of an entity, preserving createdAt
// and refreshing updatedAt. Fails with ErrNotFound when id is absent.
func (r *Repository) Update(ctx context.Context, kind points.OwnerKind, id string, f Fields) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(kind, id)
	if i < 0 {
		return Entity{}, points.ErrNotFound
	}

	e := r.entities[kind][i]
	applyFields(&e, f)
	e.UpdatedAt = r.Clock()

	next := r.clone(kind)
	next[i] = e
	if err := r.persist(ctx, kind, next); err != nil {
		return Entity{}, err
	}
	r.entities[kind] = next
	return e, nil
}

// Delete removes an entity. Idempotent: deleting an absent id is a no-op.
// The entity's balance and change records are deliberately left in place.
func (r *Repository) Delete(ctx context.Context, kind points.OwnerKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(kind, id)
	if i < 0 {
		return nil
	}

	next := r.clone(kind)
	next = append(next[:i], next[i+1:]...)
	if err := r.persist(ctx, kind, next); err != nil {
		return err
	}
	r.entities[kind] = next
	return nil
}

// Reset clears both entity collections, in store and memory.
func (r *Repository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range points.Kinds {
		if err := r.persist(ctx, kind, []Entity{}); err != nil {
			return err
		}
		r.entities[kind] = []Entity{}
	}
	return nil
}

// OwnerName implements points.NameResolver. Unknown owners resolve to the
// empty string; the engine substitutes its own placeholder.
func (r *Repository) OwnerName(kind points.OwnerKind, ownerID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(kind, ownerID); i >= 0 {
		return r.entities[kind][i].Name
	}
	return ""
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (r *Repository) loadKind(ctx context.Context, kind points.OwnerKind) ([]Entity, error) {
	name := kind.EntityCollection()
	data, err := r.st.Read(ctx, name)
	if err != nil {
		r.log.Warn("collection unreadable, starting empty",
			zap.String("collection", name), zap.Error(err))
		return []Entity{}, nil
	}
	if len(data) == 0 {
		return []Entity{}, nil
	}

	var out []Entity
	if err := json.Unmarshal(data, &out); err != nil {
		r.log.Warn("collection undecodable, starting empty",
			zap.String("collection", name),
			zap.Error(fmt.Errorf("%w: %v", points.ErrDecodeFailure, err)))
		return []Entity{}, nil
	}
	return out, nil
}

func (r *Repository) persist(ctx context.Context, kind points.OwnerKind, entities []Entity) error {
	data, err := json.Marshal(entities)
	if err != nil {
		return err
	}
	name := kind.EntityCollection()
	if err := r.st.Write(ctx, name, data); err != nil {
		return fmt.Errorf("%w: %s: %v", points.ErrPersistenceFailure, name, err)
	}
	return nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func applyFields(e *Entity, f Fields) {
	e.Name = f.Name
	e.Age = points.FlexInt(f.Age)
	e.Phone = f.Phone
	e.Wechat = f.Wechat
	e.Email = f.Email
	e.Address = f.Address
	e.City = f.City
	e.Status = f.Status
	e.Notes = f.Notes
	e.Hours = f.Hours
}

func (r *Repository) index(kind points.OwnerKind, id string) int {
	for i, e := range r.entities[kind] {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) clone(kind points.OwnerKind) []Entity {
	out := make([]Entity, len(r.entities[kind]))
	copy(out, r.entities[kind])
	return out
}
