/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates the store with a small realistic data set: a handful of
	customers and employees, balances with varied point levels, a batch
	adjustment, and an exchange so the history and redemption views have
	content out of the box.

HOW SEEDING WORKS:
 1. Reset every collection (entities, balances, change records)
 2. Create customers and employees
 3. Create balances via the engine, so adjustments emit change records
 4. Apply a batch adjustment and one exchange for demo history

USAGE VIA API:

	POST /api/admin/seed

NOTE:

	Seeding resets the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/allcare/points-engine/points"
	"github.com/allcare/points-engine/registry"
)

// Seed resets the store and loads the demo data set.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.resetAll(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset store", err)
		return
	}
	if err := h.loadDemoData(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to seed store", err)
		return
	}

	h.Log.Info("demo data seeded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// Reset clears every collection without reloading demo data.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.resetAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset store", err)
		return
	}
	h.Log.Info("store reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) resetAll(ctx context.Context) error {
	if err := h.Repo.Reset(ctx); err != nil {
		return err
	}
	return h.Engine.Reset(ctx)
}

// =============================================================================
// DEMO DATA
// =============================================================================

func (h *Handler) loadDemoData(ctx context.Context) error {
	customers := []registry.Fields{
		{Name: "Wang Mei", Age: 67, Phone: "555-0101", City: "Richmond",
			Status: "active", Hours: decimal.NewFromFloat(12.5)},
		{Name: "Li Jun", Age: 72, Phone: "555-0102", Wechat: "lijun72",
			City: "Burnaby", Status: "active", Hours: decimal.NewFromFloat(8.25)},
		{Name: "Chen Hua", Age: 58, Phone: "555-0103", Email: "chen.hua@example.com",
			City: "Richmond", Status: "inactive", Hours: decimal.NewFromInt(3)},
	}
	employees := []registry.Fields{
		{Name: "Alice Zhang", Phone: "555-0201", Email: "alice@example.com", Status: "active"},
		{Name: "Bob Liu", Phone: "555-0202", Status: "active"},
	}

	var customerIDs []string
	for _, f := range customers {
		e, err := h.Repo.Add(ctx, points.KindCustomer, f)
		if err != nil {
			return err
		}
		customerIDs = append(customerIDs, e.ID)
	}
	var employeeIDs []string
	for _, f := range employees {
		e, err := h.Repo.Add(ctx, points.KindEmployee, f)
		if err != nil {
			return err
		}
		employeeIDs = append(employeeIDs, e.ID)
	}

	// Balances with varied starting points.
	startingPoints := []int{120, 45, 0}
	for i, id := range customerIDs {
		if _, err := h.Engine.CreateBalance(ctx, points.KindCustomer, points.CreateInput{
			OwnerID:   id,
			Points:    startingPoints[i],
			StartDate: "2026-01-01",
		}); err != nil {
			return err
		}
	}
	for _, id := range employeeIDs {
		if _, _, err := h.Engine.EnsureBalance(ctx, points.KindEmployee, id); err != nil {
			return err
		}
	}

	// A batch adjustment so every customer shares one history moment.
	if _, err := h.Engine.BatchAdjust(ctx, points.KindCustomer, 10, points.Increase, "monthly activity bonus"); err != nil {
		return err
	}

	// One redemption so the exchange log view has content.
	if _, err := h.Engine.RecordExchange(ctx, points.KindCustomer, customerIDs[0],
		"2026/08/15", "Rice cooker", 50, "Alice Zhang"); err != nil {
		return err
	}

	h.Log.Info("demo data loaded",
		zap.Int("customers", len(customerIDs)),
		zap.Int("employees", len(employeeIDs)))
	return nil
}
