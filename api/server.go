/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/{kind}/*         Entity management + owner-scoped points
  /api/points/{kind}/*  Balance-record management and batch operations
  /api/stats            Dashboard summary
  /api/admin/*          Seed and reset (dev only)
  /*                    Static files (frontend)

The {kind} segment is constrained by a route regex to "customers" or
"employees"; everything else 404s at the router.

STATIC FILE SERVING:
  Serves the built frontend from the configured static dir, falling back
  to index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries router-level configuration.
type RouterOptions struct {
	AllowedOrigins []string
	StaticDir      string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Balance-record routes (keyed by record id)
		r.Route("/points/{kind:customers|employees}", func(r chi.Router) {
			r.Get("/", h.ListBalances)
			r.Post("/", h.CreateBalance)
			r.Get("/records", h.ListRecords)
			r.Post("/batch-adjust", h.BatchAdjust)
			r.Put("/{id}", h.UpdateBalance)
			r.Delete("/{id}", h.DeleteBalance)
		})

		// Entity routes + owner-scoped points (keyed by entity id)
		r.Route("/{kind:customers|employees}", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Post("/", h.CreateEntity)
			r.Get("/{id}", h.GetEntity)
			r.Put("/{id}", h.UpdateEntity)
			r.Delete("/{id}", h.DeleteEntity)

			r.Route("/{id}/points", func(r chi.Router) {
				r.Get("/", h.GetOwnerBalance)
				r.Post("/adjust", h.AdjustOwner)
				r.Post("/exchange", h.ExchangeOwner)
				r.Get("/records", h.OwnerRecords)
				r.Get("/exchanges", h.OwnerExchanges)
			})
		})

		// Dashboard
		r.Get("/stats", h.Stats)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/seed", h.Seed)
			r.Post("/reset", h.Reset)
		})
	})

	mountStatic(r, opts.StaticDir)
	return r
}

// mountStatic serves the built frontend with an index.html fallback for
// client-side routing; without a build it serves a plain API landing page.
func mountStatic(r *chi.Mux, staticDir string) {
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		// Try relative to executable
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			fullPath := filepath.Join(staticDir, req.URL.Path)
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, req, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, req)
		})
		return
	}

	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Points Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Points Engine API</h1>
<p>The frontend is not built yet. Run <code>cd web && npm install && npm run build</code></p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/customers">/api/customers</a> - List customers</li>
<li><a href="/api/employees">/api/employees</a> - List employees</li>
<li><a href="/api/points/customers">/api/points/customers</a> - Customer point records</li>
<li><a href="/api/stats">/api/stats</a> - Dashboard summary</li>
</ul>
</body>
</html>`))
	})
}
