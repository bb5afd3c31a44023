package router

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rshrestha/imagetools/internal/api"
	"github.com/rshrestha/imagetools/internal/batch"
	"github.com/rshrestha/imagetools/internal/config"
	"github.com/rshrestha/imagetools/internal/database"
	"github.com/rshrestha/imagetools/internal/handler"
	"github.com/rshrestha/imagetools/internal/history"
	"github.com/rshrestha/imagetools/internal/imaging"
	"github.com/rshrestha/imagetools/internal/ledger"
	"github.com/rshrestha/imagetools/internal/storage"
)

// Server holds the application dependencies and HTTP router.
type Server struct {
	DB     database.Database
	Store  storage.Storage
	Config *config.Config
	Router chi.Router
}

// New creates a new Server with a fully configured chi router.
func New(db database.Database, store storage.Storage, cfg *config.Config) *Server {
	s := &Server{DB: db, Store: store, Config: cfg}

	ledgerSvc := ledger.New(db, cfg.InitialCredits)
	recorder := history.New(db)
	orchestrator := batch.New(imaging.Engine{}, ledgerSvc, recorder, batch.Config{
		MaxFileSize: cfg.MaxFileSize,
		Workers:     cfg.Workers,
	})

	h := &handler.Handler{
		DB:      db,
		Store:   store,
		Ledger:  ledgerSvc,
		History: recorder,
		Batch:   orchestrator,
		Config:  cfg,
	}

	r := chi.NewRouter()

	// CORS — must be before other middleware to handle preflight OPTIONS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check (no auth required).
	r.Get("/health", s.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.AuthMiddleware(db))

		// Anonymous usage is allowed on the tool endpoints: it is free
		// and recorded without attribution.
		r.Get("/tools", h.ListTools)
		r.Post("/process/{tool_id}", h.ProcessTool)
		r.Get("/download/{batch_id}/{file_name}", h.Download)
		r.Get("/history", h.GetHistory)

		r.Group(func(r chi.Router) {
			r.Use(api.RequireUser)
			r.Get("/credits", h.GetCredits)
			r.Get("/credits/transactions", h.ListTransactions)
		})

		r.Group(func(r chi.Router) {
			r.Use(api.RequireAdmin(db))
			r.Post("/admin/credits/grant", h.GrantCredits)
		})
	})

	s.Router = r
	return s
}

// Health returns a simple health-check response.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("Health: failed to encode response: %v", err)
	}
}
