// Package api exposes the HTTP surface: maintenance triggers, list
// reads, imports, and suppression operations.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/maintenance"
)

// MaintenanceRunner triggers the post-campaign pipeline.
type MaintenanceRunner interface {
	Run(ctx context.Context, req maintenance.Request) (*domain.MaintenanceResult, error)
}

// MaintenanceReader reads run audit records.
type MaintenanceReader interface {
	Get(ctx context.Context, id string) (*domain.MaintenanceLog, error)
	RecentForList(ctx context.Context, listID string, limit int) ([]domain.MaintenanceLog, error)
}

// ListService is the slice of the list service the API exposes.
type ListService interface {
	GetList(ctx context.Context, listID string) (*domain.ContactList, error)
	CreateRoundList(ctx context.Context, name string, round int) (*domain.ContactList, error)
	ActiveRoundLists(ctx context.Context) ([]domain.ContactList, error)
	Contacts(ctx context.Context, listID string, page, pageSize int) ([]domain.ListMembership, error)
	BulkImport(ctx context.Context, listID string, records []domain.ImportRecord) (*domain.ImportResult, error)
}

// SuppressionService is the slice of the suppression engine the API
// exposes.
type SuppressionService interface {
	IsSuppressed(ctx context.Context, contactIDOrEmail string) bool
	Suppress(ctx context.Context, req domain.SuppressionRequest) error
	Reactivate(ctx context.Context, contactID, reactivatedBy string) error
	History(ctx context.Context, contactID string) ([]domain.SuppressionEntry, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// Server holds the API dependencies.
type Server struct {
	runner      MaintenanceRunner
	runs        MaintenanceReader
	lists       ListService
	suppression SuppressionService
	db          *sql.DB
	redis       *redis.Client
}

// NewServer creates the API server. db and redis are only used by the
// health endpoint and may be nil in tests.
func NewServer(runner MaintenanceRunner, runs MaintenanceReader, lists ListService,
	suppression SuppressionService, db *sql.DB, redisClient *redis.Client) *Server {
	return &Server{
		runner:      runner,
		runs:        runs,
		lists:       lists,
		suppression: suppression,
		db:          db,
		redis:       redisClient,
	}
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/maintenance/run", s.handleRunMaintenance)
		r.Get("/maintenance/logs/{id}", s.handleGetMaintenanceLog)

		r.Get("/lists", s.handleListRoundLists)
		r.Post("/lists", s.handleCreateRoundList)
		r.Get("/lists/{id}", s.handleGetList)
		r.Get("/lists/{id}/contacts", s.handleListContacts)
		r.Post("/lists/{id}/import", s.handleImport)
		r.Get("/lists/{id}/maintenance", s.handleListMaintenance)

		r.Get("/suppression/check", s.handleSuppressionCheck)
		r.Post("/suppression", s.handleSuppress)
		r.Post("/suppression/{contactID}/reactivate", s.handleReactivate)
		r.Get("/suppression/{contactID}/history", s.handleSuppressionHistory)
		r.Get("/suppression/stats", s.handleSuppressionStats)
	})

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	return srv.ListenAndServe()
}
