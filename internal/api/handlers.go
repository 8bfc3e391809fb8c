package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/maintenance"
	"github.com/ignite/listkeeper/internal/pkg/httputil"
	"github.com/ignite/listkeeper/internal/service/list"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// Redis is advisory; the service runs without it.
			status["redis"] = err.Error()
		} else {
			status["redis"] = "ok"
		}
	}
	httputil.JSON(w, code, status)
}

func (s *Server) handleRunMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenance.Request
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ListID == "" {
		httputil.BadRequest(w, "list_id is required")
		return
	}
	if req.Since.IsZero() {
		req.Since = time.Now().UTC().Add(-24 * time.Hour)
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil && result == nil {
		switch err {
		case list.ErrListNotFound:
			httputil.NotFound(w, "list not found")
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	// A failed run still produced an audit record; return it with 200 so
	// the caller can inspect the outcome.
	httputil.OK(w, result)
}

func (s *Server) handleGetMaintenanceLog(w http.ResponseWriter, r *http.Request) {
	log, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.NotFound(w, "maintenance log not found")
		return
	}
	httputil.OK(w, log)
}

func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	logs, err := s.runs.RecentForList(r.Context(), chi.URLParam(r, "id"), 20)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"logs": logs})
}

func (s *Server) handleListRoundLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.lists.ActiveRoundLists(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"lists": lists})
}

func (s *Server) handleCreateRoundList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Round int    `json:"round"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Round < 1 {
		httputil.BadRequest(w, "name and a positive round are required")
		return
	}

	created, err := s.lists.CreateRoundList(r.Context(), req.Name, req.Round)
	switch err {
	case nil:
		httputil.Created(w, created)
	case list.ErrDuplicateRound:
		httputil.Error(w, http.StatusConflict, "round already has an active list")
	default:
		httputil.InternalError(w, err)
	}
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	l, err := s.lists.GetList(r.Context(), chi.URLParam(r, "id"))
	switch err {
	case nil:
		httputil.OK(w, l)
	case list.ErrListNotFound:
		httputil.NotFound(w, "list not found")
	default:
		httputil.InternalError(w, err)
	}
}

// handleListContacts returns one page of members in send order.
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	members, err := s.lists.Contacts(r.Context(), chi.URLParam(r, "id"), page, pageSize)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if page < 1 {
		page = 1
	}
	httputil.OK(w, map[string]any{
		"contacts": members,
		"page":     page,
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []domain.ImportRecord `json:"records"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Records) == 0 {
		httputil.BadRequest(w, "records are required")
		return
	}

	result, err := s.lists.BulkImport(r.Context(), chi.URLParam(r, "id"), req.Records)
	switch err {
	case nil:
		httputil.OK(w, result)
	case list.ErrListNotFound:
		httputil.NotFound(w, "list not found")
	default:
		httputil.InternalError(w, err)
	}
}

// handleSuppressionCheck answers "may this contact receive mail". The
// contact parameter accepts an id or an email address.
func (s *Server) handleSuppressionCheck(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("contact")
	if key == "" {
		httputil.BadRequest(w, "contact query parameter is required")
		return
	}
	httputil.OK(w, map[string]any{
		"contact":    key,
		"suppressed": s.suppression.IsSuppressed(r.Context(), key),
	})
}

func (s *Server) handleSuppress(w http.ResponseWriter, r *http.Request) {
	var req domain.SuppressionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonManual
	}
	if err := s.suppression.Suppress(r.Context(), req); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "suppressed"})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReactivatedBy string `json:"reactivated_by"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	contactID := chi.URLParam(r, "contactID")
	if err := s.suppression.Reactivate(r.Context(), contactID, req.ReactivatedBy); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "reactivated"})
}

func (s *Server) handleSuppressionHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.suppression.History(r.Context(), chi.URLParam(r, "contactID"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"history": entries})
}

func (s *Server) handleSuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.suppression.Stats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"by_reason": stats})
}
