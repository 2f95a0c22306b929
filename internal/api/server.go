package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/service"
)

const (
	// UserHeader carries the caller identity set by the upstream auth layer.
	UserHeader = "X-User-ID"
	// AdminHeader carries the shared token for batch job routes.
	AdminHeader = "X-Admin-Token"

	leaderboardCacheControl = "s-maxage=60, stale-while-revalidate=30"
)

// Server provides the HTTP API.
type Server struct {
	svc        *service.Service
	logger     *logrus.Logger
	mux        *http.ServeMux
	adminToken string
}

// NewServer creates a Server, registers all routes, and returns it. Admin
// routes answer 403 when adminToken is empty.
func NewServer(svc *service.Service, logger *logrus.Logger, adminToken string) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux(), adminToken: adminToken}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – Plans
	s.mux.HandleFunc("GET /api/plans", s.withUser(s.handleListPlans))
	s.mux.HandleFunc("POST /api/plans", s.withUser(s.handleCreatePlan))
	s.mux.HandleFunc("GET /api/plans/calendar", s.withUser(s.handleCalendar))
	s.mux.HandleFunc("PATCH /api/plans/{id}", s.withUser(s.handleUpdatePlan))
	s.mux.HandleFunc("DELETE /api/plans/{id}", s.withUser(s.handleDeletePlan))
	s.mux.HandleFunc("POST /api/plans/{id}/override", s.withUser(s.handleRequestOverride))

	// API – Stats & leaderboards
	s.mux.HandleFunc("GET /api/stats", s.withUser(s.handleRoomStats))
	s.mux.HandleFunc("GET /api/leaderboards", s.withUser(s.handleGetLeaderboard))

	// API – Batch jobs
	s.mux.HandleFunc("POST /api/admin/settle", s.withAdmin(s.handleSettle))
	s.mux.HandleFunc("POST /api/admin/teams/score", s.withAdmin(s.handleScoreTeams))
	s.mux.HandleFunc("POST /api/admin/leaderboards/build", s.withAdmin(s.handleBuildLeaderboards))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// decodeOptionalJSON is decodeJSON for routes whose body may be absent.
func (s *Server) decodeOptionalJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return true, ""
	}
	return s.decodeJSON(r, dst)
}

// respondServiceError maps service errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, action string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, service.ErrPlanLocked):
		reasons := make([]string, 0, len(models.OverrideReasons))
		for _, r := range models.OverrideReasons {
			reasons = append(reasons, string(r))
		}
		s.respondJSON(w, http.StatusLocked, map[string]any{
			"error":           err.Error(),
			"overrideReasons": reasons,
		})
	case errors.Is(err, service.ErrPlanNotFound), errors.Is(err, service.ErrNotRoomMember):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrSnapshotNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.WithError(err).Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

type userHandler func(w http.ResponseWriter, r *http.Request, userID uuid.UUID)

// withUser resolves the caller from UserHeader.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		if raw == "" {
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid user id")
			return
		}
		next(w, r, userID)
	}
}

// withAdmin guards batch job routes with the shared admin token.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminHeader)
		if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			s.respondError(w, http.StatusForbidden, "admin token required")
			return
		}
		next(w, r)
	}
}

// pathID extracts the {id} path value and parses it as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing id in path")
	}
	return uuid.Parse(raw)
}

// requireRoomID reads the roomId query parameter.  It writes an error
// response and returns false when the parameter is absent or invalid.
func (s *Server) requireRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("roomId")
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "roomId query parameter is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "roomId must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Plans
// ---------------------------------------------------------------------------

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	plans, err := s.svc.ListPlans(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err, "list plans")
		return
	}
	if plans == nil {
		plans = []*models.Plan{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req service.CreatePlanInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	plan, err := s.svc.CreatePlan(r.Context(), userID, req)
	if err != nil {
		s.respondServiceError(w, err, "create plan")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"plan": plan})
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	planID, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	var req service.UpdatePlanInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	plan, err := s.svc.UpdatePlan(r.Context(), userID, planID, req)
	if err != nil {
		s.respondServiceError(w, err, "update plan")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	planID, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	var req service.DeletePlanInput
	if ok, msg := s.decodeOptionalJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.DeletePlan(r.Context(), userID, planID, req); err != nil {
		s.respondServiceError(w, err, "delete plan")
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRequestOverride(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	planID, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	var req service.OverrideInput
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	override, err := s.svc.RequestOverride(r.Context(), userID, planID, req)
	if err != nil {
		s.respondServiceError(w, err, "record override")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"override": override})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	q := r.URL.Query()
	days, err := s.svc.Calendar(r.Context(), userID, q.Get("from"), q.Get("to"))
	if err != nil {
		s.respondServiceError(w, err, "build calendar")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"days": days})
}

// ---------------------------------------------------------------------------
// Stats & leaderboards
// ---------------------------------------------------------------------------

func (s *Server) handleRoomStats(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	roomID, ok := s.requireRoomID(w, r)
	if !ok {
		return
	}

	stats, err := s.svc.RoomStats(r.Context(), userID, roomID)
	if err != nil {
		s.respondServiceError(w, err, "load room stats")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	roomID, ok := s.requireRoomID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	date := q.Get("date")
	if q.Has("date") && strings.TrimSpace(date) == "" {
		s.respondError(w, http.StatusBadRequest, "date must not be blank")
		return
	}

	view, err := s.svc.GetLeaderboard(r.Context(), userID, roomID, date)
	if err != nil {
		s.respondServiceError(w, err, "load leaderboard")
		return
	}
	w.Header().Set("Cache-Control", leaderboardCacheControl)
	s.respondJSON(w, http.StatusOK, view)
}

// ---------------------------------------------------------------------------
// Batch jobs
// ---------------------------------------------------------------------------

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req service.SettleRequest
	if ok, msg := s.decodeOptionalJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	report, err := s.svc.SettleDailyStats(r.Context(), req)
	s.respondJob(w, report, err, "settle daily stats")
}

func (s *Server) handleScoreTeams(w http.ResponseWriter, r *http.Request) {
	var req service.ScoreRequest
	if ok, msg := s.decodeOptionalJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	report, err := s.svc.ScoreTeams(r.Context(), req)
	s.respondJob(w, report, err, "score teams")
}

func (s *Server) handleBuildLeaderboards(w http.ResponseWriter, r *http.Request) {
	var req service.SnapshotRequest
	if ok, msg := s.decodeOptionalJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	report, err := s.svc.BuildAllLeaderboards(r.Context(), req)
	s.respondJob(w, report, err, "build leaderboards")
}

// respondJob writes a batch report. Runs with per-unit failures still return
// their report, with the aggregated error alongside.
func (s *Server) respondJob(w http.ResponseWriter, report any, err error, action string) {
	if err == nil {
		s.respondJSON(w, http.StatusOK, report)
		return
	}
	if service.IsValidation(err) {
		s.respondServiceError(w, err, action)
		return
	}
	s.logger.WithError(err).Errorf("failed to %s", action)
	s.respondJSON(w, http.StatusInternalServerError, map[string]any{
		"error":  err.Error(),
		"report": report,
	})
}
