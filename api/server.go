package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"hourledger/models"
	"hourledger/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes the administrative and collaborator-facing HTTP surface.
// Handlers are thin: parse, delegate to a service, translate the result.
// Authentication happens upstream; the acting user arrives in X-Actor-ID.
type Server struct {
	debts          service.DebtService
	ledger         service.LedgerService
	rollback       service.RollbackService
	reconciliation service.ReconciliationService
	settings       service.SettingsService
	stats          service.StatsService
}

// NewServer creates an HTTP server over the given services.
func NewServer(
	debts service.DebtService,
	ledger service.LedgerService,
	rollback service.RollbackService,
	reconciliation service.ReconciliationService,
	settings service.SettingsService,
	stats service.StatsService,
) *Server {
	return &Server{
		debts:          debts,
		ledger:         ledger,
		rollback:       rollback,
		reconciliation: reconciliation,
		settings:       settings,
		stats:          stats,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Hooks invoked by the time tracking collaborator.
		r.Post("/work-records/{id}/approved", s.handleWorkRecordApproved)
		r.Post("/work-records/{id}/reversed", s.handleWorkRecordReversed)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/debts", s.handleCreateDebt)
			r.Get("/debts", s.handleListDebts)
			r.Get("/users/{userID}/balance", s.handleUserBalance)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handleUpdateSettings)
			r.Get("/stats", s.handleTenantStats)
			r.Post("/reviews", s.handleRunReview)
			r.Get("/reviews/latest", s.handleLatestReview)
		})

		// Debt routes are scoped by the X-Tenant-ID header so the debt id
		// stays the resource identifier.
		r.Route("/debts/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDebt)
			r.Put("/", s.handleUpdateDebt)
			r.Delete("/", s.handleDeleteDebt)
			r.Post("/cancel", s.handleCancelDebt)
			r.Get("/deductions", s.handleGetDeductions)
			r.Get("/audit-log", s.handleGetAuditLog)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// respondError maps service errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "ledger busy, retry the request")
	default:
		log.WithError(err).Error("Unhandled error in HTTP handler")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// tenantFromHeader resolves the tenant scope for debt-id routes.
func tenantFromHeader(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-Tenant-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("missing or invalid X-Tenant-ID header")
	}
	return id, nil
}

// actorFrom builds the acting user from the X-Actor-ID header plus request
// metadata. Every administrative mutation requires it.
func actorFrom(r *http.Request) (service.Actor, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil || id <= 0 {
		return service.Actor{}, errors.New("missing or invalid X-Actor-ID header")
	}
	return service.Actor{
		UserID: id,
		Meta: models.RequestMeta{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		},
	}, nil
}

// parseDay parses a YYYY-MM-DD query or body value.
func parseDay(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, value)
}
