// Package http exposes the extraction API plus health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydromet/imerg-subset-service/internal/boundary"
	"github.com/hydromet/imerg-subset-service/internal/extract"
	"github.com/hydromet/imerg-subset-service/internal/pipeline"
	"github.com/hydromet/imerg-subset-service/internal/quota"
)

// maxUploadBytes bounds the multipart form held in memory (shapefile ZIP
// plus coordinate CSV).
const maxUploadBytes = 32 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the v1 API over a plain net/http mux.
type Server struct {
	httpServer *http.Server
	service    *pipeline.Service
	ledger     *quota.Ledger
	authority  *quota.AdminAuthority // nil disables admin endpoints
	logger     *slog.Logger
}

// NewServer creates the HTTP server. Pass a nil authority to disable the
// admin endpoints entirely (no ADMIN_SECRET configured).
func NewServer(addr string, service *pipeline.Service, ledger *quota.Ledger, authority *quota.AdminAuthority, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 15 * time.Minute, // extraction jobs run synchronously
			IdleTimeout:  60 * time.Second,
		},
		service:   service,
		ledger:    ledger,
		authority: authority,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/extract", s.handleExtract)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("POST /v1/admin/token", s.handleAdminToken)
	mux.HandleFunc("PATCH /v1/admin/users/{username}", s.handleAdminUpdateUser)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// extractResponse is the JSON body returned by POST /v1/extract.
type extractResponse struct {
	JobID     string           `json:"job_id"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	TablePath string           `json:"table_path,omitempty"`
	Outcomes  []outcomeSummary `json:"outcomes"`
}

type outcomeSummary struct {
	Date  string `json:"date"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		writeError(w, http.StatusUnauthorized, "credentials required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}

	start, err := time.Parse("2006-01-02", r.FormValue("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.FormValue("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	shpFile, shpHeader, err := r.FormFile("shapefile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "shapefile upload is required")
		return
	}
	defer shpFile.Close()

	bbox, err := boundary.FromZip(shpFile, shpHeader.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read boundary: "+err.Error())
		return
	}

	coordFile, _, err := r.FormFile("coordinates")
	if err != nil {
		writeError(w, http.StatusBadRequest, "coordinates upload is required")
		return
	}
	defer coordFile.Close()

	points, err := extract.LoadPoints(coordFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read coordinates: "+err.Error())
		return
	}

	result, err := s.service.RunJob(r.Context(), pipeline.JobRequest{
		Username: username,
		Password: password,
		Start:    start,
		End:      end,
		BBox:     bbox,
		Points:   points,
	})
	if err != nil {
		status := statusForJobError(err)
		if result == nil {
			writeError(w, status, err.Error())
			return
		}
		// A partial result (e.g. every fetch failed) is still reported.
		writeJSON(w, status, jobResponse(result))
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(result))
}

func jobResponse(result *pipeline.JobResult) extractResponse {
	resp := extractResponse{
		JobID:     result.ID,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		TablePath: result.TablePath,
	}
	for _, out := range result.Outcomes {
		summary := outcomeSummary{Date: out.Date.Format("2006-01-02"), Path: out.Path}
		if out.Err != nil {
			summary.Error = out.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, summary)
	}
	return resp
}

func statusForJobError(err error) int {
	var daily *quota.DailyExceededError
	var monthly *quota.MonthlyExceededError
	switch {
	case errors.Is(err, pipeline.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, quota.ErrInactive):
		return http.StatusForbidden
	case errors.As(err, &daily), errors.As(err, &monthly):
		return http.StatusTooManyRequests
	case errors.Is(err, pipeline.ErrEmptyDateRange):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrAllFetchesFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		writeError(w, http.StatusUnauthorized, "credentials required")
		return
	}
	info, err := s.service.Usage(username, password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	if s.authority == nil {
		writeError(w, http.StatusNotFound, "admin endpoints are not configured")
		return
	}

	var body struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.authority.VerifySecret(body.Secret) {
		writeError(w, http.StatusUnauthorized, "invalid admin secret")
		return
	}

	token, err := s.authority.Mint()
	if err != nil {
		s.logger.Error("mint admin token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// adminUserUpdate carries the mutations an admin may apply; nil fields are
// left unchanged.
type adminUserUpdate struct {
	DailyLimit   *int    `json:"daily_limit"`
	MonthlyLimit *int    `json:"monthly_limit"`
	Tier         *string `json:"tier"`
	Active       *bool   `json:"active"`
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	if s.authority == nil {
		writeError(w, http.StatusNotFound, "admin endpoints are not configured")
		return
	}

	var tokenString string
	if _, err := fmt.Sscanf(r.Header.Get("Authorization"), "Bearer %s", &tokenString); err != nil {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}
	if err := s.authority.Verify(tokenString); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	username := r.PathValue("username")

	var update adminUserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if update.Tier != nil {
		tier, err := quota.ParseTier(*update.Tier)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !s.ledger.SetTier(username, tier) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
	}
	if update.DailyLimit != nil || update.MonthlyLimit != nil {
		if !s.ledger.SetLimits(username, update.DailyLimit, update.MonthlyLimit) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
	}
	if update.Active != nil {
		changed := false
		if *update.Active {
			changed = s.ledger.Activate(username)
		} else {
			changed = s.ledger.Deactivate(username)
		}
		if !changed {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
	}

	info, ok := s.ledger.Info(username)
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
