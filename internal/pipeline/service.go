package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hydromet/imerg-subset-service/internal/extract"
	"github.com/hydromet/imerg-subset-service/internal/grid"
	"github.com/hydromet/imerg-subset-service/internal/observability"
	"github.com/hydromet/imerg-subset-service/internal/quota"
)

var (
	// ErrAuthFailed covers unknown users and bad credentials alike; the
	// distinction is deliberately not surfaced to callers.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrEmptyDateRange is returned when the end date precedes the start.
	ErrEmptyDateRange = errors.New("date range is empty")

	// ErrAllFetchesFailed is returned when no date in the batch could be
	// downloaded; the quota reservation is rolled back.
	ErrAllFetchesFailed = errors.New("every fetch in the batch failed")
)

// JobRequest describes one extraction job.
type JobRequest struct {
	Username string
	Password string
	Start    time.Time
	End      time.Time
	BBox     grid.BBox
	Points   []extract.Point
}

// JobResult summarizes a finished job.
type JobResult struct {
	ID        string    `json:"id"`
	Outcomes  []Outcome `json:"-"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	TablePath string    `json:"table_path"`
}

// Service ties the ledger, orchestrator, and extraction engine into the
// end-to-end flow. Authentication and quota are settled before any network
// work starts, so a request that cannot be committed costs no downloads.
type Service struct {
	ledger    *quota.Ledger
	orch      *Orchestrator
	engine    *extract.Engine
	outputDir string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService builds the job service. Exported tables are written to outputDir.
func NewService(ledger *quota.Ledger, orch *Orchestrator, engine *extract.Engine, outputDir string, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		ledger:    ledger,
		orch:      orch,
		engine:    engine,
		outputDir: outputDir,
		logger:    logger,
		metrics:   metrics,
	}
}

// RunJob executes one quota-gated download-and-extract job.
func (s *Service) RunJob(ctx context.Context, req JobRequest) (*JobResult, error) {
	s.metrics.JobsInFlight.Inc()
	defer s.metrics.JobsInFlight.Dec()

	if !s.ledger.Authenticate(req.Username, req.Password) {
		s.metrics.JobsTotal.WithLabelValues("auth_denied").Inc()
		return nil, ErrAuthFailed
	}

	dates := DateRange(req.Start, req.End)
	if len(dates) == 0 {
		return nil, ErrEmptyDateRange
	}

	// Atomic check-and-reserve: concurrent jobs cannot jointly overshoot the
	// limit between here and commit.
	reservation, err := s.ledger.Reserve(req.Username, len(dates))
	if err != nil {
		s.recordQuotaDenial(err)
		return nil, err
	}

	jobID := uuid.NewString()
	logger := s.logger.With("job_id", jobID, "user", req.Username)
	logger.Info("job started", "dates", len(dates), "points", len(req.Points))

	outcomes := s.orch.Run(ctx, dates, req.BBox)

	var paths []string
	for _, out := range outcomes {
		if out.Err == nil {
			paths = append(paths, out.Path)
		}
	}

	result := &JobResult{
		ID:        jobID,
		Outcomes:  outcomes,
		Succeeded: len(paths),
		Failed:    len(outcomes) - len(paths),
	}

	if len(paths) == 0 {
		reservation.Rollback()
		s.metrics.JobsTotal.WithLabelValues("failed").Inc()
		logger.Error("job failed", "failed", result.Failed)
		return result, ErrAllFetchesFailed
	}

	// Usage is committed for the files actually downloaded, even if the
	// extraction step below fails: the transfers happened.
	if err := reservation.Commit(ctx, len(paths)); err != nil {
		logger.Error("usage commit failed", "error", err)
	}

	table, err := s.engine.Extract(paths, req.Points)
	if err != nil {
		s.metrics.JobsTotal.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("extract precipitation: %w", err)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		s.metrics.JobsTotal.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("create output dir: %w", err)
	}
	result.TablePath = filepath.Join(s.outputDir, fmt.Sprintf("IMERG_Extracted_%s.xlsx", jobID))
	if err := extract.WriteXLSX(table, result.TablePath); err != nil {
		s.metrics.JobsTotal.WithLabelValues("failed").Inc()
		return result, err
	}

	s.metrics.JobsTotal.WithLabelValues("completed").Inc()
	logger.Info("job completed", "succeeded", result.Succeeded, "failed", result.Failed, "table", result.TablePath)
	return result, nil
}

// Usage returns the requesting user's quota summary after verifying the
// credential.
func (s *Service) Usage(username, password string) (quota.UserInfo, error) {
	if !s.ledger.Authenticate(username, password) {
		return quota.UserInfo{}, ErrAuthFailed
	}
	info, ok := s.ledger.Info(username)
	if !ok {
		return quota.UserInfo{}, quota.ErrNotFound
	}
	return info, nil
}

func (s *Service) recordQuotaDenial(err error) {
	var daily *quota.DailyExceededError
	var monthly *quota.MonthlyExceededError
	switch {
	case errors.As(err, &daily):
		s.metrics.QuotaDenials.WithLabelValues("daily").Inc()
		s.metrics.JobsTotal.WithLabelValues("quota_denied").Inc()
	case errors.As(err, &monthly):
		s.metrics.QuotaDenials.WithLabelValues("monthly").Inc()
		s.metrics.JobsTotal.WithLabelValues("quota_denied").Inc()
	default:
		s.metrics.JobsTotal.WithLabelValues("auth_denied").Inc()
	}
}
