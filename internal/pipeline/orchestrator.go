// Package pipeline runs the quota-gated download and extraction flow: expand
// a date range into fetch tasks, execute them with bounded parallelism, and
// hand the downloaded files to the extraction engine.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hydromet/imerg-subset-service/internal/grid"
	"github.com/hydromet/imerg-subset-service/internal/observability"
)

// Fetcher downloads the subset for one date. archive.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time, bbox grid.BBox) (string, error)
}

// Outcome is the result of one fetch task: a local path on success, else the
// task's error. A failed task never aborts its siblings.
type Outcome struct {
	Date time.Time
	Path string
	Err  error
}

// Orchestrator fans fetch tasks out over a fixed-size worker pool.
type Orchestrator struct {
	fetcher     Fetcher
	maxParallel int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewOrchestrator creates an orchestrator running at most maxParallel
// concurrent fetches.
func NewOrchestrator(f Fetcher, maxParallel int, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Orchestrator{
		fetcher:     f,
		maxParallel: maxParallel,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run fetches every date and returns outcomes in input order, regardless of
// completion order. Each fetch is attempted exactly once; callers wanting
// retries wrap the orchestrator. Blocks until all tasks finish.
func (o *Orchestrator) Run(ctx context.Context, dates []time.Time, bbox grid.BBox) []Outcome {
	start := time.Now()
	o.metrics.BatchSize.Observe(float64(len(dates)))

	outcomes := make([]Outcome, len(dates))
	sem := make(chan struct{}, o.maxParallel)
	var wg sync.WaitGroup

	for i, date := range dates {
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int, date time.Time) {
			defer wg.Done()
			defer func() { <-sem }()

			path, err := o.fetcher.Fetch(ctx, date, bbox)
			if err != nil {
				o.logger.Warn("fetch failed", "date", date.Format("2006-01-02"), "error", err)
			}
			outcomes[slot] = Outcome{Date: date, Path: path, Err: err}
		}(i, date)
	}
	wg.Wait()

	o.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	return outcomes
}

// DateRange expands an inclusive calendar range into one entry per day, in
// order. Returns nil when end precedes start.
func DateRange(start, end time.Time) []time.Time {
	start = truncateToDay(start)
	end = truncateToDay(end)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
