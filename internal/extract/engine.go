// Package extract turns downloaded subset files into a date-by-point
// precipitation table.
package extract

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/hydromet/imerg-subset-service/internal/observability"
)

// Sentinel marks a value that could not be resolved: a point outside the
// subset extent, a malformed file, or non-finite data. Kept at -9999 for
// compatibility with downstream hydrology tooling that expects it.
const Sentinel = -9999.0

// dateRe finds the 8-digit date run in an IMERG product filename.
var dateRe = regexp.MustCompile(`(\d{8})`)

// GridFile is one opened subset grid. At performs a nearest-neighbor lookup
// of the precipitation value at a coordinate.
type GridFile interface {
	At(lon, lat float64) (float64, error)
}

// Opener opens a downloaded grid file. Production uses OpenNetCDF; tests
// substitute fakes.
type Opener func(path string) (GridFile, error)

// Engine extracts point values from a set of downloaded grids.
type Engine struct {
	open    Opener
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithOpener replaces the grid file opener.
func WithOpener(o Opener) Option {
	return func(e *Engine) {
		if o != nil {
			e.open = o
		}
	}
}

// NewEngine creates an extraction engine reading NetCDF subsets.
func NewEngine(logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Engine {
	e := &Engine{
		open:    OpenNetCDF,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table is the extracted result: one row per date (ascending), one column
// per point, in the points' input order.
type Table struct {
	Dates  []time.Time
	Points []Point
	Values [][]float64 // indexed [date][point]
}

// Extract reads each downloaded file in filename-sorted order and looks up
// every point. Per-point and per-file failures degrade to the sentinel value
// rather than failing the batch.
func (e *Engine) Extract(paths []string, points []Point) (*Table, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no extraction points supplied")
	}

	// Filename-sorted processing keeps rows chronological: the date is
	// embedded in the product name.
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	table := &Table{Points: points}
	for _, path := range sorted {
		date, err := dateFromFilename(path)
		if err != nil {
			e.logger.Warn("skipping file without a date in its name", "path", path, "error", err)
			continue
		}
		table.Dates = append(table.Dates, date)
		table.Values = append(table.Values, e.extractRow(path, points))
	}
	return table, nil
}

func (e *Engine) extractRow(path string, points []Point) []float64 {
	row := make([]float64, len(points))

	gf, err := e.open(path)
	if err != nil {
		e.logger.Warn("grid file unreadable, substituting sentinel", "path", path, "error", err)
		for i := range row {
			row[i] = Sentinel
			e.metrics.SentinelSubstitutions.Inc()
		}
		return row
	}

	for i, p := range points {
		v, err := gf.At(p.Lon, p.Lat)
		if err != nil || !isFinite(v) {
			row[i] = Sentinel
			e.metrics.SentinelSubstitutions.Inc()
			continue
		}
		row[i] = v
		e.metrics.PointsExtracted.Inc()
	}
	return row
}

func dateFromFilename(path string) (time.Time, error) {
	m := dateRe.FindString(filepath.Base(path))
	if m == "" {
		return time.Time{}, fmt.Errorf("no 8-digit date in %q", filepath.Base(path))
	}
	date, err := time.Parse("20060102", m)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", m, err)
	}
	return date, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
