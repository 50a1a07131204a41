package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydromet/imerg-subset-service/internal/grid"
	"github.com/hydromet/imerg-subset-service/internal/observability"
)

var testBBox = grid.BBox{MinLon: 106.0, MinLat: -7.0, MaxLon: 107.0, MaxLat: -6.0}

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetchFunc adapts a function to the Fetcher interface.
type fetchFunc func(ctx context.Context, date time.Time, bbox grid.BBox) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, date time.Time, bbox grid.BBox) (string, error) {
	return f(ctx, date, bbox)
}

func TestRun_PreservesInputOrder(t *testing.T) {
	// Later dates finish first; output order must still match input order.
	fetch := fetchFunc(func(_ context.Context, date time.Time, _ grid.BBox) (string, error) {
		time.Sleep(time.Duration(10-date.Day()) * time.Millisecond)
		return date.Format("20060102") + ".nc4", nil
	})
	o := NewOrchestrator(fetch, 5, discardLogger(), observability.NewMetricsForTesting())

	dates := []time.Time{day(1), day(2), day(3), day(4), day(5)}
	outcomes := o.Run(context.Background(), dates, testBBox)

	require.Len(t, outcomes, 5)
	for i, out := range outcomes {
		assert.Equal(t, dates[i], out.Date)
		assert.Equal(t, dates[i].Format("20060102")+".nc4", out.Path)
		assert.NoError(t, out.Err)
	}
}

func TestRun_PartialFailureDoesNotAbortBatch(t *testing.T) {
	missing := day(3)
	fetch := fetchFunc(func(_ context.Context, date time.Time, _ grid.BBox) (string, error) {
		if date.Equal(missing) {
			return "", errors.New("archive rejected request: status 404")
		}
		return date.Format("20060102") + ".nc4", nil
	})
	o := NewOrchestrator(fetch, 2, discardLogger(), observability.NewMetricsForTesting())

	dates := []time.Time{day(1), day(2), day(3), day(4), day(5)}
	outcomes := o.Run(context.Background(), dates, testBBox)

	require.Len(t, outcomes, 5)
	failures := 0
	for i, out := range outcomes {
		assert.Equal(t, dates[i], out.Date)
		if out.Err != nil {
			failures++
			assert.Equal(t, missing, out.Date)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestRun_BoundedParallelism(t *testing.T) {
	const maxParallel = 3

	var current, peak atomic.Int64
	var mu sync.Mutex
	fetch := fetchFunc(func(context.Context, time.Time, grid.BBox) (string, error) {
		n := current.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return "x.nc4", nil
	})
	o := NewOrchestrator(fetch, maxParallel, discardLogger(), observability.NewMetricsForTesting())

	dates := make([]time.Time, 20)
	for i := range dates {
		dates[i] = day(i%28 + 1)
	}
	o.Run(context.Background(), dates, testBBox)

	assert.LessOrEqual(t, peak.Load(), int64(maxParallel))
}

func TestDateRange(t *testing.T) {
	dates := DateRange(day(1), day(3))
	require.Len(t, dates, 3)
	assert.Equal(t, day(1), dates[0])
	assert.Equal(t, day(3), dates[2])

	assert.Len(t, DateRange(day(5), day(5)), 1)
	assert.Empty(t, DateRange(day(5), day(4)))

	// Range spanning a month boundary.
	dates = DateRange(time.Date(2025, time.January, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.February, 2, 0, 0, 0, 0, time.UTC))
	assert.Len(t, dates, 4)
}
