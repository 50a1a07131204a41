package archive

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hydromet/imerg-subset-service/internal/grid"
	"github.com/hydromet/imerg-subset-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "edl.test-token"

var (
	testDate = time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	testBBox = grid.BBox{MinLon: 106.0, MinLat: -7.0, MaxLon: 107.0, MaxLat: -6.0}
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL, testToken, t.TempDir(), 5*time.Second, logger, observability.NewMetricsForTesting())
}

func TestFileName(t *testing.T) {
	assert.Equal(t,
		"3B-DAY-L.MS.MRG.3IMERG.20250102-S000000-E235959.V07B.nc4",
		FileName(testDate),
	)
}

func TestSubsetURL(t *testing.T) {
	c := testClient(t, "https://archive.example.com/opendap")
	got := c.SubsetURL(testDate, testBBox)

	want := "https://archive.example.com/opendap/2025/01/" +
		"3B-DAY-L.MS.MRG.3IMERG.20250102-S000000-E235959.V07B.nc4.nc4" +
		"?precipitation[0:0][2860:2870][829:839],time,lon[2860:2870],lat[829:839]"
	assert.Equal(t, want, got)
}

func TestFetch_DownloadsAndCaches(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("netcdf-bytes"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	path, err := c.Fetch(context.Background(), testDate, testBBox)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.downloadDir, FileName(testDate)), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "netcdf-bytes", string(data))

	// Second fetch for the same date must not touch the network.
	again, err := c.Fetch(context.Background(), testDate, testBBox)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int64(1), requests.Load())
}

func TestFetch_RemoteRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such granule", http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), testDate, testBBox)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.Status)

	// A rejected request must not leave a file behind.
	entries, err := os.ReadDir(c.downloadDir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse all connections

	c := testClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), testDate, testBBox)
	require.Error(t, err)
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, testDate, testBBox)
	require.Error(t, err)
}
