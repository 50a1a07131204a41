// Package archive downloads daily IMERG precipitation subsets from the GES
// DISC OPeNDAP endpoint.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hydromet/imerg-subset-service/internal/grid"
	"github.com/hydromet/imerg-subset-service/internal/observability"
)

// RemoteError is a non-2xx response from the archive. No local file is
// written when it is returned.
type RemoteError struct {
	Status int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("archive rejected request: status %d", e.Status)
}

// Client fetches subset files over authenticated HTTP. Safe for concurrent
// use; each date owns a distinct target filename, so parallel fetches never
// contend on the filesystem.
type Client struct {
	baseURL     string
	token       string
	downloadDir string
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewClient creates an archive client with a bounded per-request timeout.
func NewClient(baseURL, token, downloadDir string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		downloadDir: downloadDir,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// FileName returns the canonical IMERG daily product name for a date. The
// idempotence cache keys on this exact name, so it must stay byte-identical
// across runs and releases.
func FileName(date time.Time) string {
	return fmt.Sprintf("3B-DAY-L.MS.MRG.3IMERG.%s-S000000-E235959.V07B.nc4", date.Format("20060102"))
}

// SubsetURL builds the OPeNDAP query selecting the precipitation variable
// sliced to the bounding box, plus the time, lon, and lat coordinate vectors.
func (c *Client) SubsetURL(date time.Time, bbox grid.BBox) string {
	lon, lat := grid.RangesFor(bbox)
	name := FileName(date)
	return fmt.Sprintf("%s/%s/%s/%s.nc4?precipitation[0:0][%d:%d][%d:%d],time,lon[%d:%d],lat[%d:%d]",
		c.baseURL, date.Format("2006"), date.Format("01"), name,
		lon.Min, lon.Max, lat.Min, lat.Max,
		lon.Min, lon.Max,
		lat.Min, lat.Max,
	)
}

// Fetch downloads the subset for one date, returning the local file path.
// If the target file already exists the path is returned with no network
// access at all; repeated requests for the same date cost one transfer.
func (c *Client) Fetch(ctx context.Context, date time.Time, bbox grid.BBox) (string, error) {
	savePath := filepath.Join(c.downloadDir, FileName(date))
	if _, err := os.Stat(savePath); err == nil {
		c.metrics.FetchResults.WithLabelValues("cached").Inc()
		c.logger.Debug("subset already downloaded", "path", savePath)
		return savePath, nil
	}

	start := time.Now()
	path, err := c.download(ctx, date, bbox, savePath)
	if err != nil {
		c.metrics.FetchResults.WithLabelValues("failed").Inc()
		return "", err
	}
	c.metrics.FetchResults.WithLabelValues("downloaded").Inc()
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	return path, nil
}

func (c *Client) download(ctx context.Context, date time.Time, bbox grid.BBox, savePath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SubsetURL(date, bbox), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch subset for %s: %w", date.Format("2006-01-02"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RemoteError{Status: resp.StatusCode}
	}

	if err := os.MkdirAll(c.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	// Stream to a temp path and rename so a crash mid-download never leaves
	// a partial file that the cache check would treat as complete.
	tmp := savePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", savePath, err)
	}
	if err := os.Rename(tmp, savePath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize %s: %w", savePath, err)
	}

	c.metrics.BytesDownloaded.Add(float64(n))
	c.logger.Info("subset downloaded", "path", savePath, "bytes", n)
	return savePath, nil
}
