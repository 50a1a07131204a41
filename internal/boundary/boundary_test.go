package boundary

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestShapefile creates a point shapefile spanning the given corners.
func writeTestShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "area.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	points := []shp.Point{
		{X: 106.0, Y: -7.0},
		{X: 107.0, Y: -6.0},
		{X: 106.5, Y: -6.5},
	}
	for i := range points {
		w.Write(&points[i])
	}
	w.Close()
	return path
}

func zipFiles(t *testing.T, paths ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		f, err := zw.Create(filepath.Base(p))
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFromZip(t *testing.T) {
	dir := t.TempDir()
	shpPath := writeTestShapefile(t, dir)
	archive := zipFiles(t, shpPath, filepath.Join(dir, "area.shx"))

	bbox, err := FromZip(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	assert.InDelta(t, 106.0, bbox.MinLon, 1e-9)
	assert.InDelta(t, -7.0, bbox.MinLat, 1e-9)
	assert.InDelta(t, 107.0, bbox.MaxLon, 1e-9)
	assert.InDelta(t, -6.0, bbox.MaxLat, 1e-9)
}

func TestFromZip_NoShapefile(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("not a shapefile"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = FromZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.ErrorIs(t, err, ErrNoShapefile)
}

func TestFromZipFile(t *testing.T) {
	dir := t.TempDir()
	shpPath := writeTestShapefile(t, dir)
	archive := zipFiles(t, shpPath)

	zipPath := filepath.Join(dir, "area.zip")
	require.NoError(t, os.WriteFile(zipPath, archive, 0o600))

	bbox, err := FromZipFile(zipPath)
	require.NoError(t, err)
	assert.InDelta(t, 106.0, bbox.MinLon, 1e-9)
}
