// Package boundary derives a geographic bounding box from an uploaded
// shapefile archive. Coordinates are taken as EPSG:4326 degrees; reprojecting
// other reference systems is out of scope and must happen before upload.
package boundary

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"github.com/hydromet/imerg-subset-service/internal/grid"
)

// ErrNoShapefile is returned when the archive contains no .shp member.
var ErrNoShapefile = errors.New("no .shp file found in the uploaded archive")

// FromZipFile extracts a shapefile ZIP and returns the bounding box of the
// first .shp member.
func FromZipFile(path string) (grid.BBox, error) {
	f, err := os.Open(path)
	if err != nil {
		return grid.BBox{}, fmt.Errorf("open shapefile archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return grid.BBox{}, fmt.Errorf("stat shapefile archive: %w", err)
	}
	return FromZip(f, info.Size())
}

// FromZip reads a shapefile ZIP from r and returns the bounding box of the
// first .shp member.
func FromZip(r io.ReaderAt, size int64) (grid.BBox, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return grid.BBox{}, fmt.Errorf("read shapefile archive: %w", err)
	}

	dir, err := os.MkdirTemp("", "boundary-*")
	if err != nil {
		return grid.BBox{}, fmt.Errorf("create extraction directory: %w", err)
	}
	defer os.RemoveAll(dir)

	shpPath := ""
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		// Flatten member paths; nested archive layouts vary and sidecar
		// files only need to share a directory.
		dest := filepath.Join(dir, filepath.Base(member.Name))
		if err := extractMember(member, dest); err != nil {
			return grid.BBox{}, err
		}
		if shpPath == "" && strings.EqualFold(filepath.Ext(member.Name), ".shp") {
			shpPath = dest
		}
	}

	if shpPath == "" {
		return grid.BBox{}, ErrNoShapefile
	}
	return readBBox(shpPath)
}

func extractMember(member *zip.File, dest string) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open archive member %s: %w", member.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("extract %s: %w", member.Name, err)
	}
	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", member.Name, err)
	}
	return nil
}

func readBBox(path string) (grid.BBox, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return grid.BBox{}, fmt.Errorf("read shapefile: %w", err)
	}
	defer reader.Close()

	box := reader.BBox()
	return grid.BBox{
		MinLon: box.MinX,
		MinLat: box.MinY,
		MaxLon: box.MaxX,
		MaxLat: box.MaxY,
	}, nil
}
