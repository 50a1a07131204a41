// Package grid maps geographic coordinates onto the fixed 0.1° global lattice
// used by the GPM IMERG daily product.
//
// The archive's OPeNDAP endpoint addresses the precipitation array by integer
// cell index, not by degree. The two axes use different origins:
//
//	lon index = round((lon + 180) / 0.1)       (origin at 180°W)
//	lat index = round((lat + 90) / 0.1) - 1    (origin at 90°S, shifted one cell)
//
// Both formulas must match the remote grid exactly; a one-cell shift is not an
// error the archive reports, the subset just silently covers the wrong area.
// Out-of-range coordinates produce out-of-range indices and are propagated as
// is; validating inputs is the caller's concern.
package grid

import "math"

// Resolution is the cell size of the IMERG lattice in degrees.
const Resolution = 0.1

// BBox is a geographic bounding box in EPSG:4326 degrees.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// IndexRange is an inclusive span of cell indices along one axis.
type IndexRange struct {
	Min int
	Max int
}

// LonToIndex converts a longitude in degrees to its IMERG cell index.
func LonToIndex(lon float64) int {
	return int(math.Round((lon + 180) / Resolution))
}

// LatToIndex converts a latitude in degrees to its IMERG cell index.
// The latitude axis carries a one-cell offset relative to longitude.
func LatToIndex(lat float64) int {
	return int(math.Round((lat+90)/Resolution)) - 1
}

// RangesFor converts a bounding box to inclusive index ranges per axis.
func RangesFor(b BBox) (lon, lat IndexRange) {
	lon = IndexRange{Min: LonToIndex(b.MinLon), Max: LonToIndex(b.MaxLon)}
	lat = IndexRange{Min: LatToIndex(b.MinLat), Max: LatToIndex(b.MaxLat)}
	return lon, lat
}
