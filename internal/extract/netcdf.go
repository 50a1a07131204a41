package extract

import (
	"errors"
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/hydromet/imerg-subset-service/internal/grid"
)

// ErrOutsideGrid is returned by At for coordinates beyond the subset extent
// (more than half a cell past the outermost coordinate).
var ErrOutsideGrid = errors.New("coordinate outside the subset extent")

// nearestTolerance is how far past the outermost cell center a coordinate
// may fall and still snap to it.
const nearestTolerance = grid.Resolution/2 + 1e-9

// memoryGrid holds one decoded subset in memory. Subsets are small (a few
// hundred cells), so reading eagerly and closing the file immediately is
// cheaper than keeping handles open across the batch.
type memoryGrid struct {
	lons []float64
	lats []float64
	vals [][]float64 // indexed [lon][lat], matching the IMERG axis order
}

// OpenNetCDF reads the precipitation variable and coordinate vectors from a
// downloaded subset file.
func OpenNetCDF(path string) (GridFile, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	lons, err := coordVector(g.GetVariable("lon"))
	if err != nil {
		return nil, fmt.Errorf("%s: lon: %w", path, err)
	}
	lats, err := coordVector(g.GetVariable("lat"))
	if err != nil {
		return nil, fmt.Errorf("%s: lat: %w", path, err)
	}

	precip, err := g.GetVariable("precipitation")
	if err != nil {
		return nil, fmt.Errorf("%s: precipitation: %w", path, err)
	}
	vals, err := valueGrid(precip.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: precipitation: %w", path, err)
	}

	if len(vals) != len(lons) {
		return nil, fmt.Errorf("%s: precipitation has %d lon rows, expected %d", path, len(vals), len(lons))
	}

	return &memoryGrid{lons: lons, lats: lats, vals: vals}, nil
}

// At performs the nearest-neighbor lookup. IMERG daily stores the array as
// precipitation(time, lon, lat); the time axis was already collapsed to its
// single slice when the file was decoded.
func (m *memoryGrid) At(lon, lat float64) (float64, error) {
	lonIdx, err := nearestIndex(m.lons, lon)
	if err != nil {
		return 0, err
	}
	latIdx, err := nearestIndex(m.lats, lat)
	if err != nil {
		return 0, err
	}
	if latIdx >= len(m.vals[lonIdx]) {
		return 0, fmt.Errorf("ragged precipitation grid at lon index %d", lonIdx)
	}
	return m.vals[lonIdx][latIdx], nil
}

func nearestIndex(coords []float64, target float64) (int, error) {
	if len(coords) == 0 {
		return 0, errors.New("empty coordinate vector")
	}
	best, bestDist := 0, math.Inf(1)
	for i, c := range coords {
		if d := math.Abs(c - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	if bestDist > nearestTolerance {
		return 0, ErrOutsideGrid
	}
	return best, nil
}

// coordVector decodes a 1-D coordinate variable.
func coordVector(v *api.Variable, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	switch vals := v.Values.(type) {
	case []float64:
		return vals, nil
	case []float32:
		out := make([]float64, len(vals))
		for i, f := range vals {
			out[i] = float64(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected coordinate type %T", v.Values)
	}
}

// valueGrid decodes the precipitation array, collapsing a leading
// single-element time axis when present.
func valueGrid(values any) ([][]float64, error) {
	switch vals := values.(type) {
	case [][][]float32:
		if len(vals) == 0 {
			return nil, errors.New("empty time axis")
		}
		return grid2D(vals[0]), nil
	case [][][]float64:
		if len(vals) == 0 {
			return nil, errors.New("empty time axis")
		}
		out := make([][]float64, len(vals[0]))
		for i, row := range vals[0] {
			out[i] = append([]float64(nil), row...)
		}
		return out, nil
	case [][]float32:
		return grid2D(vals), nil
	case [][]float64:
		out := make([][]float64, len(vals))
		for i, row := range vals {
			out[i] = append([]float64(nil), row...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected precipitation type %T", values)
	}
}

func grid2D(vals [][]float32) [][]float64 {
	out := make([][]float64, len(vals))
	for i, row := range vals {
		converted := make([]float64, len(row))
		for j, f := range row {
			converted[j] = float64(f)
		}
		out[i] = converted
	}
	return out
}
