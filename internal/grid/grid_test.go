package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLonToIndex(t *testing.T) {
	tests := []struct {
		name string
		lon  float64
		want int
	}{
		{name: "date line west", lon: -180, want: 0},
		{name: "prime meridian", lon: 0, want: 1800},
		{name: "date line east", lon: 180, want: 3600},
		{name: "jakarta", lon: 106.8, want: 2868},
		{name: "rounds to nearest cell", lon: -179.96, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LonToIndex(tt.lon))
		})
	}
}

func TestLatToIndex(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		want int
	}{
		{name: "south pole", lat: -90, want: -1},
		{name: "equator", lat: 0, want: 899},
		{name: "north pole uses offset", lat: 90, want: 1799},
		{name: "bandung", lat: -6.9, want: 830},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatToIndex(tt.lat))
		})
	}
}

func TestIndexMonotonic(t *testing.T) {
	prevLon, prevLat := LonToIndex(-180), LatToIndex(-90)
	for deg := -179.95; deg <= 90; deg += 0.05 {
		lonIdx := LonToIndex(deg)
		latIdx := LatToIndex(deg)
		assert.GreaterOrEqual(t, lonIdx, prevLon, "lon index decreased at %f", deg)
		assert.GreaterOrEqual(t, latIdx, prevLat, "lat index decreased at %f", deg)
		prevLon, prevLat = lonIdx, latIdx
	}
}

func TestRangesFor(t *testing.T) {
	b := BBox{MinLon: 106.0, MinLat: -7.0, MaxLon: 107.0, MaxLat: -6.0}
	lon, lat := RangesFor(b)

	assert.Equal(t, IndexRange{Min: 2860, Max: 2870}, lon)
	assert.Equal(t, IndexRange{Min: 829, Max: 839}, lat)
}
