package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPoints(t *testing.T) {
	csv := "ID,Lon,Lat\n7,106.8,-6.2\n7,106.2,-6.8\n"

	points, err := LoadPoints(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, points, 2)

	// IDs come from input order, not the ID column.
	assert.Equal(t, Point{ID: 1, Lon: 106.8, Lat: -6.2}, points[0])
	assert.Equal(t, Point{ID: 2, Lon: 106.2, Lat: -6.8}, points[1])
}

func TestLoadPoints_HeaderAliases(t *testing.T) {
	csv := "name, Longitude , Latitude\nsite-a,100.5,0.5\n"

	points, err := LoadPoints(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 100.5, points[0].Lon)
	assert.Equal(t, 0.5, points[0].Lat)
}

func TestLoadPoints_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing columns": "A,B\n1,2\n",
		"bad longitude":   "ID,Lon,Lat\n1,east,-6.2\n",
		"bad latitude":    "ID,Lon,Lat\n1,106.8,south\n",
		"no data rows":    "ID,Lon,Lat\n",
	}
	for name, csv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPoints(strings.NewReader(csv))
			assert.Error(t, err)
		})
	}
}
