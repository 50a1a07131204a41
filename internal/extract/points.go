package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Point is one extraction target. IDs are assigned sequentially in input
// order and become the first level of the output column header.
type Point struct {
	ID  int
	Lon float64
	Lat float64
}

// LoadPoints parses the coordinate CSV collaborator. The expected header is
// ID,Lon,Lat; the ID column is ignored and IDs are reassigned 1..n in input
// order, which keeps output columns stable even when the upload carries
// duplicate or missing IDs.
func LoadPoints(r io.Reader) ([]Point, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read coordinate header: %w", err)
	}
	lonCol, latCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "lon", "longitude":
			lonCol = i
		case "lat", "latitude":
			latCol = i
		}
	}
	if lonCol < 0 || latCol < 0 {
		return nil, fmt.Errorf("coordinate file must have Lon and Lat columns, got %v", header)
	}

	var points []Point
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read coordinate row: %w", err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[lonCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad longitude %q", line, rec[lonCol])
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[latCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad latitude %q", line, rec[latCol])
		}
		points = append(points, Point{ID: len(points) + 1, Lon: lon, Lat: lat})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("coordinate file has no data rows")
	}
	return points, nil
}
