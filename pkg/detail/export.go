package detail

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/1F47E/geo-media-map/pkg/models"
)

// Filter returns the points with any cell containing query, ignoring case.
// A blank query keeps every point.
func Filter(points []models.MediaPoint, query string) []models.MediaPoint {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return points
	}
	var out []models.MediaPoint
	for _, p := range points {
		if matches(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p models.MediaPoint, q string) bool {
	for c := range Headers {
		v := Cell(p, Column(c))
		if v == empty {
			continue
		}
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// csvCell is the export value of a column: no link marker, blanks for
// missing values
func csvCell(p models.MediaPoint, c Column) string {
	if c == ColumnTitle {
		return p.Title()
	}
	v := Cell(p, c)
	if v == empty {
		return ""
	}
	return v
}

// WriteCSV writes a header row and one record per point
func WriteCSV(w io.Writer, points []models.MediaPoint) error {
	cw := csv.NewWriter(w)
	header := append([]string{"ID"}, Headers...)
	header = append(header, "Latitude", "Longitude")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range points {
		rec := make([]string, 0, len(header))
		rec = append(rec, p.ID)
		for c := range Headers {
			rec = append(rec, csvCell(p, Column(c)))
		}
		rec = append(rec, fmt.Sprint(p.Latitude), fmt.Sprint(p.Longitude))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv record %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFilename names an export taken at t
func CSVFilename(t time.Time) string {
	return "media-locations-" + t.Format("2006-01-02") + ".csv"
}
