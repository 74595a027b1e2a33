package detail

import (
	"sort"
	"strconv"
	"strings"

	"github.com/1F47E/geo-media-map/pkg/geo"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Column identifies a sortable table column
type Column int

const (
	ColumnTitle Column = iota
	ColumnType
	ColumnDirector
	ColumnYear
	ColumnLocation
	ColumnFeature
	ColumnSubjects
	ColumnLanguage
)

// Headers are the table column titles, indexed by Column
var Headers = []string{
	"Media Title",
	"Type",
	"Director",
	"Year",
	"Location",
	"Natural Feature",
	"Subjects",
	"Language",
}

const empty = "-"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	selectedStyle = cellStyle.
			Foreground(lipgloss.Color("#282A36")).
			Background(lipgloss.Color("#50FA7B"))
)

// Table lists media points, one row per point
type Table struct {
	Points []models.MediaPoint
	// Base, when set, appends a Link column with the selection address
	Base     string
	Selected selection.Token
	Width    int
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	return s
}

// Cell returns the display value of one column for p
func Cell(p models.MediaPoint, c Column) string {
	m := p.Media
	if m == nil {
		m = &models.Media{}
	}
	switch c {
	case ColumnTitle:
		title := p.Title()
		if m.VideoLink != "" {
			title += " ↗"
		}
		return title
	case ColumnType:
		return orEmpty(m.MediaType)
	case ColumnDirector:
		return orEmpty(m.Director)
	case ColumnYear:
		if m.ReleaseYear == 0 {
			return empty
		}
		return strconv.Itoa(m.ReleaseYear)
	case ColumnLocation:
		return orEmpty(LocationString(p.City, p.Region, p.Country))
	case ColumnFeature:
		return orEmpty(p.NaturalFeature)
	case ColumnSubjects:
		return orEmpty(strings.Join(m.Subjects, ", "))
	case ColumnLanguage:
		return orEmpty(strings.Join(m.Language, ", "))
	}
	return empty
}

// Rows returns the plain cell text of every row
func (t Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Points))
	for _, p := range t.Points {
		row := make([]string, 0, len(Headers)+1)
		for c := range Headers {
			row = append(row, Cell(p, Column(c)))
		}
		if t.Base != "" {
			row = append(row, selection.Link(t.Base, selection.Token(p.ID)))
		}
		rows = append(rows, row)
	}
	return rows
}

// Render draws the table with lipgloss
func (t Table) Render() string {
	headers := append([]string(nil), Headers...)
	if t.Base != "" {
		headers = append(headers, "Link")
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))).
		Headers(headers...).
		Rows(t.Rows()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(t.Points) && !t.Selected.IsNone() &&
				t.Points[row].ID == string(t.Selected) {
				return selectedStyle
			}
			return cellStyle
		})
	if t.Width > 0 {
		tbl = tbl.Width(t.Width)
	}
	return tbl.Render()
}

// SortBy returns a copy of points ordered by column c. Rows with an empty
// value sort last in either direction.
func SortBy(points []models.MediaPoint, c Column, desc bool) []models.MediaPoint {
	out := append([]models.MediaPoint(nil), points...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := Cell(out[i], c), Cell(out[j], c)
		if a == empty || b == empty {
			return a != empty && b == empty
		}
		if c == ColumnYear {
			ai, _ := strconv.Atoi(a)
			bi, _ := strconv.Atoi(b)
			if desc {
				return ai > bi
			}
			return ai < bi
		}
		a, b = strings.ToLower(a), strings.ToLower(b)
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}

// SortByDistance returns a copy of points ordered nearest first from loc
func SortByDistance(points []models.MediaPoint, loc models.Location) []models.MediaPoint {
	out := append([]models.MediaPoint(nil), points...)
	dist := make(map[string]float64, len(out))
	for _, p := range out {
		dist[p.ID] = geo.Distance(loc.Lat, loc.Lon, p.Latitude, p.Longitude)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return dist[out[i].ID] < dist[out[j].ID]
	})
	return out
}

// ParseColumn maps a header name or short alias to a Column
func ParseColumn(s string) (Column, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title", "name", "media title":
		return ColumnTitle, true
	case "type", "media_type":
		return ColumnType, true
	case "director":
		return ColumnDirector, true
	case "year", "release_year":
		return ColumnYear, true
	case "location":
		return ColumnLocation, true
	case "feature", "natural feature", "natural_feature":
		return ColumnFeature, true
	case "subjects":
		return ColumnSubjects, true
	case "language":
		return ColumnLanguage, true
	}
	return 0, false
}
