// Package detail renders media points for terminals: the selection panel and
// the sortable dataset table.
package detail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#282A36")).
			Background(lipgloss.Color("#8BE9FD")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B")).
			Underline(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("#50FA7B"))
)

// None is shown for empty values
const None = "None"

// LocationString joins the non-empty parts with ", "
func LocationString(city, region, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, region, country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return None
	}
	return s
}

func joinOrNone(items []string) string {
	return orNone(strings.Join(items, ", "))
}

// Heading is the panel title line: name and release year
func Heading(p *models.MediaPoint) string {
	name, year := p.Title(), "unknown year"
	if p.Media != nil && p.Media.ReleaseYear != 0 {
		year = strconv.Itoa(p.Media.ReleaseYear)
	}
	return fmt.Sprintf("%s (%s)", name, year)
}

// PanelOptions tune Panel
type PanelOptions struct {
	Width   int
	Focused bool
}

// Panel renders the selected point, or an empty string when there is none
func Panel(p *models.MediaPoint, opts PanelOptions) string {
	if p == nil {
		return ""
	}
	m := p.Media
	if m == nil {
		m = &models.Media{}
	}
	width := opts.Width
	if width <= 0 {
		width = 44
	}
	inner := width - 4

	var b strings.Builder
	if m.MediaType != "" {
		b.WriteString(badgeStyle.Render(strings.ToUpper(m.MediaType[:1]) + m.MediaType[1:]))
		b.WriteString("\n")
	}
	b.WriteString(titleStyle.Width(inner).Render(Heading(p)))
	b.WriteString("\n")
	if m.Director != "" {
		b.WriteString(dimStyle.Render("Created by " + m.Director))
		b.WriteString("\n")
	}
	if m.VideoLink != "" {
		b.WriteString(linkStyle.Render("Watch Video ↗ " + m.VideoLink))
		b.WriteString("\n")
	}

	metric := func(label, value string) {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(label))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(inner).Render(value))
		b.WriteString("\n")
	}
	metric("Language", joinOrNone(m.Language))
	metric("Summary", orNone(m.Description))
	metric("Nearest Location", orNone(LocationString(p.City, p.Region, p.Country)))
	metric("Natural Feature", orNone(p.NaturalFeature))
	metric("Subjects", joinOrNone(m.Subjects))
	rights := orNone(m.Rights)
	if m.RightsStatementLink != "" {
		rights += " " + linkStyle.Render(m.RightsStatementLink)
	}
	metric("Media Rights", rights)

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("esc / c close"))

	style := boxStyle
	if opts.Focused {
		style = focusedBoxStyle
	}
	return style.Width(width - 2).Render(b.String())
}
