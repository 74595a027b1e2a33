// Package tui hosts a map view in the terminal: the raster engine draws the
// canvas as braille, the detail panel follows the selection.
package tui

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/dataset"
	"github.com/1F47E/geo-media-map/pkg/detail"
	"github.com/1F47E/geo-media-map/pkg/mapview"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/1F47E/geo-media-map/pkg/surface/raster"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// canvas pixels per terminal cell
	cellWidth  = 8
	cellHeight = 16

	panelWidth    = 44
	minPanelWidth = 100
	frameInterval = 33 * time.Millisecond
	loadTimeout   = 30 * time.Second
	// rows taken by the header and the status line
	chromeRows = 2
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))
)

type stage int

const (
	stageLoading stage = iota
	stageReady
	stageFailed
)

type datasetMsg struct {
	points  []models.MediaPoint
	dropped int
	err     error
}

type frameMsg time.Time

// runMsg carries work dispatched by the view onto the update loop
type runMsg func()

// Options configure a Model
type Options struct {
	Store    selection.Store
	Provider dataset.Provider
	Viewport models.Viewport
	Engine   raster.Config

	AccessToken string
	Style       string
	ExportDir   string
	Logger      *slog.Logger
	// Now stamps exported snapshots
	Now func() time.Time
}

// Model is the bubbletea model for the interactive map
type Model struct {
	opts    Options
	log     *slog.Logger
	view    *mapview.View
	engine  *raster.Engine
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	// work dispatched by the view, woken through wake
	runMu sync.Mutex
	runs  []func()
	wake  chan struct{}

	stage   stage
	loadErr error
	initErr error
	points  int
	dropped int

	width, height int
	cols, rows    int

	showTable bool
	cursor    int
	status    string
	// search narrows the table, typing goes to it while filtering is set
	search    textinput.Model
	filtering bool
}

// New builds a model. The surface opens on the first window size message.
func New(opts Options) *Model {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	opts.Engine.Logger = log

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "Search media locations..."

	m := &Model{
		opts:    opts,
		log:     log,
		wake:    make(chan struct{}, 1),
		keys:    defaultKeys(),
		help:    help.New(),
		spinner: s,
		search:  search,
	}
	factory := raster.NewFactory(opts.Engine, func(e *raster.Engine) { m.engine = e })
	m.view = mapview.New(factory, opts.Store,
		mapview.WithLogger(log),
		mapview.WithDispatcher(m.dispatch),
		mapview.WithAccessToken(opts.AccessToken),
		mapview.WithStyle(opts.Style),
		mapview.WithPreserveDrawingBuffer(true),
	)
	return m
}

// dispatch queues f for the update loop. Store notifications may arrive on
// any goroutine, including the loop itself, so it never blocks.
func (m *Model) dispatch(f func()) {
	m.runMu.Lock()
	m.runs = append(m.runs, f)
	m.runMu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// takeRuns empties the queue into one closure
func (m *Model) takeRuns() runMsg {
	m.runMu.Lock()
	runs := m.runs
	m.runs = nil
	m.runMu.Unlock()
	return func() {
		for _, f := range runs {
			f()
		}
	}
}

func (m *Model) waitRun() tea.Msg {
	<-m.wake
	return m.takeRuns()
}

func (m *Model) loadDataset() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	points, err := m.opts.Provider.Load(ctx)
	if err != nil {
		return datasetMsg{err: err}
	}
	valid, dropped := dataset.Validate(points, m.log)
	return datasetMsg{points: valid, dropped: dropped}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// MapView returns the hosted map view
func (m *Model) MapView() *mapview.View {
	return m.view
}

// Engine returns the raster engine, nil before the surface opens
func (m *Model) Engine() *raster.Engine {
	return m.engine
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadDataset, m.waitRun)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.resize(msg.Width, msg.Height)

	case datasetMsg:
		if msg.err != nil {
			m.stage = stageFailed
			m.loadErr = msg.err
			m.log.Error("dataset_load_failed", "error", msg.err)
			return m, nil
		}
		m.stage = stageReady
		m.points, m.dropped = len(msg.points), msg.dropped
		m.view.SetDataset(msg.points)
		return m, nil

	case frameMsg:
		if !m.view.IsOpen() {
			return m, nil
		}
		m.engine.Step(frameInterval)
		return m, frameTick()

	case runMsg:
		msg()
		return m, m.waitRun

	case spinner.TickMsg:
		if m.stage != stageLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		m.mouse(msg)
		return m, nil

	case tea.KeyMsg:
		return m, m.key(msg)
	}
	return m, nil
}

// resize opens the surface on first use and resizes it afterwards
func (m *Model) resize(width, height int) tea.Cmd {
	m.width, m.height = width, height
	m.help.Width = width
	m.cols = width
	if width >= minPanelWidth {
		m.cols = width - panelWidth
	}
	m.rows = max(1, height-chromeRows)
	container := surface.Container{Width: m.cols * cellWidth, Height: m.rows * cellHeight}

	if m.view.IsOpen() {
		m.engine.Resize(container)
		return nil
	}
	if m.initErr != nil {
		return nil
	}
	if err := m.view.Open(container, m.opts.Viewport); err != nil {
		m.initErr = err
		m.showTable = true
		return nil
	}
	m.engine.Focus(true)
	return frameTick()
}

// cellPoint maps a terminal position to a canvas pixel
func (m *Model) cellPoint(x, y int) (image.Point, bool) {
	row := y - 1
	if m.engine == nil || x < 0 || x >= m.cols || row < 0 || row >= m.rows {
		return image.Point{}, false
	}
	return m.engine.CellToPoint(x, row, m.cols, m.rows), true
}

func (m *Model) mouse(msg tea.MouseMsg) {
	if !m.view.IsOpen() || m.showTable {
		return
	}
	pt, ok := m.cellPoint(msg.X, msg.Y)
	if !ok {
		m.engine.PointerLeave()
		return
	}
	switch {
	case msg.Action == tea.MouseActionMotion:
		m.engine.PointerMove(pt)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.engine.Focus(true)
		m.engine.Click(pt)
	}
}

func (m *Model) key(msg tea.KeyMsg) tea.Cmd {
	m.status = ""
	if m.filtering {
		return m.searchKey(msg)
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.view.Close()
		return tea.Quit

	case key.Matches(msg, m.keys.Table):
		if m.initErr == nil {
			m.showTable = !m.showTable
		}
		return nil

	case key.Matches(msg, m.keys.Clear):
		m.clear()
		return nil

	case key.Matches(msg, m.keys.Save):
		m.export()
		return nil
	}

	if m.showTable {
		return m.tableKey(msg)
	}

	if key.Matches(msg, m.keys.Focus) {
		if m.engine != nil && m.view.IsOpen() {
			m.engine.Focus(!m.engine.Focused())
		}
		return nil
	}

	name, ok := surfaceKey(msg.String())
	if !ok || !m.view.IsOpen() {
		return nil
	}
	if !m.engine.KeyDown(name) && name == mapview.KeyEscape && !m.engine.Focused() {
		// esc from the panel closes it like the close control
		m.clear()
	}
	return nil
}

// tableRows are the dataset rows matching the search
func (m *Model) tableRows() []models.MediaPoint {
	return detail.Filter(m.view.Dataset(), m.search.Value())
}

func (m *Model) searchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.search.Blur()
		return nil
	case tea.KeyEsc:
		m.filtering = false
		m.search.Blur()
		m.search.Reset()
		m.cursor = 0
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor = 0
	return cmd
}

func (m *Model) tableKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Search) {
		m.filtering = true
		return m.search.Focus()
	}
	if key.Matches(msg, m.keys.Export) {
		m.exportCSV()
		return nil
	}
	points := m.tableRows()
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(points)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if m.cursor < len(points) {
			metrics.InteractionsTotal.WithLabelValues("table").Inc()
			m.opts.Store.Write(selection.Token(points[m.cursor].ID))
		}
	case "esc":
		m.clear()
	}
	return nil
}

// exportCSV writes the rows the table currently shows
func (m *Model) exportCSV() {
	path := filepath.Join(m.opts.ExportDir, detail.CSVFilename(m.opts.Now()))
	f, err := os.Create(path)
	if err != nil {
		m.log.Error("csv_export_failed", "path", path, "error", err)
		m.status = errorStyle.Render("csv export failed")
		return
	}
	rows := m.tableRows()
	err = detail.WriteCSV(f, rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.log.Error("csv_export_failed", "path", path, "error", err)
		m.status = errorStyle.Render("csv export failed")
		return
	}
	m.log.Info("csv_exported", "path", path, "rows", len(rows))
	m.status = successStyle.Render(fmt.Sprintf("saved %d rows to %s", len(rows), path))
}

func (m *Model) clear() {
	if m.view.IsOpen() {
		m.view.ClearSelection()
		return
	}
	if !m.opts.Store.Read().IsNone() {
		m.opts.Store.Write(selection.None)
	}
}

func (m *Model) export() {
	if !m.view.IsOpen() {
		m.status = errorStyle.Render("no map to capture")
		return
	}
	path, err := m.view.Export(m.opts.ExportDir, m.opts.Now())
	if err != nil {
		m.status = errorStyle.Render("screenshot failed")
		return
	}
	m.status = successStyle.Render("saved " + path)
}

// selected resolves the selection against the current dataset, with or
// without an open surface
func (m *Model) selected() (*models.MediaPoint, bool) {
	if m.view.IsOpen() {
		return m.view.Selected()
	}
	return selection.Resolve(m.view.Dataset(), m.opts.Store.Read())
}

func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	var body string
	switch {
	case m.stage == stageFailed:
		body = errorStyle.Render(fmt.Sprintf("✗ dataset: %v", m.loadErr))
	case m.showTable:
		body = m.tableView()
	default:
		body = renderFrame(m.engine.RenderText(m.cols, m.rows))
	}

	if p, ok := m.selected(); ok && m.width >= minPanelWidth {
		focused := m.engine == nil || !m.engine.Focused()
		body = lipgloss.JoinHorizontal(lipgloss.Top, body,
			detail.Panel(p, detail.PanelOptions{Width: panelWidth, Focused: focused}))
	}
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) header() string {
	title := titleStyle.Render("🗺  Geo Media Map")
	switch m.stage {
	case stageLoading:
		return title + " " + m.spinner.View() + infoStyle.Render(" loading points...")
	case stageFailed:
		return title
	}
	info := subtitleStyle.Render(fmt.Sprintf(" %d points", m.points))
	if m.dropped > 0 {
		info += dimStyle.Render(fmt.Sprintf(" (%d skipped)", m.dropped))
	}
	if m.engine != nil && m.view.IsOpen() {
		cam := m.engine.Camera()
		info += dimStyle.Render(fmt.Sprintf("  %.3f, %.3f  z%.1f", cam.Center.Lat, cam.Center.Lon, cam.Zoom))
	}
	return title + info
}

func (m *Model) tableView() string {
	var b strings.Builder
	if m.initErr != nil {
		b.WriteString(errorStyle.Render("✗ Map unavailable: " + m.initErr.Error()))
		b.WriteString("\n")
	}
	all := m.view.Dataset()
	points := m.tableRows()
	if m.filtering || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	count := fmt.Sprintf("%d of %d rows", len(points), len(all))
	b.WriteString(dimStyle.Render(count))
	b.WriteString("\n")

	tbl := detail.Table{Points: points, Selected: m.opts.Store.Read(), Width: m.cols}
	if m.cursor < len(points) {
		b.WriteString(dimStyle.Render("▸ " + points[m.cursor].Title()))
		b.WriteString("\n")
	}
	b.WriteString(tbl.Render())
	return b.String()
}

func (m *Model) statusLine() string {
	if m.status != "" {
		return m.status
	}
	if m.engine != nil && m.view.IsOpen() {
		if m.engine.Cursor() == surface.CursorPointer {
			return infoStyle.Render("▸ click to open details")
		}
		if !m.engine.Focused() && !m.showTable {
			return dimStyle.Render("map not focused, press tab")
		}
	}
	return m.help.View(m.keys)
}

// renderFrame colours runs of equal cells
func renderFrame(f raster.TextFrame) string {
	var b strings.Builder
	for y, row := range f.Cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		color := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(run.String()))
			run.Reset()
		}
		for _, c := range row {
			if c.Color != color {
				flush()
				color = c.Color
			}
			run.WriteRune(c.Rune)
		}
		flush()
	}
	return b.String()
}
