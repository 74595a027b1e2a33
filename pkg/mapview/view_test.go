package mapview

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/1F47E/geo-media-map/pkg/surface/raster"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var container = surface.Container{Width: 800, Height: 600}

func doorCounty() models.MediaPoint {
	return models.MediaPoint{
		ID:        "1",
		Longitude: -87.07,
		Latitude:  45.26,
		Media:     &models.Media{Name: "Door County", MediaType: "image"},
	}
}

func twoPoints() []models.MediaPoint {
	return []models.MediaPoint{
		doorCounty(),
		{ID: "2", Longitude: -6.85, Latitude: 34.03, City: "Rabat"},
	}
}

func newStore(t *testing.T, raw string) *selection.AddressStore {
	t.Helper()
	s, err := selection.NewAddressStore(raw)
	require.NoError(t, err)
	return s
}

// openFake opens a view over a fake surface and fires load
func openFake(t *testing.T, store selection.Store, points []models.MediaPoint, opts ...Option) (*View, *fakeFactory) {
	t.Helper()
	ff := &fakeFactory{}
	v := New(ff.New, store, opts...)
	v.SetDataset(points)
	require.NoError(t, v.Open(container, models.Viewport{}))
	t.Cleanup(v.Close)
	ff.last().fireLoad()
	require.True(t, v.Ready())
	return v, ff
}

// highlighted counts features drawn in the highlight colour
func highlighted(paint surface.Paint, features []*geojson.Feature) int {
	n := 0
	for _, f := range features {
		if paint[surface.CircleColor].Eval(f.Properties) == HighlightColor {
			n++
		}
	}
	return n
}

func TestOpenIsIdempotent(t *testing.T) {
	ff := &fakeFactory{}
	v := New(ff.New, newStore(t, "/"))
	defer v.Close()

	require.NoError(t, v.Open(container, models.Viewport{}))
	s := ff.last()
	listeners := len(s.listeners)
	require.NoError(t, v.Open(container, models.Viewport{}))

	assert.Len(t, ff.created, 1)
	assert.Len(t, s.listeners, listeners)
	assert.Len(t, s.controls, 1)
	assert.IsType(t, &surface.NavigationControl{}, s.controls[0])
}

func TestOpenDefaultViewport(t *testing.T) {
	ff := &fakeFactory{}
	v := New(ff.New, newStore(t, "/"), WithAccessToken("pk.test"), WithPreserveDrawingBuffer(true))
	require.NoError(t, v.Open(container, models.Viewport{}))
	defer v.Close()

	opts := ff.last().opts
	require.NotNil(t, opts.Viewport.Bounds)
	assert.Equal(t, DefaultBounds, *opts.Viewport.Bounds)
	assert.Equal(t, DefaultZoom, opts.Viewport.Zoom)
	assert.Equal(t, "pk.test", opts.AccessToken)
	assert.True(t, opts.PreserveDrawingBuffer)
}

func TestOpenInitError(t *testing.T) {
	t.Run("factory error is wrapped", func(t *testing.T) {
		ff := &fakeFactory{err: errors.New("no gpu")}
		v := New(ff.New, newStore(t, "/"))
		err := v.Open(container, models.Viewport{})
		require.Error(t, err)
		assert.True(t, surface.IsInitError(err))
		assert.False(t, v.IsOpen())
		v.Close()
	})

	t.Run("missing credential", func(t *testing.T) {
		v := New(raster.NewFactory(raster.Config{}, nil), newStore(t, "/"))
		err := v.Open(container, models.Viewport{})
		require.Error(t, err)
		assert.True(t, surface.IsInitError(err))
		assert.True(t, errors.Is(err, surface.ErrMissingCredential))
		v.Close()
	})
}

func TestReconcileWaitsForReady(t *testing.T) {
	ff := &fakeFactory{}
	v := New(ff.New, newStore(t, "/"))
	defer v.Close()
	require.NoError(t, v.Open(container, models.Viewport{}))

	v.SetDataset(twoPoints())
	s := ff.last()
	assert.Empty(t, s.sources)
	assert.Empty(t, s.layers)

	s.fireLoad()
	assert.Len(t, s.features(), 2)
	assert.True(t, s.HasLayer(LayerID))
}

func TestOpenOnLoadedSurface(t *testing.T) {
	ff := &fakeFactory{loaded: true}
	v := New(ff.New, newStore(t, "/?mediaPointId=1"))
	defer v.Close()
	v.SetDataset(twoPoints())

	require.NoError(t, v.Open(container, models.Viewport{}))
	assert.True(t, v.Ready())
	assert.Len(t, ff.last().flights, 1)
}

func TestReconcileIdempotent(t *testing.T) {
	points := twoPoints()
	v, ff := openFake(t, newStore(t, "/"), points)
	s := ff.last()

	first := s.features()
	v.SetDataset(points)
	v.SetDataset(points)

	assert.Equal(t, 1, s.addSourceCalls)
	assert.Equal(t, 1, s.addLayerCalls)
	assert.Equal(t, 2, s.sources[SourceID].setDataCalls)
	assert.Equal(t, first, s.features())
	assert.Equal(t, []string{LayerID}, layerIDs(s))
}

func layerIDs(s *fakeSurface) []string {
	var ids []string
	for id := range s.layers {
		ids = append(ids, id)
	}
	return ids
}

func TestFeatureProperties(t *testing.T) {
	p := doorCounty()
	p.Attributes = map[string]any{"id": "shadowed", "source": "airtable"}
	fc := FeatureCollection([]models.MediaPoint{p})

	require.Len(t, fc.Features, 1)
	props := fc.Features[0].Properties
	assert.Equal(t, "1", props["id"])
	assert.Equal(t, "Door County", props["title"])
	assert.Equal(t, "airtable", props["source"])
	assert.Equal(t, -87.07, fc.Features[0].Point().Lon())
}

// Scenario A
func TestNoTokenShowsBaseStyle(t *testing.T) {
	v, ff := openFake(t, newStore(t, "/"), []models.MediaPoint{doorCounty()})
	s := ff.last()

	require.Len(t, s.features(), 1)
	paint := s.layers[LayerID].Paint
	assert.Equal(t, surface.Literal{Value: BaseColor}, paint[surface.CircleColor])
	assert.Equal(t, surface.Literal{Value: BaseRadius}, paint[surface.CircleRadius])
	assert.Equal(t, surface.Literal{Value: BaseStrokeColor}, paint[surface.CircleStrokeColor])
	assert.Empty(t, s.flights)

	_, ok := v.Selected()
	assert.False(t, ok)
}

// Scenario B
func TestTokenSelectsAndFlies(t *testing.T) {
	v, ff := openFake(t, newStore(t, "/?mediaPointId=1"), []models.MediaPoint{doorCounty()})
	s := ff.last()

	require.Len(t, s.flights, 1)
	assert.Equal(t, models.Location{Lon: -87.07, Lat: 45.26}, s.flights[0])

	paint := s.layers[LayerID].Paint
	assert.Equal(t, 1, highlighted(paint, s.features()))
	assert.Equal(t, HighlightRadius, paint[surface.CircleRadius].Eval(s.features()[0].Properties))

	p, ok := v.Selected()
	require.True(t, ok)
	assert.Equal(t, "Door County", p.Title())
}

// Scenario C
func TestAbsentTokenResolvesToNone(t *testing.T) {
	v, ff := openFake(t, newStore(t, "/?mediaPointId=999"), []models.MediaPoint{doorCounty()})
	s := ff.last()

	_, ok := v.Selected()
	assert.False(t, ok)
	assert.Empty(t, s.flights)
	assert.Equal(t, 0, highlighted(s.layers[LayerID].Paint, s.features()))
}

// Scenario D on the raster engine: a click on the rendered point selects it
func TestClickSelectsPoint(t *testing.T) {
	var engine *raster.Engine
	store := newStore(t, "/")
	v := New(raster.NewFactory(raster.Config{}, func(e *raster.Engine) { engine = e }), store,
		WithAccessToken("pk.test"))
	defer v.Close()

	point := doorCounty()
	v.SetDataset([]models.MediaPoint{point})
	require.NoError(t, v.Open(container, models.Viewport{Center: &models.Location{Lat: 44, Lon: -85}, Zoom: 5}))
	engine.Step(0)
	require.True(t, v.Ready())

	x, y := engine.ProjectLocation(point.Location())
	engine.PointerMove(image.Pt(int(x), int(y)))
	assert.Equal(t, surface.CursorPointer, engine.Cursor())

	engine.Click(image.Pt(int(x), int(y)))
	assert.Equal(t, selection.Token("1"), store.Read())
	assert.Equal(t, "/?mediaPointId=1", store.String())
	assert.Equal(t, 0, store.Len())

	engine.Settle()
	cam := engine.Camera()
	assert.InDelta(t, point.Latitude, cam.Center.Lat, 1e-6)
	assert.InDelta(t, point.Longitude, cam.Center.Lon, 1e-6)

	paint, ok := engine.Paint(LayerID)
	require.True(t, ok)
	src, _ := engine.Source(SourceID)
	assert.Equal(t, 1, highlighted(paint, src.Data().Features))

	engine.PointerMove(image.Pt(5, 590))
	assert.Equal(t, surface.CursorDefault, engine.Cursor())
}

// Scenario E
func TestEmptyDatasetDropsHighlight(t *testing.T) {
	v, ff := openFake(t, newStore(t, "/?mediaPointId=1"), []models.MediaPoint{doorCounty()})
	s := ff.last()
	require.Equal(t, 1, highlighted(s.layers[LayerID].Paint, s.features()))

	v.SetDataset(nil)

	assert.True(t, s.HasLayer(LayerID))
	assert.Empty(t, s.features())
	assert.Equal(t, surface.Literal{Value: BaseColor}, s.layers[LayerID].Paint[surface.CircleColor])
	_, ok := v.Selected()
	assert.False(t, ok)
	// dataset replacement does not move the camera
	assert.Len(t, s.flights, 1)
}

// Scenario B with the data arriving after the surface is ready
func TestLateDatasetFliesToSelection(t *testing.T) {
	v, ff := openFake(t, newStore(t, "/?mediaPointId=1"), nil)
	s := ff.last()
	assert.Empty(t, s.flights)

	v.SetDataset([]models.MediaPoint{doorCounty()})
	require.Len(t, s.flights, 1)
	assert.Equal(t, doorCounty().Location(), s.flights[0])
	assert.Equal(t, 1, highlighted(s.layers[LayerID].Paint, s.features()))

	// a refresh that still resolves the same point leaves the camera alone
	v.SetDataset(twoPoints())
	assert.Len(t, s.flights, 1)

	v.SetDataset(nil)
	v.SetDataset(twoPoints())
	assert.Len(t, s.flights, 2)
}

func TestSelectionNeverStale(t *testing.T) {
	store := newStore(t, "/?mediaPointId=2")
	v, ff := openFake(t, store, twoPoints())
	s := ff.last()

	v.SetDataset([]models.MediaPoint{doorCounty()})
	_, ok := v.Selected()
	assert.False(t, ok)
	assert.Equal(t, 0, highlighted(s.layers[LayerID].Paint, s.features()))

	v.SetDataset(twoPoints())
	p, ok := v.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", p.ID)
	assert.Equal(t, 1, highlighted(s.layers[LayerID].Paint, s.features()))
}

func TestSwitchSelectionSingleUpdate(t *testing.T) {
	store := newStore(t, "/?mediaPointId=1")
	_, ff := openFake(t, store, twoPoints())
	s := ff.last()
	flights := len(s.flights)
	colors := s.paintCalls[surface.CircleColor]
	radii := s.paintCalls[surface.CircleRadius]

	store.Write("2")

	assert.Len(t, s.flights, flights+1)
	assert.Equal(t, colors+1, s.paintCalls[surface.CircleColor])
	assert.Equal(t, radii+1, s.paintCalls[surface.CircleRadius])
	assert.Equal(t, 1, highlighted(s.layers[LayerID].Paint, s.features()))
	assert.Equal(t, "2", s.layers[LayerID].Paint[surface.CircleColor].(surface.CaseEquals).Equals)
}

func TestClearSelectionKeepsCamera(t *testing.T) {
	store := newStore(t, "/?mediaPointId=1")
	v, ff := openFake(t, store, twoPoints())
	s := ff.last()

	v.ClearSelection()
	assert.Equal(t, selection.None, store.Read())
	assert.Len(t, s.flights, 1)
	assert.Equal(t, 0, highlighted(s.layers[LayerID].Paint, s.features()))
}

func TestClickWithoutID(t *testing.T) {
	store := newStore(t, "/")
	_, ff := openFake(t, store, twoPoints())
	s := ff.last()

	s.emit(&surface.Event{Type: surface.EventClick}, LayerID)
	f := geojson.NewFeature(nil)
	s.emit(&surface.Event{Type: surface.EventClick, Features: []*geojson.Feature{f}}, LayerID)
	assert.Equal(t, selection.None, store.Read())

	f.Properties["id"] = 2
	s.emit(&surface.Event{Type: surface.EventClick, Features: []*geojson.Feature{f}}, LayerID)
	assert.Equal(t, selection.Token("2"), store.Read())
}

func TestPanStep(t *testing.T) {
	tests := []struct {
		zoom float64
		want float64
	}{
		{0, 4}, {6.9, 4}, {7, 1}, {9.99, 1}, {10, 0.1}, {11.5, 0.1}, {12, 0.01}, {22, 0.01},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PanStep(tt.zoom), "zoom %v", tt.zoom)
	}
}

func TestKeyboard(t *testing.T) {
	store := newStore(t, "/?mediaPointId=1")
	_, ff := openFake(t, store, twoPoints())
	s := ff.last()
	s.camera = surface.Camera{Center: models.Location{Lat: 10, Lon: 20}, Zoom: 8}

	press := func(key string) bool {
		ev := &surface.Event{Type: surface.EventKeyDown, Key: key}
		s.emit(ev, "")
		return ev.DefaultPrevented()
	}

	assert.True(t, press(KeyUp))
	assert.Equal(t, models.Location{Lat: 11, Lon: 20}, s.camera.Center)
	assert.True(t, press(KeyLeft))
	assert.Equal(t, models.Location{Lat: 11, Lon: 19}, s.camera.Center)
	assert.True(t, press(KeyRight))
	assert.True(t, press(KeyDown))
	assert.Equal(t, models.Location{Lat: 10, Lon: 20}, s.camera.Center)
	assert.Len(t, s.pans, 4)

	assert.True(t, press("+"))
	assert.True(t, press("="))
	assert.True(t, press("-"))
	assert.Equal(t, 2, s.zoomIns)
	assert.Equal(t, 1, s.zoomOuts)

	assert.False(t, press("a"))

	assert.True(t, press(KeyEscape))
	assert.Equal(t, selection.None, store.Read())
	// nothing left to close
	assert.False(t, press(KeyEscape))
}

func TestArrowPressesCompose(t *testing.T) {
	var engine *raster.Engine
	v := New(raster.NewFactory(raster.Config{}, func(e *raster.Engine) { engine = e }), newStore(t, "/"),
		WithAccessToken("pk.test"))
	defer v.Close()

	start := models.Location{Lat: 40, Lon: -90}
	require.NoError(t, v.Open(container, models.Viewport{Center: &start, Zoom: 8}))
	engine.Step(0)
	require.True(t, v.Ready())

	// the second press lands mid-animation
	assert.True(t, engine.KeyDown(KeyUp))
	engine.Step(time.Millisecond)
	assert.True(t, engine.Animating())
	assert.True(t, engine.KeyDown(KeyUp))
	assert.InDelta(t, start.Lat+2, engine.Target().Center.Lat, 1e-9)

	engine.Settle()
	assert.InDelta(t, start.Lat+2, engine.Camera().Center.Lat, 1e-6)
	assert.InDelta(t, start.Lon, engine.Camera().Center.Lon, 1e-6)
}

func TestCloseDetachesEverything(t *testing.T) {
	store := newStore(t, "/")
	v, ff := openFake(t, store, twoPoints())
	s := ff.last()
	click := s.handler(surface.EventClick)
	key := s.handler(surface.EventKeyDown)
	require.NotNil(t, click)
	require.Equal(t, 1, store.Subscribers())

	v.Close()
	v.Close()

	assert.True(t, s.removed)
	assert.Empty(t, s.listeners)
	assert.Equal(t, 0, store.Subscribers())
	assert.False(t, v.IsOpen())
	assert.False(t, v.Ready())

	// stale events queued before teardown
	f := geojson.NewFeature(nil)
	f.Properties["id"] = "1"
	click(&surface.Event{Type: surface.EventClick, Features: []*geojson.Feature{f}})
	key(&surface.Event{Type: surface.EventKeyDown, Key: KeyUp})
	store.Write("2")
	v.SetDataset(nil)

	assert.Equal(t, selection.Token("2"), store.Read())
	assert.Empty(t, s.flights)
	assert.Empty(t, s.pans)
}

func TestReopenIsIndependent(t *testing.T) {
	store := newStore(t, "/?mediaPointId=1")
	v, ff := openFake(t, store, twoPoints())
	first := ff.last()
	v.Close()

	require.NoError(t, v.Open(container, models.Viewport{}))
	second := ff.last()
	require.NotSame(t, first, second)
	assert.False(t, v.Ready())

	second.fireLoad()
	assert.Equal(t, 1, second.addSourceCalls)
	assert.Len(t, second.flights, 1)
	assert.Equal(t, 1, store.Subscribers())

	store.Write("2")
	assert.Len(t, first.flights, 1)
	assert.Len(t, second.flights, 2)
}

func TestDispatcherDefersAndDropsStale(t *testing.T) {
	var queue []func()
	drain := func() {
		q := queue
		queue = nil
		for _, f := range q {
			f()
		}
	}
	store := newStore(t, "/")
	v, ff := openFake(t, store, twoPoints(), WithDispatcher(func(f func()) { queue = append(queue, f) }))
	s := ff.last()

	store.Write("1")
	assert.Empty(t, s.flights)
	drain()
	assert.Len(t, s.flights, 1)

	store.Write("2")
	v.Close()
	drain()
	assert.Len(t, s.flights, 1)
}

func TestExport(t *testing.T) {
	now := time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "map-screenshot-2025-03-04.png", SnapshotFilename(now))

	t.Run("preserved buffer", func(t *testing.T) {
		var engine *raster.Engine
		v := New(raster.NewFactory(raster.Config{}, func(e *raster.Engine) { engine = e }), newStore(t, "/"),
			WithAccessToken("pk.test"), WithPreserveDrawingBuffer(true))
		defer v.Close()
		v.SetDataset(twoPoints())
		require.NoError(t, v.Open(container, models.Viewport{}))
		engine.Step(0)

		dir := t.TempDir()
		path, err := v.Export(dir, now)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "map-screenshot-2025-03-04.png"), path)

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		cfg, err := png.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 800, cfg.Width)
		assert.Equal(t, 600, cfg.Height)
	})

	t.Run("buffer not preserved", func(t *testing.T) {
		var engine *raster.Engine
		v := New(raster.NewFactory(raster.Config{}, func(e *raster.Engine) { engine = e }), newStore(t, "/"),
			WithAccessToken("pk.test"))
		defer v.Close()
		require.NoError(t, v.Open(container, models.Viewport{}))
		engine.Step(0)

		_, err := v.Export(t.TempDir(), now)
		assert.True(t, errors.Is(err, ErrExportFailed))
	})

	t.Run("closed", func(t *testing.T) {
		v := New((&fakeFactory{}).New, newStore(t, "/"))
		_, err := v.Export(t.TempDir(), now)
		assert.True(t, errors.Is(err, ErrExportFailed))
	})
}
