package mapview

import (
	"image"
	"sort"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/paulmach/orb/geojson"
)

type fakeListener struct {
	event   surface.EventType
	layerID string
	once    bool
	h       surface.Handler
}

type fakeSource struct {
	data         *geojson.FeatureCollection
	setDataCalls int
}

func (s *fakeSource) SetData(fc *geojson.FeatureCollection) {
	s.data = fc
	s.setDataCalls++
}

func (s *fakeSource) Data() *geojson.FeatureCollection { return s.data }

// fakeSurface records every call the view makes
type fakeSurface struct {
	opts     surface.Options
	loaded   bool
	removed  bool
	controls []surface.Control

	listeners map[surface.ListenerID]*fakeListener
	nextID    surface.ListenerID

	sources        map[string]*fakeSource
	layers         map[string]surface.CircleLayer
	addSourceCalls int
	addLayerCalls  int
	paintCalls     map[surface.PaintProperty]int

	camera   surface.Camera
	flights  []models.Location
	pans     []models.Location
	zoomIns  int
	zoomOuts int
	cursor   surface.Cursor
}

func newFakeSurface(opts surface.Options) *fakeSurface {
	return &fakeSurface{
		opts:       opts,
		listeners:  make(map[surface.ListenerID]*fakeListener),
		sources:    make(map[string]*fakeSource),
		layers:     make(map[string]surface.CircleLayer),
		paintCalls: make(map[surface.PaintProperty]int),
		camera:     surface.Camera{Zoom: opts.Viewport.Zoom},
	}
}

func (f *fakeSurface) AddControl(c surface.Control) { f.controls = append(f.controls, c) }

func (f *fakeSurface) On(event surface.EventType, layerID string, h surface.Handler) surface.ListenerID {
	f.nextID++
	f.listeners[f.nextID] = &fakeListener{event: event, layerID: layerID, h: h}
	return f.nextID
}

func (f *fakeSurface) Once(event surface.EventType, h surface.Handler) surface.ListenerID {
	f.nextID++
	f.listeners[f.nextID] = &fakeListener{event: event, once: true, h: h}
	return f.nextID
}

func (f *fakeSurface) Off(id surface.ListenerID) { delete(f.listeners, id) }

func (f *fakeSurface) Loaded() bool { return f.loaded }

func (f *fakeSurface) Source(id string) (surface.GeoJSONSource, bool) {
	s, ok := f.sources[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (f *fakeSurface) AddSource(id string, data *geojson.FeatureCollection) error {
	if _, ok := f.sources[id]; ok {
		return surface.ErrSourceExists
	}
	f.addSourceCalls++
	f.sources[id] = &fakeSource{data: data}
	return nil
}

func (f *fakeSurface) HasLayer(id string) bool {
	_, ok := f.layers[id]
	return ok
}

func (f *fakeSurface) AddLayer(l surface.CircleLayer) error {
	if f.HasLayer(l.ID) {
		return surface.ErrLayerExists
	}
	if _, ok := f.sources[l.Source]; !ok {
		return surface.ErrUnknownSource
	}
	f.addLayerCalls++
	l.Paint = l.Paint.Clone()
	f.layers[l.ID] = l
	return nil
}

func (f *fakeSurface) SetPaintProperty(layerID string, prop surface.PaintProperty, value surface.Expression) error {
	l, ok := f.layers[layerID]
	if !ok {
		return surface.ErrUnknownLayer
	}
	f.paintCalls[prop]++
	l.Paint[prop] = value
	return nil
}

func (f *fakeSurface) FlyTo(c models.Location) {
	f.flights = append(f.flights, c)
	f.camera.Center = c
}

func (f *fakeSurface) PanTo(c models.Location) {
	f.pans = append(f.pans, c)
	f.camera.Center = c
}

func (f *fakeSurface) ZoomIn() {
	f.zoomIns++
	f.camera.Zoom++
}

func (f *fakeSurface) ZoomOut() {
	f.zoomOuts++
	f.camera.Zoom--
}

func (f *fakeSurface) Camera() surface.Camera { return f.camera }

func (f *fakeSurface) Target() surface.Camera { return f.camera }

func (f *fakeSurface) SetCursor(c surface.Cursor) { f.cursor = c }

func (f *fakeSurface) Cursor() surface.Cursor { return f.cursor }

func (f *fakeSurface) Snapshot() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (f *fakeSurface) Remove() {
	f.removed = true
	f.listeners = make(map[surface.ListenerID]*fakeListener)
	f.sources = make(map[string]*fakeSource)
	f.layers = make(map[string]surface.CircleLayer)
}

// emit delivers ev in registration order, like an engine would
func (f *fakeSurface) emit(ev *surface.Event, layerID string) {
	ids := make([]surface.ListenerID, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		l, ok := f.listeners[id]
		if !ok || l.event != ev.Type || l.layerID != layerID {
			continue
		}
		if l.once {
			delete(f.listeners, id)
		}
		l.h(ev)
	}
}

func (f *fakeSurface) fireLoad() {
	f.loaded = true
	f.emit(&surface.Event{Type: surface.EventLoad}, "")
}

// handler returns a registered handler so tests can call it after teardown
func (f *fakeSurface) handler(event surface.EventType) surface.Handler {
	for _, l := range f.listeners {
		if l.event == event {
			return l.h
		}
	}
	return nil
}

func (f *fakeSurface) features() []*geojson.Feature {
	s, ok := f.sources[SourceID]
	if !ok || s.data == nil {
		return nil
	}
	return s.data.Features
}

type fakeFactory struct {
	created []*fakeSurface
	err     error
	// loaded makes new surfaces report ready at once
	loaded bool
}

func (ff *fakeFactory) New(opts surface.Options) (surface.Surface, error) {
	if ff.err != nil {
		return nil, ff.err
	}
	s := newFakeSurface(opts)
	s.loaded = ff.loaded
	ff.created = append(ff.created, s)
	return s, nil
}

func (ff *fakeFactory) last() *fakeSurface {
	if len(ff.created) == 0 {
		return nil
	}
	return ff.created[len(ff.created)-1]
}
