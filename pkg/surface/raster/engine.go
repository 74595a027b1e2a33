// Package raster implements surface.Surface in pure Go. It keeps the camera,
// sources, layers and listeners in memory, advances camera animations on
// Step, and rasterises frames to RGBA images or braille text grids.
package raster

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/1F47E/geo-media-map/pkg/geo"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/paulmach/orb/geojson"
)

// EngineName is reported in init errors
const EngineName = "raster"

const (
	minZoom = 0.0
	maxZoom = 22.0

	flyDuration  = 1200 * time.Millisecond
	panDuration  = 300 * time.Millisecond
	zoomDuration = 250 * time.Millisecond
)

// Config tunes an engine beyond the engine-neutral surface options
type Config struct {
	// Scale converts CSS pixels (marker radius, control size) to canvas pixels
	Scale float64
	// PixelRatio multiplies the canvas size of rendered images
	PixelRatio int
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Scale <= 0 {
		c.Scale = 1
	}
	if c.PixelRatio <= 0 {
		c.PixelRatio = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type listener struct {
	event   surface.EventType
	layerID string
	once    bool
	h       surface.Handler
}

type animation struct {
	from     surface.Camera
	to       surface.Camera
	elapsed  time.Duration
	duration time.Duration
}

// Engine is one raster map instance
type Engine struct {
	opts   surface.Options
	cfg    Config
	width  int
	height int

	camera surface.Camera
	anim   *animation

	sources map[string]*source
	layers  []*layer

	controls  []surface.Control
	listeners map[surface.ListenerID]*listener
	order     []surface.ListenerID
	nextID    surface.ListenerID

	loadPending bool
	loaded      bool
	removed     bool
	focused     bool
	cursor      surface.Cursor
	hovered     map[string]bool

	index      *geo.Index
	indexDirty bool
}

// NewFactory returns a surface.Factory creating raster engines with cfg.
// created, when non-nil, receives every engine the factory builds.
func NewFactory(cfg Config, created func(*Engine)) surface.Factory {
	return func(opts surface.Options) (surface.Surface, error) {
		e, err := New(opts, cfg)
		if err != nil {
			return nil, err
		}
		if created != nil {
			created(e)
		}
		return e, nil
	}
}

// New creates an engine. The load event is queued and delivered by the first
// Step call.
func New(opts surface.Options, cfg Config) (*Engine, error) {
	if strings.TrimSpace(opts.AccessToken) == "" {
		return nil, &surface.InitError{Engine: EngineName, Err: surface.ErrMissingCredential}
	}
	if opts.Container.Width <= 0 || opts.Container.Height <= 0 {
		return nil, &surface.InitError{
			Engine: EngineName,
			Err:    fmt.Errorf("%w: container is %dx%d", surface.ErrNoRenderingContext, opts.Container.Width, opts.Container.Height),
		}
	}

	cfg = cfg.withDefaults()
	e := &Engine{
		opts:        opts,
		cfg:         cfg,
		width:       opts.Container.Width,
		height:      opts.Container.Height,
		sources:     make(map[string]*source),
		listeners:   make(map[surface.ListenerID]*listener),
		hovered:     make(map[string]bool),
		index:       geo.NewIndex(),
		loadPending: true,
		focused:     true,
	}
	e.camera = e.initialCamera(opts.Viewport)

	cfg.Logger.Debug("raster_engine_created",
		"width", e.width, "height", e.height,
		"zoom", e.camera.Zoom, "preserve_buffer", opts.PreserveDrawingBuffer)
	return e, nil
}

func (e *Engine) initialCamera(vp models.Viewport) surface.Camera {
	if vp.Bounds != nil {
		return e.fitBounds(*vp.Bounds)
	}
	cam := surface.Camera{Zoom: clampZoom(vp.Zoom)}
	if vp.Center != nil {
		cam.Center = *vp.Center
	}
	return cam
}

func (e *Engine) fitBounds(b models.BoundingBox) surface.Camera {
	x1, y1 := geo.Project(b.BottomLeft)
	x2, y2 := geo.Project(b.TopRight)
	dx := math.Abs(x2 - x1)
	dy := math.Abs(y2 - y1)

	zoom := maxZoom
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(float64(e.width)/dx))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(float64(e.height)/dy))
	}
	return surface.Camera{
		Center: geo.Unproject((x1+x2)/2, (y1+y2)/2),
		Zoom:   clampZoom(zoom),
	}
}

func clampZoom(z float64) float64 {
	return math.Max(minZoom, math.Min(maxZoom, z))
}

// Resize changes the canvas size
func (e *Engine) Resize(c surface.Container) {
	if e.removed || c.Width <= 0 || c.Height <= 0 {
		return
	}
	e.width, e.height = c.Width, c.Height
}

// Size returns the canvas size
func (e *Engine) Size() surface.Container {
	return surface.Container{Width: e.width, Height: e.height}
}

// Step advances animations by dt and delivers queued events
func (e *Engine) Step(dt time.Duration) {
	if e.removed {
		return
	}
	if e.loadPending {
		e.loadPending = false
		e.loaded = true
		e.emit(&surface.Event{Type: surface.EventLoad}, "")
		if e.removed {
			return
		}
	}
	if a := e.anim; a != nil {
		a.elapsed += dt
		t := 1.0
		if a.duration > 0 {
			t = math.Min(1, float64(a.elapsed)/float64(a.duration))
		}
		e.camera = interpolate(a.from, a.to, t*(2-t))
		if t >= 1 {
			e.anim = nil
		}
	}
}

// Settle finishes any running animation and delivers queued events
func (e *Engine) Settle() {
	if e.anim != nil {
		e.Step(e.anim.duration)
		return
	}
	e.Step(0)
}

// Animating reports whether a camera animation is in flight
func (e *Engine) Animating() bool {
	return e.anim != nil
}

func interpolate(from, to surface.Camera, t float64) surface.Camera {
	fx, fy := geo.Project(from.Center)
	tx, ty := geo.Project(to.Center)
	return surface.Camera{
		Center:  geo.Unproject(fx+(tx-fx)*t, fy+(ty-fy)*t),
		Zoom:    from.Zoom + (to.Zoom-from.Zoom)*t,
		Bearing: from.Bearing + (to.Bearing-from.Bearing)*t,
	}
}

func (e *Engine) animate(to surface.Camera, d time.Duration) {
	if e.removed {
		return
	}
	to.Zoom = clampZoom(to.Zoom)
	to.Center.Lat = geo.ClampLat(to.Center.Lat)
	to.Center.Lon = geo.WrapLon(to.Center.Lon)
	e.anim = &animation{from: e.camera, to: to, duration: d}
}

// Target is where the camera is heading, so chained moves compose
func (e *Engine) Target() surface.Camera {
	if e.anim != nil {
		return e.anim.to
	}
	return e.camera
}

func (e *Engine) FlyTo(center models.Location) {
	to := e.Target()
	to.Center = center
	e.animate(to, flyDuration)
}

func (e *Engine) PanTo(center models.Location) {
	to := e.Target()
	to.Center = center
	e.animate(to, panDuration)
}

func (e *Engine) ZoomIn() {
	to := e.Target()
	to.Zoom++
	e.animate(to, zoomDuration)
}

func (e *Engine) ZoomOut() {
	to := e.Target()
	to.Zoom--
	e.animate(to, zoomDuration)
}

// ResetNorth rotates the camera back to bearing 0
func (e *Engine) ResetNorth() {
	to := e.Target()
	to.Bearing = 0
	e.animate(to, zoomDuration)
}

// RotateTo sets the bearing in degrees
func (e *Engine) RotateTo(bearing float64) {
	to := e.Target()
	to.Bearing = math.Mod(bearing, 360)
	e.animate(to, zoomDuration)
}

func (e *Engine) Camera() surface.Camera {
	return e.camera
}

func (e *Engine) SetCursor(c surface.Cursor) {
	e.cursor = c
}

func (e *Engine) Cursor() surface.Cursor {
	return e.cursor
}

func (e *Engine) Loaded() bool {
	return e.loaded
}

// Removed reports whether Remove was called
func (e *Engine) Removed() bool {
	return e.removed
}

func (e *Engine) AddControl(c surface.Control) {
	if e.removed || c == nil {
		return
	}
	e.controls = append(e.controls, c)
}

func (e *Engine) On(event surface.EventType, layerID string, h surface.Handler) surface.ListenerID {
	return e.register(&listener{event: event, layerID: layerID, h: h})
}

func (e *Engine) Once(event surface.EventType, h surface.Handler) surface.ListenerID {
	return e.register(&listener{event: event, once: true, h: h})
}

func (e *Engine) register(l *listener) surface.ListenerID {
	if e.removed || l.h == nil {
		return 0
	}
	e.nextID++
	e.listeners[e.nextID] = l
	e.order = append(e.order, e.nextID)
	return e.nextID
}

func (e *Engine) Off(id surface.ListenerID) {
	if _, ok := e.listeners[id]; !ok {
		return
	}
	delete(e.listeners, id)
	for i, lid := range e.order {
		if lid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// ListenerCount returns the number of registered handlers
func (e *Engine) ListenerCount() int {
	return len(e.listeners)
}

// emit delivers ev to listeners of its type. A non-empty layerID restricts
// delivery to listeners scoped to that layer; an empty one to unscoped ones.
func (e *Engine) emit(ev *surface.Event, layerID string) {
	ids := append([]surface.ListenerID(nil), e.order...)
	for _, id := range ids {
		if e.removed {
			return
		}
		l, ok := e.listeners[id]
		if !ok || l.event != ev.Type || l.layerID != layerID {
			continue
		}
		if l.once {
			e.Off(id)
		}
		l.h(ev)
	}
}

func (e *Engine) Source(id string) (surface.GeoJSONSource, bool) {
	s, ok := e.sources[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (e *Engine) AddSource(id string, data *geojson.FeatureCollection) error {
	if e.removed {
		return surface.ErrRemoved
	}
	if _, ok := e.sources[id]; ok {
		return fmt.Errorf("%w: %s", surface.ErrSourceExists, id)
	}
	s := &source{id: id, engine: e}
	s.SetData(data)
	e.sources[id] = s
	return nil
}

func (e *Engine) HasLayer(id string) bool {
	return e.layer(id) != nil
}

func (e *Engine) layer(id string) *layer {
	for _, l := range e.layers {
		if l.spec.ID == id {
			return l
		}
	}
	return nil
}

func (e *Engine) AddLayer(spec surface.CircleLayer) error {
	if e.removed {
		return surface.ErrRemoved
	}
	if e.HasLayer(spec.ID) {
		return fmt.Errorf("%w: %s", surface.ErrLayerExists, spec.ID)
	}
	if _, ok := e.sources[spec.Source]; !ok {
		return fmt.Errorf("%w: %s", surface.ErrUnknownSource, spec.Source)
	}
	spec.Paint = defaultPaint().merge(spec.Paint)
	e.layers = append(e.layers, &layer{spec: spec})
	e.indexDirty = true
	return nil
}

// Layers returns the layer ids in draw order
func (e *Engine) Layers() []string {
	ids := make([]string, 0, len(e.layers))
	for _, l := range e.layers {
		ids = append(ids, l.spec.ID)
	}
	return ids
}

// Paint returns a copy of the layer paint
func (e *Engine) Paint(layerID string) (surface.Paint, bool) {
	l := e.layer(layerID)
	if l == nil {
		return nil, false
	}
	return l.spec.Paint.Clone(), true
}

func (e *Engine) SetPaintProperty(layerID string, prop surface.PaintProperty, value surface.Expression) error {
	if e.removed {
		return surface.ErrRemoved
	}
	l := e.layer(layerID)
	if l == nil {
		return fmt.Errorf("%w: %s", surface.ErrUnknownLayer, layerID)
	}
	l.spec.Paint[prop] = value
	return nil
}

// Focus gives or takes keyboard focus
func (e *Engine) Focus(on bool) {
	e.focused = on
}

// Focused reports whether keydown events are delivered
func (e *Engine) Focused() bool {
	return e.focused
}

// Remove releases the instance: listeners, sources, layers and any running
// animation are dropped and later calls are no-ops.
func (e *Engine) Remove() {
	if e.removed {
		return
	}
	e.removed = true
	e.anim = nil
	e.loadPending = false
	e.listeners = make(map[surface.ListenerID]*listener)
	e.order = nil
	e.sources = make(map[string]*source)
	e.layers = nil
	e.controls = nil
	e.hovered = make(map[string]bool)
	e.index.Clear()
	e.cfg.Logger.Debug("raster_engine_removed")
}

// source is a GeoJSON source owned by an engine
type source struct {
	id     string
	data   *geojson.FeatureCollection
	engine *Engine
}

func (s *source) SetData(data *geojson.FeatureCollection) {
	if data == nil {
		data = geojson.NewFeatureCollection()
	}
	s.data = data
	s.engine.indexDirty = true
}

func (s *source) Data() *geojson.FeatureCollection {
	return s.data
}

type layer struct {
	spec surface.CircleLayer
}

type paint surface.Paint

func defaultPaint() paint {
	return paint{
		surface.CircleRadius:      surface.Literal{Value: 5.0},
		surface.CircleColor:       surface.Literal{Value: "#000000"},
		surface.CircleStrokeWidth: surface.Literal{Value: 0.0},
		surface.CircleStrokeColor: surface.Literal{Value: "#000000"},
	}
}

func (p paint) merge(over surface.Paint) surface.Paint {
	out := surface.Paint(p)
	for k, v := range over {
		out[k] = v
	}
	return out
}
