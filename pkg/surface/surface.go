// Package surface defines the contract between the map view core and a
// stateful rendering engine: camera, GeoJSON sources, circle layers, paint
// expressions and a layer-scoped event system.
package surface

import (
	"image"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/paulmach/orb/geojson"
)

// EventType names an engine event
type EventType string

const (
	EventLoad       EventType = "load"
	EventClick      EventType = "click"
	EventMouseMove  EventType = "mousemove"
	EventMouseEnter EventType = "mouseenter"
	EventMouseLeave EventType = "mouseleave"
	EventKeyDown    EventType = "keydown"
)

// Cursor is the pointer affordance shown over the canvas
type Cursor string

const (
	CursorDefault Cursor = ""
	CursorPointer Cursor = "pointer"
)

// ListenerID identifies a registered handler
type ListenerID uint64

// Event is delivered to handlers. Features is set for layer-scoped pointer
// events, topmost first. Key is set for keydown.
type Event struct {
	Type     EventType
	Point    image.Point
	LngLat   models.Location
	Features []*geojson.Feature
	Key      string

	prevented bool
}

// PreventDefault marks the event as handled by the map
func (e *Event) PreventDefault() {
	e.prevented = true
}

// DefaultPrevented reports whether a handler called PreventDefault
func (e *Event) DefaultPrevented() bool {
	return e.prevented
}

// Handler receives engine events
type Handler func(e *Event)

// Camera is the current view state
type Camera struct {
	Center  models.Location
	Zoom    float64
	Bearing float64
}

// Container is the drawing area the surface renders into, in CSS pixels
type Container struct {
	Width  int
	Height int
}

// Options configure a new surface instance
type Options struct {
	Container   Container
	Viewport    models.Viewport
	AccessToken string
	Style       string
	// PreserveDrawingBuffer keeps the last frame readable for Snapshot
	PreserveDrawingBuffer bool
}

// Factory creates a surface. Implementations return *InitError when the
// engine cannot acquire a rendering context.
type Factory func(opts Options) (Surface, error)

// GeoJSONSource is a mutable geometry source
type GeoJSONSource interface {
	SetData(data *geojson.FeatureCollection)
	Data() *geojson.FeatureCollection
}

// Surface is one rendering engine instance
type Surface interface {
	AddControl(c Control)

	// On registers a handler. A non-empty layerID scopes pointer events to
	// features of that layer.
	On(event EventType, layerID string, h Handler) ListenerID
	Once(event EventType, h Handler) ListenerID
	Off(id ListenerID)
	Loaded() bool

	Source(id string) (GeoJSONSource, bool)
	AddSource(id string, data *geojson.FeatureCollection) error
	HasLayer(id string) bool
	AddLayer(layer CircleLayer) error
	SetPaintProperty(layerID string, prop PaintProperty, value Expression) error

	FlyTo(center models.Location)
	PanTo(center models.Location)
	ZoomIn()
	ZoomOut()
	Camera() Camera
	// Target is where a running animation ends, Camera when idle
	Target() Camera
	SetCursor(c Cursor)
	Cursor() Cursor

	Snapshot() (image.Image, error)
	Remove()
}
