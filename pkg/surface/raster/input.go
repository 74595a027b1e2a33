package raster

import (
	"image"
	"math"

	"github.com/1F47E/geo-media-map/pkg/geo"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// hitSlop bounds the marker radius considered by the index query, in CSS px
const hitSlop = 64.0

// controlSize is the side of a navigation button, in CSS px
const controlSize = 29.0

type hitRef struct {
	layer   *layer
	feature *geojson.Feature
}

// toScreen maps zoom 0 world pixels to canvas pixels
func (e *Engine) toScreen(wx, wy float64) (float64, float64) {
	scale := math.Pow(2, e.camera.Zoom)
	cx, cy := geo.Project(e.camera.Center)
	dx := (wx - cx) * scale
	dy := (wy - cy) * scale
	sin, cos := math.Sincos(-e.camera.Bearing * math.Pi / 180)
	return float64(e.width)/2 + dx*cos - dy*sin, float64(e.height)/2 + dx*sin + dy*cos
}

// fromScreen maps canvas pixels to zoom 0 world pixels
func (e *Engine) fromScreen(sx, sy float64) (float64, float64) {
	scale := math.Pow(2, e.camera.Zoom)
	cx, cy := geo.Project(e.camera.Center)
	dx := sx - float64(e.width)/2
	dy := sy - float64(e.height)/2
	sin, cos := math.Sincos(e.camera.Bearing * math.Pi / 180)
	return cx + (dx*cos-dy*sin)/scale, cy + (dx*sin+dy*cos)/scale
}

// Unproject returns the location under a canvas pixel
func (e *Engine) Unproject(pt image.Point) models.Location {
	return geo.Unproject(e.fromScreen(float64(pt.X), float64(pt.Y)))
}

// ProjectLocation returns the canvas pixel of a location
func (e *Engine) ProjectLocation(loc models.Location) (float64, float64) {
	return e.toScreen(geo.Project(loc))
}

func (e *Engine) rebuildIndex() {
	if !e.indexDirty {
		return
	}
	var items []*geo.Item
	order := 0
	for _, l := range e.layers {
		src, ok := e.sources[l.spec.Source]
		if !ok || src.data == nil {
			continue
		}
		for _, f := range src.data.Features {
			p, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			x, y := geo.Project(models.Location{Lat: p.Lat(), Lon: p.Lon()})
			items = append(items, &geo.Item{X: x, Y: y, Order: order, Ref: hitRef{layer: l, feature: f}})
			order++
		}
	}
	e.index.Load(items)
	e.indexDirty = false
}

// hitRadius is the rendered radius of a feature including its stroke
func (e *Engine) hitRadius(l *layer, f *geojson.Feature) float64 {
	r := surface.Float(eval(l.spec.Paint, surface.CircleRadius, f), 5)
	s := surface.Float(eval(l.spec.Paint, surface.CircleStrokeWidth, f), 0)
	return (r + s) * e.cfg.Scale
}

func eval(p surface.Paint, prop surface.PaintProperty, f *geojson.Feature) any {
	expr, ok := p[prop]
	if !ok || expr == nil {
		return nil
	}
	return expr.Eval(f.Properties)
}

type hit struct {
	layer   string
	feature *geojson.Feature
}

// hits returns the features under pt, topmost first
func (e *Engine) hits(pt image.Point) []hit {
	if e.removed || len(e.layers) == 0 {
		return nil
	}
	e.rebuildIndex()

	sx, sy := float64(pt.X), float64(pt.Y)
	wx, wy := e.fromScreen(sx, sy)
	slop := hitSlop * e.cfg.Scale / math.Pow(2, e.camera.Zoom)

	var out []hit
	for _, item := range e.index.SearchBox(wx-slop, wy-slop, wx+slop, wy+slop) {
		ref, ok := item.Ref.(hitRef)
		if !ok {
			continue
		}
		fx, fy := e.toScreen(item.X, item.Y)
		if math.Hypot(fx-sx, fy-sy) <= e.hitRadius(ref.layer, ref.feature) {
			out = append(out, hit{layer: ref.layer.spec.ID, feature: ref.feature})
		}
	}
	return out
}

// QueryRenderedFeatures returns the features under pt, topmost first,
// optionally restricted to the given layers
func (e *Engine) QueryRenderedFeatures(pt image.Point, layerIDs ...string) []*geojson.Feature {
	want := make(map[string]bool, len(layerIDs))
	for _, id := range layerIDs {
		want[id] = true
	}
	var out []*geojson.Feature
	for _, h := range e.hits(pt) {
		if len(want) == 0 || want[h.layer] {
			out = append(out, h.feature)
		}
	}
	return out
}

func (e *Engine) pointerEvent(t surface.EventType, pt image.Point) *surface.Event {
	return &surface.Event{Type: t, Point: pt, LngLat: e.Unproject(pt)}
}

// scopedLayers returns the layer ids that have listeners for t
func (e *Engine) scopedLayers(t surface.EventType) map[string]bool {
	out := map[string]bool{}
	for _, l := range e.listeners {
		if l.event == t && l.layerID != "" {
			out[l.layerID] = true
		}
	}
	return out
}

func byLayer(hits []hit, layerID string) []*geojson.Feature {
	var out []*geojson.Feature
	for _, h := range hits {
		if h.layer == layerID {
			out = append(out, h.feature)
		}
	}
	return out
}

// Click delivers a primary click at a canvas pixel. Navigation controls take
// precedence over features.
func (e *Engine) Click(pt image.Point) {
	if e.removed || !e.loaded {
		return
	}
	if e.clickControl(pt) {
		return
	}

	hits := e.hits(pt)
	e.emit(e.pointerEvent(surface.EventClick, pt), "")
	for layerID := range e.scopedLayers(surface.EventClick) {
		features := byLayer(hits, layerID)
		if len(features) == 0 {
			continue
		}
		ev := e.pointerEvent(surface.EventClick, pt)
		ev.Features = features
		e.emit(ev, layerID)
	}
}

// PointerMove delivers pointer motion and derives enter/leave per layer
func (e *Engine) PointerMove(pt image.Point) {
	if e.removed || !e.loaded {
		return
	}
	hits := e.hits(pt)
	e.emit(e.pointerEvent(surface.EventMouseMove, pt), "")

	layers := e.scopedLayers(surface.EventMouseEnter)
	for id := range e.scopedLayers(surface.EventMouseLeave) {
		layers[id] = true
	}
	for layerID := range layers {
		features := byLayer(hits, layerID)
		over := len(features) > 0
		switch {
		case over && !e.hovered[layerID]:
			e.hovered[layerID] = true
			ev := e.pointerEvent(surface.EventMouseEnter, pt)
			ev.Features = features
			e.emit(ev, layerID)
		case !over && e.hovered[layerID]:
			e.hovered[layerID] = false
			e.emit(e.pointerEvent(surface.EventMouseLeave, pt), layerID)
		}
	}
}

// PointerLeave ends hover on every layer, as when the pointer exits the canvas
func (e *Engine) PointerLeave() {
	if e.removed {
		return
	}
	for layerID, over := range e.hovered {
		if !over {
			continue
		}
		e.hovered[layerID] = false
		e.emit(&surface.Event{Type: surface.EventMouseLeave}, layerID)
	}
}

// KeyDown delivers a key to keydown listeners when the canvas has focus.
// It reports whether a handler prevented the default action.
func (e *Engine) KeyDown(key string) bool {
	if e.removed || !e.focused {
		return false
	}
	ev := &surface.Event{Type: surface.EventKeyDown, Key: key}
	e.emit(ev, "")
	return ev.DefaultPrevented()
}

type controlButton struct {
	rect  image.Rectangle
	label string
	act   func()
}

// controlButtons lays out the navigation controls in canvas pixels
func (e *Engine) controlButtons() []controlButton {
	size := int(math.Ceil(controlSize * e.cfg.Scale))
	margin := int(math.Ceil(10 * e.cfg.Scale))
	var out []controlButton
	for _, c := range e.controls {
		nav, ok := c.(*surface.NavigationControl)
		if !ok {
			continue
		}
		x := e.width - margin - size
		if nav.Position() == "top-left" {
			x = margin
		}
		y := margin
		add := func(label string, act func()) {
			out = append(out, controlButton{rect: image.Rect(x, y, x+size, y+size), label: label, act: act})
			y += size
		}
		if nav.ShowZoom {
			add("+", e.ZoomIn)
			add("-", e.ZoomOut)
		}
		if nav.ShowCompass {
			add("N", e.ResetNorth)
		}
	}
	return out
}

func (e *Engine) clickControl(pt image.Point) bool {
	for _, b := range e.controlButtons() {
		if pt.In(b.rect) {
			b.act()
			return true
		}
	}
	return false
}
