// Package mapview keeps a map surface consistent with a media point dataset
// and an externally stored selection token.
//
// A View is single-threaded: call its methods from one goroutine. Store
// notifications that may arrive on other goroutines are handed to the
// dispatcher configured with WithDispatcher, which must run them on the
// owning goroutine.
package mapview

import (
	"fmt"
	"log/slog"

	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
)

const (
	SourceID = "media-points"
	LayerID  = "media-points-layer"

	// DefaultZoom is used with DefaultBounds when no viewport is given
	DefaultZoom = 5.0
)

// DefaultBounds covers North America to Central Asia
var DefaultBounds = models.BoundingBox{
	BottomLeft: models.Location{Lon: -63.34638, Lat: 14.18116},
	TopRight:   models.Location{Lon: 69.37245, Lat: 63.28781},
}

// Option configures a View
type Option func(*View)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.log = l
		}
	}
}

// WithDispatcher sets how store notifications reach the owning goroutine.
// The default runs them inline.
func WithDispatcher(d func(func())) Option {
	return func(v *View) {
		if d != nil {
			v.dispatch = d
		}
	}
}

// WithAccessToken sets the credential passed to the surface factory
func WithAccessToken(token string) Option {
	return func(v *View) { v.accessToken = token }
}

// WithStyle sets the base map style name
func WithStyle(style string) Option {
	return func(v *View) { v.style = style }
}

// WithPreserveDrawingBuffer keeps frames readable so Export works
func WithPreserveDrawingBuffer(on bool) Option {
	return func(v *View) { v.preserveBuffer = on }
}

// View owns one surface per Open/Close scope
type View struct {
	factory  surface.Factory
	store    selection.Store
	log      *slog.Logger
	dispatch func(func())

	accessToken    string
	style          string
	preserveBuffer bool

	points []models.MediaPoint

	surf        surface.Surface
	ready       bool
	listeners   []surface.ListenerID
	unsubscribe func()
	// gen changes on every Open and Close so callbacks from an earlier
	// scope can tell they are stale
	gen uint64
}

// New returns a closed view
func New(factory surface.Factory, store selection.Store, opts ...Option) *View {
	v := &View{
		factory:  factory,
		store:    store,
		log:      slog.Default(),
		dispatch: func(f func()) { f() },
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Open creates the surface. Calling Open while open does nothing. An empty
// viewport falls back to DefaultBounds and DefaultZoom. Data and selection
// work waits for the surface load event.
func (v *View) Open(container surface.Container, vp models.Viewport) error {
	if v.surf != nil {
		return nil
	}
	if vp.Bounds == nil && vp.Center == nil {
		bounds := DefaultBounds
		vp = models.Viewport{Bounds: &bounds, Zoom: DefaultZoom}
	}

	surf, err := v.factory(surface.Options{
		Container:             container,
		Viewport:              vp,
		AccessToken:           v.accessToken,
		Style:                 v.style,
		PreserveDrawingBuffer: v.preserveBuffer,
	})
	if err != nil {
		metrics.SurfaceInitTotal.WithLabelValues("error").Inc()
		v.log.Warn("surface_init_failed", "error", err)
		if !surface.IsInitError(err) {
			err = &surface.InitError{Engine: "surface", Err: err}
		}
		return err
	}
	if surf == nil {
		return &surface.InitError{Engine: "surface", Err: fmt.Errorf("%w: factory returned no surface", surface.ErrNoRenderingContext)}
	}
	metrics.SurfaceInitTotal.WithLabelValues("ok").Inc()

	v.gen++
	v.surf = surf
	gen := v.gen

	surf.AddControl(surface.NewNavigationControl())
	v.listeners = []surface.ListenerID{
		surf.Once(surface.EventLoad, v.guard(gen, v.onLoad)),
		surf.On(surface.EventClick, LayerID, v.guard(gen, v.onClick)),
		surf.On(surface.EventMouseEnter, LayerID, v.guard(gen, v.onMouseEnter)),
		surf.On(surface.EventMouseLeave, LayerID, v.guard(gen, v.onMouseLeave)),
		surf.On(surface.EventKeyDown, "", v.guard(gen, v.onKeyDown)),
	}
	v.unsubscribe = v.store.Subscribe(func(selection.Token) {
		v.dispatch(func() {
			if v.gen != gen || v.surf == nil {
				return
			}
			v.onTokenChange()
		})
	})

	v.log.Debug("surface_opened", "width", container.Width, "height", container.Height)
	if surf.Loaded() {
		v.onLoad(nil)
	}
	return nil
}

// guard drops events delivered after the scope that registered h ended
func (v *View) guard(gen uint64, h surface.Handler) surface.Handler {
	return func(ev *surface.Event) {
		if v.gen != gen || v.surf == nil {
			return
		}
		h(ev)
	}
}

// Close detaches every listener, stops following the store and releases the
// surface. It is safe to call at any time, any number of times.
func (v *View) Close() {
	if v.surf == nil {
		return
	}
	surf := v.surf
	for _, id := range v.listeners {
		surf.Off(id)
	}
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
	v.listeners = nil
	v.unsubscribe = nil
	v.surf = nil
	v.ready = false
	v.gen++
	surf.Remove()
	v.log.Debug("surface_closed")
}

func (v *View) onLoad(*surface.Event) {
	if v.ready {
		return
	}
	v.ready = true
	v.log.Info("surface_ready", "points", len(v.points))
	v.reconcile()
	v.synchronize(true)
}

func (v *View) onTokenChange() {
	v.synchronize(true)
}

// IsOpen reports whether a surface is held
func (v *View) IsOpen() bool {
	return v.surf != nil
}

// Ready reports whether the surface has loaded
func (v *View) Ready() bool {
	return v.ready
}

// Surface returns the open surface, nil when closed
func (v *View) Surface() surface.Surface {
	return v.surf
}

// Store returns the selection store
func (v *View) Store() selection.Store {
	return v.store
}
