package mapview

import (
	"fmt"

	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/paulmach/orb/geojson"
)

// Key names delivered in keydown events
const (
	KeyUp     = "ArrowUp"
	KeyDown   = "ArrowDown"
	KeyLeft   = "ArrowLeft"
	KeyRight  = "ArrowRight"
	KeyEscape = "Escape"
)

// PanStep returns the keyboard pan distance in degrees for a zoom level
func PanStep(zoom float64) float64 {
	switch {
	case zoom >= 12:
		return 0.01
	case zoom >= 10:
		return 0.1
	case zoom >= 7:
		return 1
	default:
		return 4
	}
}

func featureID(f *geojson.Feature) (string, bool) {
	if f == nil {
		return "", false
	}
	switch id := f.Properties[selectionProperty].(type) {
	case string:
		return id, id != ""
	case nil:
		return "", false
	default:
		return fmt.Sprint(id), true
	}
}

func (v *View) onClick(ev *surface.Event) {
	if len(ev.Features) == 0 {
		return
	}
	id, ok := featureID(ev.Features[0])
	if !ok {
		return
	}
	metrics.InteractionsTotal.WithLabelValues("click").Inc()
	v.log.Debug("point_clicked", "id", id)
	v.store.Write(selection.Token(id))
}

func (v *View) onMouseEnter(*surface.Event) {
	v.surf.SetCursor(surface.CursorPointer)
}

func (v *View) onMouseLeave(*surface.Event) {
	v.surf.SetCursor(surface.CursorDefault)
}

// onKeyDown pans from the camera target so presses during an animation add up
func (v *View) onKeyDown(ev *surface.Event) {
	cam := v.surf.Target()
	step := PanStep(cam.Zoom)
	center := cam.Center

	switch ev.Key {
	case KeyUp:
		v.surf.PanTo(models.Location{Lat: center.Lat + step, Lon: center.Lon})
	case KeyDown:
		v.surf.PanTo(models.Location{Lat: center.Lat - step, Lon: center.Lon})
	case KeyLeft:
		v.surf.PanTo(models.Location{Lat: center.Lat, Lon: center.Lon - step})
	case KeyRight:
		v.surf.PanTo(models.Location{Lat: center.Lat, Lon: center.Lon + step})
	case "+", "=":
		v.surf.ZoomIn()
	case "-":
		v.surf.ZoomOut()
	case KeyEscape:
		// only while the detail panel shows a selection
		if _, ok := v.Selected(); !ok {
			return
		}
		v.ClearSelection()
	default:
		return
	}
	ev.PreventDefault()
	metrics.InteractionsTotal.WithLabelValues("key").Inc()
}

// ClearSelection writes the empty token. It is the explicit close control.
func (v *View) ClearSelection() {
	if v.store.Read().IsNone() {
		return
	}
	v.store.Write(selection.None)
}
