package mapview

import (
	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
)

// Selected resolves the store token against the current dataset. It is
// recomputed on every call.
func (v *View) Selected() (*models.MediaPoint, bool) {
	return selection.Resolve(v.points, v.store.Read())
}

// HighlightPaint returns the color and radius for a selection. A nil point
// yields the uniform base style.
func HighlightPaint(p *models.MediaPoint) (color, radius surface.Expression) {
	if p == nil {
		return surface.Literal{Value: BaseColor}, surface.Literal{Value: BaseRadius}
	}
	color = surface.CaseEquals{Property: selectionProperty, Equals: p.ID, Then: HighlightColor, Else: BaseColor}
	radius = surface.CaseEquals{Property: selectionProperty, Equals: p.ID, Then: HighlightRadius, Else: BaseRadius}
	return color, radius
}

// synchronize applies the selection derived from (token, dataset) to the
// layer paint, and moves the camera to it when recenter is set.
func (v *View) synchronize(recenter bool) {
	if !v.ready || v.surf == nil {
		return
	}
	token := v.store.Read()
	p, ok := selection.Resolve(v.points, token)

	state := "selected"
	if !ok {
		p = nil
		state = "none"
		if !token.IsNone() {
			metrics.SelectionUnresolvedTotal.Inc()
			v.log.Debug("selection_unresolved", "token", string(token), "points", len(v.points))
		}
	}
	if ok && recenter {
		v.surf.FlyTo(p.Location())
	}

	color, radius := HighlightPaint(p)
	if err := v.surf.SetPaintProperty(LayerID, surface.CircleColor, color); err != nil {
		v.log.Debug("selection_paint_failed", "error", err)
		return
	}
	if err := v.surf.SetPaintProperty(LayerID, surface.CircleRadius, radius); err != nil {
		v.log.Debug("selection_paint_failed", "error", err)
		return
	}
	metrics.SelectionSyncTotal.WithLabelValues(state).Inc()
}
