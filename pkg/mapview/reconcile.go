package mapview

import (
	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Base and highlight marker styles
const (
	BaseRadius        = 8.0
	BaseColor         = "#4264fb"
	BaseStrokeWidth   = 2.0
	BaseStrokeColor   = "#ffffff"
	HighlightRadius   = 12.0
	HighlightColor    = "#15cc09"
	selectionProperty = "id"
)

// BasePaint is the layer style with nothing selected
func BasePaint() surface.Paint {
	return surface.Paint{
		surface.CircleRadius:      surface.Literal{Value: BaseRadius},
		surface.CircleColor:       surface.Literal{Value: BaseColor},
		surface.CircleStrokeWidth: surface.Literal{Value: BaseStrokeWidth},
		surface.CircleStrokeColor: surface.Literal{Value: BaseStrokeColor},
	}
}

// FeatureCollection builds one point feature per media point, in order,
// with every attribute copied into the properties
func FeatureCollection(points []models.MediaPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Longitude, p.Latitude})
		f.Properties = geojson.Properties(p.Properties())
		fc.Append(f)
	}
	return fc
}

// SetDataset replaces the dataset. The slice is read, never modified. Once
// the surface is ready the layer and the highlight follow at once, and the
// camera flies to the selection when the new dataset resolves the token to
// a point the old one did not.
func (v *View) SetDataset(points []models.MediaPoint) {
	token := v.store.Read()
	_, resolvedBefore := selection.Resolve(v.points, token)
	v.points = points
	metrics.DatasetPoints.Set(float64(len(points)))
	if !v.ready {
		return
	}
	v.reconcile()
	_, resolved := selection.Resolve(points, token)
	v.synchronize(resolved && !resolvedBefore)
}

// Dataset returns the current snapshot
func (v *View) Dataset() []models.MediaPoint {
	return v.points
}

// reconcile upserts the source and creates the layer when missing. Before
// the surface is ready it does nothing.
func (v *View) reconcile() {
	if !v.ready || v.surf == nil {
		return
	}
	fc := FeatureCollection(v.points)

	action := "update"
	if src, ok := v.surf.Source(SourceID); ok {
		src.SetData(fc)
	} else {
		action = "create"
		if err := v.surf.AddSource(SourceID, fc); err != nil {
			v.log.Warn("reconcile_source_failed", "error", err)
			return
		}
	}
	if !v.surf.HasLayer(LayerID) {
		err := v.surf.AddLayer(surface.CircleLayer{ID: LayerID, Source: SourceID, Paint: BasePaint()})
		if err != nil {
			v.log.Warn("reconcile_layer_failed", "error", err)
			return
		}
	}

	metrics.ReconcileTotal.WithLabelValues(action).Inc()
	v.log.Debug("reconcile_ok", "action", action, "features", len(fc.Features))
}
