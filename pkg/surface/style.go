package surface

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// PaintProperty names a circle layer paint property
type PaintProperty string

const (
	CircleRadius      PaintProperty = "circle-radius"
	CircleColor       PaintProperty = "circle-color"
	CircleStrokeWidth PaintProperty = "circle-stroke-width"
	CircleStrokeColor PaintProperty = "circle-stroke-color"
)

// Expression is a paint value evaluated once per feature
type Expression interface {
	Eval(props geojson.Properties) any
	String() string
}

// Literal is a constant paint value
type Literal struct {
	Value any
}

func (l Literal) Eval(geojson.Properties) any { return l.Value }

func (l Literal) String() string { return fmt.Sprintf("%v", l.Value) }

// CaseEquals evaluates to Then when the feature property equals Equals,
// otherwise to Else.
type CaseEquals struct {
	Property string
	Equals   string
	Then     any
	Else     any
}

func (c CaseEquals) Eval(props geojson.Properties) any {
	if v, ok := props[c.Property]; ok {
		if s, ok := v.(string); ok && s == c.Equals {
			return c.Then
		}
	}
	return c.Else
}

func (c CaseEquals) String() string {
	return fmt.Sprintf(`["case", ["==", ["get", %q], %q], %v, %v]`, c.Property, c.Equals, c.Then, c.Else)
}

// Paint is the set of paint properties of a layer
type Paint map[PaintProperty]Expression

// Clone returns a shallow copy
func (p Paint) Clone() Paint {
	out := make(Paint, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// CircleLayer renders the points of a GeoJSON source as circles
type CircleLayer struct {
	ID     string
	Source string
	Paint  Paint
}

// Float reads a numeric paint value, falling back to def
func Float(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// Color reads a colour paint value, falling back to def
func Color(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
