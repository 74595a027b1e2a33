package surface

// Control is an on-canvas affordance attached to a surface
type Control interface {
	Position() string
}

// NavigationControl offers zoom in, zoom out and reset-north buttons
type NavigationControl struct {
	ShowZoom    bool
	ShowCompass bool
	Corner      string
}

// NewNavigationControl returns the standard zoom + compass control in the
// top-right corner
func NewNavigationControl() *NavigationControl {
	return &NavigationControl{ShowZoom: true, ShowCompass: true, Corner: "top-right"}
}

func (n *NavigationControl) Position() string {
	if n.Corner == "" {
		return "top-right"
	}
	return n.Corner
}
