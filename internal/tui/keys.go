package tui

import (
	"github.com/1F47E/geo-media-map/pkg/mapview"
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Pan    key.Binding
	ZoomIn key.Binding
	Zoom   key.Binding
	Close  key.Binding
	Focus  key.Binding
	Clear  key.Binding
	Save   key.Binding
	Table  key.Binding
	Rows   key.Binding
	Pick   key.Binding
	Search key.Binding
	Export key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Pan: key.NewBinding(
			key.WithKeys("up", "down", "left", "right"),
			key.WithHelp("←↑↓→", "pan"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		Zoom: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "zoom out"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close details"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "focus map"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "screenshot"),
		),
		Table: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "table"),
		),
		Rows: key.NewBinding(
			key.WithKeys("j", "k"),
			key.WithHelp("j/k", "row"),
		),
		Pick: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select row"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search table"),
		),
		Export: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "export csv"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pan, k.ZoomIn, k.Zoom, k.Focus, k.Save, k.Table, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pan, k.ZoomIn, k.Zoom, k.Close},
		{k.Focus, k.Clear, k.Save, k.Table},
		{k.Rows, k.Pick, k.Search, k.Export, k.Quit},
	}
}

// surfaceKey maps a terminal key name to the keydown name a surface emits
func surfaceKey(s string) (string, bool) {
	switch s {
	case "up":
		return mapview.KeyUp, true
	case "down":
		return mapview.KeyDown, true
	case "left":
		return mapview.KeyLeft, true
	case "right":
		return mapview.KeyRight, true
	case "esc":
		return mapview.KeyEscape, true
	case "+", "=", "-":
		return s, true
	}
	return "", false
}
