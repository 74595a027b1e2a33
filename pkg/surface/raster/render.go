package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const maxGridLines = 256

var (
	backgroundColor = color.RGBA{R: 0xf2, G: 0xef, B: 0xe9, A: 0xff}
	gridColor       = color.RGBA{R: 0xd6, G: 0xd3, B: 0xcc, A: 0xff}
	controlFill     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	controlEdge     = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	labelColor      = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// Attribution is drawn in the bottom-right corner of every frame
const Attribution = "© geo-media-map"

// gridStep returns the graticule spacing in degrees for a zoom
func gridStep(zoom float64) float64 {
	switch {
	case zoom < 4:
		return 10
	case zoom < 8:
		return 1
	default:
		return 0.1
	}
}

// ParseHex parses #rgb or #rrggbb colours
func ParseHex(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

func paintColor(v any) color.RGBA {
	c, ok := ParseHex(surface.Color(v, "#000000"))
	if !ok {
		return color.RGBA{A: 0xff}
	}
	return c
}

// marker is a resolved circle ready to draw, in canvas pixels
type marker struct {
	x, y        float64
	radius      float64
	stroke      float64
	fill        color.RGBA
	strokeColor color.RGBA
	fillHex     string
}

// markers evaluates every layer's paint per feature, in draw order
func (e *Engine) markers() []marker {
	var out []marker
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
			x, y := e.ProjectLocation(models.Location{Lat: p.Lat(), Lon: p.Lon()})
			fillHex := surface.Color(eval(l.spec.Paint, surface.CircleColor, f), "#000000")
			out = append(out, marker{
				x:           x,
				y:           y,
				radius:      surface.Float(eval(l.spec.Paint, surface.CircleRadius, f), 5) * e.cfg.Scale,
				stroke:      surface.Float(eval(l.spec.Paint, surface.CircleStrokeWidth, f), 0) * e.cfg.Scale,
				fill:        paintColor(fillHex),
				strokeColor: paintColor(eval(l.spec.Paint, surface.CircleStrokeColor, f)),
				fillHex:     fillHex,
			})
		}
	}
	return out
}

// visibleBounds returns the lon/lat envelope of the canvas
func (e *Engine) visibleBounds() (minLon, minLat, maxLon, maxLat float64) {
	minLon, minLat = math.Inf(1), math.Inf(1)
	maxLon, maxLat = math.Inf(-1), math.Inf(-1)
	for _, pt := range []image.Point{{0, 0}, {e.width, 0}, {0, e.height}, {e.width, e.height}} {
		loc := e.Unproject(pt)
		minLon, maxLon = math.Min(minLon, loc.Lon), math.Max(maxLon, loc.Lon)
		minLat, maxLat = math.Min(minLat, loc.Lat), math.Max(maxLat, loc.Lat)
	}
	return
}

// gridLines returns graticule segments in canvas pixels
func (e *Engine) gridLines() [][4]float64 {
	minLon, minLat, maxLon, maxLat := e.visibleBounds()
	step := gridStep(e.camera.Zoom)
	for (maxLon-minLon)/step+(maxLat-minLat)/step > maxGridLines {
		step *= 10
	}

	var out [][4]float64
	for lon := math.Floor(minLon/step) * step; lon <= maxLon; lon += step {
		x0, y0 := e.ProjectLocation(models.Location{Lat: maxLat, Lon: lon})
		x1, y1 := e.ProjectLocation(models.Location{Lat: minLat, Lon: lon})
		out = append(out, [4]float64{x0, y0, x1, y1})
	}
	for lat := math.Floor(minLat/step) * step; lat <= maxLat; lat += step {
		x0, y0 := e.ProjectLocation(models.Location{Lat: lat, Lon: minLon})
		x1, y1 := e.ProjectLocation(models.Location{Lat: lat, Lon: maxLon})
		out = append(out, [4]float64{x0, y0, x1, y1})
	}
	return out
}

// RenderImage rasterises the current frame at the configured pixel ratio
func (e *Engine) RenderImage() *image.RGBA {
	pr := float64(e.cfg.PixelRatio)
	img := image.NewRGBA(image.Rect(0, 0, e.width*e.cfg.PixelRatio, e.height*e.cfg.PixelRatio))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	for _, l := range e.gridLines() {
		line(img, l[0]*pr, l[1]*pr, l[2]*pr, l[3]*pr, gridColor)
	}
	for _, m := range e.markers() {
		if m.stroke > 0 {
			disc(img, m.x*pr, m.y*pr, (m.radius+m.stroke)*pr, m.strokeColor)
		}
		disc(img, m.x*pr, m.y*pr, m.radius*pr, m.fill)
	}
	for _, b := range e.controlButtons() {
		r := image.Rect(int(float64(b.rect.Min.X)*pr), int(float64(b.rect.Min.Y)*pr),
			int(float64(b.rect.Max.X)*pr), int(float64(b.rect.Max.Y)*pr))
		draw.Draw(img, r, &image.Uniform{C: controlEdge}, image.Point{}, draw.Src)
		draw.Draw(img, r.Inset(1), &image.Uniform{C: controlFill}, image.Point{}, draw.Src)
		label(img, b.label, r.Min.X+(r.Dx()-7)/2, r.Min.Y+(r.Dy()+10)/2)
	}
	label(img, Attribution, img.Bounds().Dx()-len(Attribution)*7-4, img.Bounds().Dy()-4)
	return img
}

// Snapshot returns the last rendered frame. The engine must have been created
// with PreserveDrawingBuffer.
func (e *Engine) Snapshot() (image.Image, error) {
	if e.removed {
		return nil, surface.ErrRemoved
	}
	if !e.opts.PreserveDrawingBuffer {
		return nil, surface.ErrBufferNotPreserved
	}
	return e.RenderImage(), nil
}

func disc(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	if r <= 0 {
		return
	}
	b := img.Bounds()
	x0, x1 := max(b.Min.X, int(cx-r)), min(b.Max.X-1, int(cx+r))
	y0, y1 := max(b.Min.Y, int(cy-r)), min(b.Max.Y-1, int(cy+r))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func line(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	bresenham(int(x0), int(y0), int(x1), int(y1), func(x, y int) {
		if image.Pt(x, y).In(img.Bounds()) {
			img.SetRGBA(x, y, c)
		}
	})
}

func label(img *image.RGBA, s string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// bresenham walks the integer points of a segment. Segments far outside any
// canvas are clipped to keep the walk bounded.
func bresenham(x0, y0, x1, y1 int, set func(x, y int)) {
	const limit = 1 << 15
	if abs(x0) > limit || abs(y0) > limit || abs(x1) > limit || abs(y1) > limit {
		return
	}
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Cell is one terminal character of a text frame
type Cell struct {
	Rune  rune
	Color string
}

// TextFrame is a frame rendered to a character grid
type TextFrame struct {
	Cols  int
	Rows  int
	Cells [][]Cell
}

// String returns the frame without colour
func (f TextFrame) String() string {
	var sb strings.Builder
	for y, row := range f.Cells {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for _, c := range row {
			sb.WriteRune(c.Rune)
		}
	}
	return sb.String()
}

// brailleGrid packs 2x4 micro pixels into each cell
type brailleGrid struct {
	w, h int
	m    [][]uint8
}

func newBrailleGrid(w, h int) *brailleGrid {
	m := make([][]uint8, h)
	for i := range m {
		m[i] = make([]uint8, w)
	}
	return &brailleGrid{w: w, h: h, m: m}
}

var brailleBits = [2][4]uint8{{0x01, 0x02, 0x04, 0x40}, {0x08, 0x10, 0x20, 0x80}}

func (b *brailleGrid) set(mx, my int) {
	if mx < 0 || my < 0 {
		return
	}
	cx, cy := mx/2, my/4
	if cx >= b.w || cy >= b.h {
		return
	}
	b.m[cy][cx] |= brailleBits[mx%2][my%4]
}

// RenderText renders the frame to a cols x rows grid: braille graticule,
// one glyph per marker and the navigation control labels.
func (e *Engine) RenderText(cols, rows int) TextFrame {
	frame := TextFrame{Cols: cols, Rows: rows}
	if cols <= 0 || rows <= 0 {
		return frame
	}
	// canvas pixels per micro pixel
	sx := float64(e.width) / float64(cols*2)
	sy := float64(e.height) / float64(rows*4)

	grid := newBrailleGrid(cols, rows)
	for _, l := range e.gridLines() {
		bresenham(int(l[0]/sx), int(l[1]/sy), int(l[2]/sx), int(l[3]/sy), grid.set)
	}

	frame.Cells = make([][]Cell, rows)
	for y := range frame.Cells {
		frame.Cells[y] = make([]Cell, cols)
		for x := range frame.Cells[y] {
			r := ' '
			if mask := grid.m[y][x]; mask != 0 {
				r = rune(0x2800 + int(mask))
			}
			frame.Cells[y][x] = Cell{Rune: r, Color: "#d6d3cc"}
		}
	}

	for _, m := range e.markers() {
		cx, cy := int(m.x/(sx*2)), int(m.y/(sy*4))
		if cx < 0 || cy < 0 || cx >= cols || cy >= rows {
			continue
		}
		glyph := '●'
		if m.radius >= 10*e.cfg.Scale {
			glyph = '◉'
		}
		frame.Cells[cy][cx] = Cell{Rune: glyph, Color: m.fillHex}
	}

	for _, b := range e.controlButtons() {
		cx := int(float64(b.rect.Min.X+b.rect.Dx()/2) / (sx * 2))
		cy := int(float64(b.rect.Min.Y+b.rect.Dy()/2) / (sy * 4))
		if cx < 0 || cy < 0 || cx >= cols || cy >= rows {
			continue
		}
		frame.Cells[cy][cx] = Cell{Rune: []rune(b.label)[0], Color: "#333333"}
	}
	return frame
}

// CellToPoint maps a text cell to the canvas pixel at its centre
func (e *Engine) CellToPoint(col, row, cols, rows int) image.Point {
	if cols <= 0 || rows <= 0 {
		return image.Point{}
	}
	return image.Pt(
		int((float64(col)+0.5)*float64(e.width)/float64(cols)),
		int((float64(row)+0.5)*float64(e.height)/float64(rows)),
	)
}
