// Package geo provides the spatial index used to hit-test rendered features
// and the projection helpers shared by the map surfaces.
package geo

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// Item is an indexed feature position in projected world coordinates.
// Order is the draw order: higher values are painted on top.
type Item struct {
	ID    string
	X     float64
	Y     float64
	Order int
	Ref   any
}

// spatialItem wraps an Item for R-Tree indexing
type spatialItem struct {
	*Item
	rect rtreego.Rect
}

func (si *spatialItem) Bounds() rtreego.Rect {
	return si.rect
}

// Index is a thread-safe R-Tree over projected feature positions
type Index struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Load replaces the index content with items using a bulk load
func (g *Index) Load(items []*Item) {
	objs := make([]rtreego.Spatial, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		p := rtreego.Point{item.X, item.Y}
		objs = append(objs, &spatialItem{item, p.ToRect(tolerance)})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.tree = rtreego.NewTree(dimensions, minChildren, maxChildren, objs...)
	g.itemCount.Store(int64(len(objs)))
}

// SearchBox returns the items inside the box, topmost first
func (g *Index) SearchBox(minX, minY, maxX, maxY float64) []*Item {
	if maxX < minX || maxY < minY {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	bounds, err := rtreego.NewRectFromPoints(rtreego.Point{minX, minY}, rtreego.Point{maxX, maxY})
	if err != nil {
		return nil
	}

	results := g.tree.SearchIntersect(bounds)
	items := make([]*Item, 0, len(results))
	for _, result := range results {
		si, ok := result.(*spatialItem)
		if !ok || si.Item == nil {
			continue
		}
		if si.X >= minX && si.X <= maxX && si.Y >= minY && si.Y <= maxY {
			items = append(items, si.Item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Order > items[j].Order })
	return items
}

// Nearest returns up to n items closest to (x, y)
func (g *Index) Nearest(x, y float64, n int) []*Item {
	if n <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.tree.Size() == 0 {
		return nil
	}

	results := g.tree.NearestNeighbors(n, rtreego.Point{x, y})
	items := make([]*Item, 0, len(results))
	for _, result := range results {
		if si, ok := result.(*spatialItem); ok && si.Item != nil {
			items = append(items, si.Item)
		}
	}
	return items
}

// Size returns the number of indexed items
func (g *Index) Size() int64 {
	return g.itemCount.Load()
}

// Clear removes all items from the index
func (g *Index) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	g.itemCount.Store(0)
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}
