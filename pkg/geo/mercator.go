package geo

import (
	"math"

	"github.com/1F47E/geo-media-map/pkg/models"
)

// TileSize is the world width in pixels at zoom 0
const TileSize = 512.0

// maxLat is the Web Mercator latitude limit
const maxLat = 85.051129

// WorldSize returns the world width in pixels at the given zoom
func WorldSize(zoom float64) float64 {
	return TileSize * math.Pow(2, zoom)
}

// Project converts a location to Web Mercator pixels at zoom 0
func Project(loc models.Location) (x, y float64) {
	lat := math.Max(-maxLat, math.Min(maxLat, loc.Lat))
	x = (loc.Lon + 180) / 360 * TileSize
	sin := math.Sin(lat * math.Pi / 180)
	y = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * TileSize
	return x, y
}

// Unproject converts zoom 0 Web Mercator pixels back to a location
func Unproject(x, y float64) models.Location {
	lon := x/TileSize*360 - 180
	n := math.Pi - 2*math.Pi*y/TileSize
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return models.Location{Lat: lat, Lon: lon}
}

// WrapLon normalises a longitude into [-180, 180]
func WrapLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	w := math.Mod(lon+180, 360)
	if w < 0 {
		w += 360
	}
	return w - 180
}

// ClampLat keeps a latitude inside the projectable range
func ClampLat(lat float64) float64 {
	return math.Max(-maxLat, math.Min(maxLat, lat))
}
