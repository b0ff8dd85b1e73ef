// Package mercator is a headless Web-Mercator map engine. It keeps the camera
// of one map session, converts between coordinates and viewport pixels, and
// runs camera animations on a clock where the newest command always wins.
package mercator

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/mapview"
)

// TileSize is the pixel width of the whole world at zoom 0.
const TileSize = 512

const earthCircumference = 2 * math.Pi * orb.EarthRadius

func worldSize(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

// WorldPixel returns the global pixel position of p at zoom.
func WorldPixel(p domain.GeoPoint, zoom float64) mapview.ScreenPoint {
	m := project.Point(orb.Point{p.Lon, p.Lat}, project.WGS84.ToMercator)
	scale := worldSize(zoom) / earthCircumference
	return mapview.ScreenPoint{
		X: (m[0] + earthCircumference/2) * scale,
		Y: (earthCircumference/2 - m[1]) * scale,
	}
}

// FromWorldPixel is the inverse of WorldPixel.
func FromWorldPixel(sp mapview.ScreenPoint, zoom float64) domain.GeoPoint {
	scale := earthCircumference / worldSize(zoom)
	m := orb.Point{
		sp.X*scale - earthCircumference/2,
		earthCircumference/2 - sp.Y*scale,
	}
	g := project.Point(m, project.Mercator.ToWGS84)
	return domain.GeoPoint{Lat: g[1], Lon: g[0]}
}

// Project returns the viewport position of p under cam.
func Project(cam domain.Camera, size mapview.Size, p domain.GeoPoint) mapview.ScreenPoint {
	c := WorldPixel(cam.Center, cam.Zoom)
	w := WorldPixel(p, cam.Zoom)
	return mapview.ScreenPoint{
		X: w.X - c.X + size.Width/2,
		Y: w.Y - c.Y + size.Height/2,
	}
}

// Unproject returns the coordinate under viewport position sp.
func Unproject(cam domain.Camera, size mapview.Size, sp mapview.ScreenPoint) domain.GeoPoint {
	c := WorldPixel(cam.Center, cam.Zoom)
	return FromWorldPixel(mapview.ScreenPoint{
		X: sp.X - size.Width/2 + c.X,
		Y: sp.Y - size.Height/2 + c.Y,
	}, cam.Zoom)
}

// FitCamera returns the camera that shows b inside the unpadded part of a
// viewport of the given size, zoomed in no further than maxZoom.
func FitCamera(b domain.Bounds, size mapview.Size, pad mapview.Padding, minZoom, maxZoom float64) domain.Camera {
	nw := WorldPixel(domain.GeoPoint{Lat: b.MaxLat, Lon: b.MinLon}, 0)
	se := WorldPixel(domain.GeoPoint{Lat: b.MinLat, Lon: b.MaxLon}, 0)
	spanX, spanY := se.X-nw.X, se.Y-nw.Y

	availW := math.Max(size.Width-pad.Left-pad.Right, 1)
	availH := math.Max(size.Height-pad.Top-pad.Bottom, 1)

	zoom := maxZoom
	if spanX > 0 {
		zoom = math.Min(zoom, math.Log2(availW/spanX))
	}
	if spanY > 0 {
		zoom = math.Min(zoom, math.Log2(availH/spanY))
	}
	zoom = clamp(zoom, minZoom, maxZoom)

	scale := math.Exp2(zoom)
	center := mapview.ScreenPoint{
		X: (nw.X+se.X)/2*scale + (pad.Right-pad.Left)/2,
		Y: (nw.Y+se.Y)/2*scale + (pad.Bottom-pad.Top)/2,
	}
	return domain.Camera{Center: FromWorldPixel(center, zoom), Zoom: zoom}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
