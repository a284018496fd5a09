package mapadapter

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const tileSize = 256

// fitBound picks the highest zoom, capped at maxZoom, at which b fits into a
// width x height pixel surface.
func fitBound(b orb.Bound, maxZoom, width, height int) Viewport {
	center := b.Center()
	for z := maxZoom; z > 0; z-- {
		min := maptile.Fraction(orb.Point{b.Min[0], b.Max[1]}, maptile.Zoom(z))
		max := maptile.Fraction(orb.Point{b.Max[0], b.Min[1]}, maptile.Zoom(z))
		w := math.Abs(max[0]-min[0]) * tileSize
		h := math.Abs(max[1]-min[1]) * tileSize
		if w <= float64(width) && h <= float64(height) {
			return Viewport{Center: center, Zoom: z}
		}
	}
	return Viewport{Center: center, Zoom: 0}
}
