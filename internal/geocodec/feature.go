package geocodec

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ToFeature converts a decoded shape into a standard GeoJSON Feature, closing
// polygon rings as RFC 7946 requires. The zero Shape yields nil.
func ToFeature(s Shape, props map[string]any) *geojson.Feature {
	if s.IsZero() {
		return nil
	}

	var g orb.Geometry
	switch v := s.Geometry.(type) {
	case orb.Point:
		g = v
	case orb.Ring:
		ring := make(orb.Ring, len(v), len(v)+1)
		copy(ring, v)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		g = orb.Polygon{ring}
	default:
		return nil
	}

	f := geojson.NewFeature(g)
	f.Properties["type"] = string(s.Kind)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// Bound returns the bounding box of the shape geometry.
func (s Shape) Bound() orb.Bound {
	if s.Geometry == nil {
		return orb.Bound{}
	}
	return s.Geometry.Bound()
}

// Area returns the geodesic area of a polygon shape in square metres, or zero
// for markers.
func (s Shape) Area() float64 {
	r, ok := s.Geometry.(orb.Ring)
	if !ok {
		return 0
	}
	closed := make(orb.Ring, len(r), len(r)+1)
	copy(closed, r)
	if !closed.Closed() {
		closed = append(closed, closed[0])
	}
	return math.Abs(geo.Area(orb.Polygon{closed}))
}
