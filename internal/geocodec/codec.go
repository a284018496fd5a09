// Package geocodec converts between the native shape geometry held on the map
// and the two strings persisted by the host form.
//
// Native geometry is always normalised to orb's [lng, lat] order. The persisted
// envelope is
//
//	{"type":"marker","geometry":{"coordinates":[lng,lat]}}
//	{"type":"polygon","geometry":{"coordinates":[[lng,lat],...]}}
//
// Older field versions stored a flat {lat,lng} object for markers and an
// ordered [{lat,lng},...] array for polygons. Both are accepted on read.
package geocodec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// Kind is the shape type tag written to the second hidden field.
type Kind string

const (
	KindNone    Kind = ""
	KindMarker  Kind = "marker"
	KindPolygon Kind = "polygon"
)

// ParseKind validates a persisted type tag.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNone, KindMarker, KindPolygon:
		return Kind(s), nil
	}
	return KindNone, fmt.Errorf("unknown shape type %q", s)
}

// Encoding selects the persisted representation.
type Encoding string

const (
	EncodingGeoJSON Encoding = "geojson"
	EncodingLegacy  Encoding = "legacy"
)

var (
	// ErrInvalidPersistedValue reports a stored value that cannot be decoded.
	// Callers treat it as "no prior shape".
	ErrInvalidPersistedValue = errors.New("invalid persisted value")

	// ErrDegeneratePolygon reports a ring with fewer than three distinct points.
	ErrDegeneratePolygon = errors.New("polygon needs at least 3 distinct points")

	// ErrNoGeometry reports an attempt to encode a missing geometry.
	ErrNoGeometry = errors.New("no geometry to encode")
)

// PersistedValue is the pair of strings written to the hidden form fields.
// Both are empty, or both are set.
type PersistedValue struct {
	GeoJSON string `json:"geoJSON" doc:"Serialized shape envelope"`
	Type    string `json:"type" doc:"Shape type" enum:"marker,polygon,"`
}

// IsEmpty reports whether the value carries no shape.
func (v PersistedValue) IsEmpty() bool {
	return v.GeoJSON == "" || v.Type == ""
}

// Shape is a decoded persisted value.
type Shape struct {
	Kind     Kind
	Geometry orb.Geometry // orb.Point or orb.Ring
}

// IsZero reports whether s carries no shape.
func (s Shape) IsZero() bool {
	return s.Kind == KindNone || s.Geometry == nil
}

type envelope struct {
	Type     string          `json:"type"`
	Geometry envelopeGeomRaw `json:"geometry"`
}

type envelopeGeomRaw struct {
	Coordinates json.RawMessage `json:"coordinates"`
}

type pointEnvelope struct {
	Type     string `json:"type"`
	Geometry struct {
		Coordinates orb.Point `json:"coordinates"`
	} `json:"geometry"`
}

type ringEnvelope struct {
	Type     string `json:"type"`
	Geometry struct {
		Coordinates []orb.Point `json:"coordinates"`
	} `json:"geometry"`
}

// ToPersisted encodes a native geometry as the two hidden field strings.
func ToPersisted(kind Kind, geom orb.Geometry, enc Encoding) (PersistedValue, error) {
	if geom == nil {
		return PersistedValue{}, ErrNoGeometry
	}

	var (
		data []byte
		err  error
	)
	switch kind {
	case KindMarker:
		p, ok := asPoint(geom)
		if !ok {
			return PersistedValue{}, fmt.Errorf("marker needs a point, got %s", geom.GeoJSONType())
		}
		if enc == EncodingLegacy {
			data, err = json.Marshal(latLngOf(p))
		} else {
			var e pointEnvelope
			e.Type = string(KindMarker)
			e.Geometry.Coordinates = p
			data, err = json.Marshal(e)
		}
	case KindPolygon:
		ring, ok := asRing(geom)
		if !ok {
			return PersistedValue{}, fmt.Errorf("polygon needs a ring, got %s", geom.GeoJSONType())
		}
		ring = OpenRing(ring)
		if DistinctPoints(ring) < 3 {
			return PersistedValue{}, ErrDegeneratePolygon
		}
		if enc == EncodingLegacy {
			path := make([]latLng, len(ring))
			for i, p := range ring {
				path[i] = latLngOf(p)
			}
			data, err = json.Marshal(path)
		} else {
			var e ringEnvelope
			e.Type = string(KindPolygon)
			e.Geometry.Coordinates = []orb.Point(ring)
			data, err = json.Marshal(e)
		}
	default:
		return PersistedValue{}, fmt.Errorf("cannot encode shape type %q", kind)
	}
	if err != nil {
		return PersistedValue{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return PersistedValue{GeoJSON: string(data), Type: string(kind)}, nil
}

// Decode parses the hidden field pair back into a shape. An empty value
// decodes to the zero Shape with no error.
func Decode(v PersistedValue) (Shape, error) {
	if v.IsEmpty() {
		return Shape{}, nil
	}
	kind, err := ParseKind(v.Type)
	if err != nil {
		return Shape{}, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, err)
	}
	return decodeGeometry(kind, []byte(v.GeoJSON))
}

func decodeGeometry(kind Kind, data []byte) (Shape, error) {
	switch kind {
	case KindMarker:
		p, err := decodePoint(data)
		if err != nil {
			return Shape{}, err
		}
		return Shape{Kind: KindMarker, Geometry: p}, nil
	case KindPolygon:
		ring, err := decodeRing(data)
		if err != nil {
			return Shape{}, err
		}
		return Shape{Kind: KindPolygon, Geometry: ring}, nil
	}
	return Shape{}, fmt.Errorf("%w: shape type %q", ErrInvalidPersistedValue, kind)
}

func decodePoint(data []byte) (orb.Point, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err == nil && len(e.Geometry.Coordinates) > 0 {
		var coords []float64
		if err := json.Unmarshal(e.Geometry.Coordinates, &coords); err != nil || len(coords) < 2 {
			return orb.Point{}, fmt.Errorf("%w: marker coordinates", ErrInvalidPersistedValue)
		}
		return checkedPoint(coords[0], coords[1])
	}

	// Legacy flat {lat,lng}.
	var ll rawLatLng
	if err := json.Unmarshal(data, &ll); err != nil {
		return orb.Point{}, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, err)
	}
	return ll.point()
}

func decodeRing(data []byte) (orb.Ring, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err == nil && len(e.Geometry.Coordinates) > 0 {
		return decodeRingCoordinates(e.Geometry.Coordinates)
	}

	// Legacy ordered [{lat,lng},...] path.
	var path []rawLatLng
	if err := json.Unmarshal(data, &path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, err)
	}
	ring := make(orb.Ring, 0, len(path))
	for _, ll := range path {
		p, err := ll.point()
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	return validRing(ring)
}

// decodeRingCoordinates accepts a bare ring [[lng,lat],...] as well as the
// standard GeoJSON polygon nesting [[[lng,lat],...]], keeping the first ring.
func decodeRingCoordinates(raw json.RawMessage) (orb.Ring, error) {
	var flat [][]float64
	if err := json.Unmarshal(raw, &flat); err != nil {
		var nested [][][]float64
		if err := json.Unmarshal(raw, &nested); err != nil || len(nested) == 0 {
			return nil, fmt.Errorf("%w: polygon coordinates", ErrInvalidPersistedValue)
		}
		flat = nested[0]
	}

	ring := make(orb.Ring, 0, len(flat))
	for _, c := range flat {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: short coordinate", ErrInvalidPersistedValue)
		}
		p, err := checkedPoint(c[0], c[1])
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	return validRing(ring)
}

func validRing(ring orb.Ring) (orb.Ring, error) {
	ring = OpenRing(ring)
	if DistinctPoints(ring) < 3 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, ErrDegeneratePolygon)
	}
	return ring, nil
}

func asPoint(g orb.Geometry) (orb.Point, bool) {
	p, ok := g.(orb.Point)
	return p, ok
}

func asRing(g orb.Geometry) (orb.Ring, bool) {
	switch v := g.(type) {
	case orb.Ring:
		return v, true
	case orb.Polygon:
		if len(v) == 0 {
			return nil, false
		}
		return v[0], true
	case orb.LineString:
		return orb.Ring(v), true
	}
	return nil, false
}

// OpenRing drops a trailing point equal to the first one. Rings are stored
// implicitly closed.
func OpenRing(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0].Equal(r[len(r)-1]) {
		return r[:len(r)-1]
	}
	return r
}

// DistinctPoints counts the distinct vertices of r.
func DistinctPoints(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}
