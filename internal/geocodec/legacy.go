package geocodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// latLng is the legacy lat-first object written by older field versions.
type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func latLngOf(p orb.Point) latLng {
	return latLng{Lat: p.Lat(), Lng: p.Lon()}
}

// rawLatLng accepts numbers or numeric strings, as stored by hosts that kept
// the values as form text.
type rawLatLng struct {
	Lat json.RawMessage `json:"lat"`
	Lng json.RawMessage `json:"lng"`
}

func (r rawLatLng) point() (orb.Point, error) {
	if len(r.Lat) == 0 || len(r.Lng) == 0 {
		return orb.Point{}, fmt.Errorf("%w: missing lat/lng", ErrInvalidPersistedValue)
	}
	lat, err := coerceFloat(r.Lat)
	if err != nil {
		return orb.Point{}, err
	}
	lng, err := coerceFloat(r.Lng)
	if err != nil {
		return orb.Point{}, err
	}
	return checkedPoint(lng, lat)
}

func coerceFloat(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, err)
		}
	} else {
		s = string(raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric coordinate %q", ErrInvalidPersistedValue, s)
	}
	return f, nil
}

// checkedPoint builds a [lng, lat] point, rejecting NaN, infinities and
// out-of-range values.
func checkedPoint(lng, lat float64) (orb.Point, error) {
	for _, f := range []float64{lng, lat} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Point{}, fmt.Errorf("%w: coordinate is not finite", ErrInvalidPersistedValue)
		}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return orb.Point{}, fmt.Errorf("%w: coordinate out of range (%g, %g)", ErrInvalidPersistedValue, lng, lat)
	}
	return orb.Point{lng, lat}, nil
}

// HostValue is the value shape handed over by the host form framework.
// Legacy values carry only Lat and Lng.
type HostValue struct {
	GeoJSON string          `json:"geoJSON,omitempty"`
	Type    string          `json:"type,omitempty"`
	Address string          `json:"address,omitempty"`
	Lat     json.RawMessage `json:"lat,omitempty"`
	Lng     json.RawMessage `json:"lng,omitempty"`
}

// Migrate upgrades a legacy {lat,lng} host value without a geoJSON key to a
// marker value. The returned value always has GeoJSON/Type set together or
// not at all.
func Migrate(h HostValue, enc Encoding) (HostValue, error) {
	if h.GeoJSON != "" || len(h.Lat) == 0 || len(h.Lng) == 0 {
		return h, nil
	}
	p, err := rawLatLng{Lat: h.Lat, Lng: h.Lng}.point()
	if err != nil {
		return HostValue{Address: h.Address}, err
	}
	v, err := ToPersisted(KindMarker, p, enc)
	if err != nil {
		return HostValue{Address: h.Address}, err
	}
	return HostValue{GeoJSON: v.GeoJSON, Type: v.Type, Address: h.Address}, nil
}

// FromPersisted decodes any stored representation: the host object
// {geoJSON,type,address}, a bare envelope, or a legacy {lat,lng}. Empty input
// yields the zero Shape. Anything undecodable yields ErrInvalidPersistedValue.
func FromPersisted(raw []byte) (Shape, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}")) {
		return Shape{}, nil
	}

	if raw[0] == '[' {
		return decodeGeometry(KindPolygon, raw)
	}

	var h HostValue
	if err := json.Unmarshal(raw, &h); err != nil {
		return Shape{}, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, err)
	}

	switch {
	case h.GeoJSON != "":
		return Decode(PersistedValue{GeoJSON: h.GeoJSON, Type: h.Type})
	case len(h.Lat) > 0 && len(h.Lng) > 0:
		m, err := Migrate(h, EncodingGeoJSON)
		if err != nil {
			return Shape{}, err
		}
		return Decode(PersistedValue{GeoJSON: m.GeoJSON, Type: m.Type})
	case h.Type != "":
		// A bare envelope: the type tag sits next to the geometry.
		kind, err := ParseKind(h.Type)
		if err != nil {
			return Shape{}, fmt.Errorf("%w: %v", ErrInvalidPersistedValue, err)
		}
		return decodeGeometry(kind, raw)
	}
	return Shape{}, nil
}
