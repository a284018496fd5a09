package geocodec_test

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
)

func TestToPersistedMarker(t *testing.T) {
	v, err := geocodec.ToPersisted(geocodec.KindMarker, orb.Point{20, 10}, geocodec.EncodingGeoJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"marker","geometry":{"coordinates":[20,10]}}`
	if v.GeoJSON != want {
		t.Fatalf("geoJSON=%s, want %s", v.GeoJSON, want)
	}
	if v.Type != "marker" {
		t.Fatalf("type=%q, want marker", v.Type)
	}
}

func TestToPersistedLegacyMarker(t *testing.T) {
	v, err := geocodec.ToPersisted(geocodec.KindMarker, orb.Point{-2.1, 51.5}, geocodec.EncodingLegacy)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"lat":51.5,"lng":-2.1}`; v.GeoJSON != want {
		t.Fatalf("geoJSON=%s, want %s", v.GeoJSON, want)
	}
}

func TestPolygonRoundTrip(t *testing.T) {
	ring := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	for _, enc := range []geocodec.Encoding{geocodec.EncodingGeoJSON, geocodec.EncodingLegacy} {
		v, err := geocodec.ToPersisted(geocodec.KindPolygon, ring, enc)
		if err != nil {
			t.Fatalf("%s: %v", enc, err)
		}
		shape, err := geocodec.FromPersisted([]byte(`{"geoJSON":` + quote(v.GeoJSON) + `,"type":"polygon"}`))
		if err != nil {
			t.Fatalf("%s: decode: %v", enc, err)
		}
		if shape.Kind != geocodec.KindPolygon {
			t.Fatalf("%s: kind=%q, want polygon", enc, shape.Kind)
		}
		got := shape.Geometry.(orb.Ring)
		if !got.Equal(ring) {
			t.Fatalf("%s: ring=%v, want %v", enc, got, ring)
		}
	}
}

func TestClosedRingIsStoredOpen(t *testing.T) {
	closed := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	v, err := geocodec.ToPersisted(geocodec.KindPolygon, closed, geocodec.EncodingGeoJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"polygon","geometry":{"coordinates":[[0,0],[1,0],[1,1]]}}`
	if v.GeoJSON != want {
		t.Fatalf("geoJSON=%s, want %s", v.GeoJSON, want)
	}
}

func TestDegeneratePolygon(t *testing.T) {
	_, err := geocodec.ToPersisted(geocodec.KindPolygon, orb.Ring{{0, 0}, {1, 1}, {0, 0}}, geocodec.EncodingGeoJSON)
	if !errors.Is(err, geocodec.ErrDegeneratePolygon) {
		t.Fatalf("err=%v, want ErrDegeneratePolygon", err)
	}
}

func TestLegacyMigration(t *testing.T) {
	shape, err := geocodec.FromPersisted([]byte(`{"lat":"51.5","lng":"-2.1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if shape.Kind != geocodec.KindMarker {
		t.Fatalf("kind=%q, want marker", shape.Kind)
	}
	if p := shape.Geometry.(orb.Point); p != (orb.Point{-2.1, 51.5}) {
		t.Fatalf("point=%v, want [-2.1 51.5]", p)
	}
}

func TestLegacyMigrationRejectsBadNumbers(t *testing.T) {
	for _, raw := range []string{
		`{"lat":"bad","lng":"1"}`,
		`{"lat":"NaN","lng":"1"}`,
		`{"lat":"1","lng":"Inf"}`,
		`{"lat":"95","lng":"1"}`,
	} {
		shape, err := geocodec.FromPersisted([]byte(raw))
		if !errors.Is(err, geocodec.ErrInvalidPersistedValue) {
			t.Fatalf("%s: err=%v, want ErrInvalidPersistedValue", raw, err)
		}
		if !shape.IsZero() {
			t.Fatalf("%s: shape=%+v, want none", raw, shape)
		}
	}
}

func TestMigrateKeepsAddress(t *testing.T) {
	h := geocodec.HostValue{Lat: []byte(`10`), Lng: []byte(`20`), Address: "Somewhere"}
	m, err := geocodec.Migrate(h, geocodec.EncodingGeoJSON)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != "marker" || m.Address != "Somewhere" {
		t.Fatalf("migrated=%+v", m)
	}
	if want := `{"type":"marker","geometry":{"coordinates":[20,10]}}`; m.GeoJSON != want {
		t.Fatalf("geoJSON=%s, want %s", m.GeoJSON, want)
	}
}

func TestFromPersistedForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind geocodec.Kind
	}{
		{"empty", ``, geocodec.KindNone},
		{"empty host value", `{"geoJSON":"","type":""}`, geocodec.KindNone},
		{"bare envelope", `{"type":"marker","geometry":{"coordinates":[1,2]}}`, geocodec.KindMarker},
		{"legacy host marker", `{"geoJSON":"{\"lat\":2,\"lng\":1}","type":"marker"}`, geocodec.KindMarker},
		{"legacy path", `[{"lat":0,"lng":0},{"lat":0,"lng":1},{"lat":1,"lng":1}]`, geocodec.KindPolygon},
		{"nested polygon", `{"type":"polygon","geometry":{"coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`, geocodec.KindPolygon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := geocodec.FromPersisted([]byte(tt.raw))
			if err != nil {
				t.Fatal(err)
			}
			if shape.Kind != tt.kind {
				t.Fatalf("kind=%q, want %q", shape.Kind, tt.kind)
			}
		})
	}
}

func TestFromPersistedRejectsUnknownType(t *testing.T) {
	_, err := geocodec.FromPersisted([]byte(`{"geoJSON":"{}","type":"circle"}`))
	if !errors.Is(err, geocodec.ErrInvalidPersistedValue) {
		t.Fatalf("err=%v, want ErrInvalidPersistedValue", err)
	}
}

func TestToFeatureClosesRing(t *testing.T) {
	shape := geocodec.Shape{Kind: geocodec.KindPolygon, Geometry: orb.Ring{{0, 0}, {1, 0}, {1, 1}}}
	f := geocodec.ToFeature(shape, map[string]any{"address": "x"})
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("geometry=%T, want orb.Polygon", f.Geometry)
	}
	if !poly[0].Closed() {
		t.Fatalf("ring not closed: %v", poly[0])
	}
	if f.Properties["type"] != "polygon" || f.Properties["address"] != "x" {
		t.Fatalf("properties=%v", f.Properties)
	}
	if shape.Area() <= 0 {
		t.Fatalf("area=%f, want > 0", shape.Area())
	}
}

func quote(s string) string {
	out := []byte{'"'}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, '"'))
}
