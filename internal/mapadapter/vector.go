package mapadapter

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
)

// vector adapts the open-data vector tile stack. Its draw interaction reports
// single clicks, so the polygon draft is accumulated here until the browser
// sends an explicit commit.
type vector struct {
	*core
}

func newVector(surface string, opts MapOptions) *vector {
	return &vector{core: newCore(BackendVector, surface, opts, lngLatCoords{})}
}

// Native vector events.
const (
	vectorClick        = "click"
	vectorCommit       = "commit"
	vectorCancel       = "cancel"
	vectorDrag         = "drag"
	vectorVertexInsert = "vertex:insert"
	vectorVertexRemove = "vertex:remove"
	vectorVertexMove   = "vertex:move"
)

func (v *vector) Dispatch(ev NativeEvent) error {
	switch ev.Type {
	case vectorClick:
		return v.click(ev.Position)
	case vectorCommit:
		return v.commit(ev.Path)
	case vectorCancel:
		v.DisableDrawingMode()
		return nil
	case vectorDrag:
		out, err := v.drag(ev.Overlay, ev.Position, ev.Path)
		if err != nil {
			return err
		}
		v.notify(out)
		return nil
	case vectorVertexInsert, vectorVertexRemove, vectorVertexMove:
		out, err := v.vertex(ev.Overlay, vectorVertexEvents[ev.Type], ev.Index, ev.Position)
		if err != nil {
			return err
		}
		// The vector stack only moves the vertex handle; the polygon source
		// is redrawn from the mirror.
		v.queueUpdate(ev.Overlay)
		v.notify(out)
		return nil
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownEvent, BackendVector, ev.Type)
}

var vectorVertexEvents = map[string]EventType{
	vectorVertexInsert: EventVertexInsert,
	vectorVertexRemove: EventVertexRemove,
	vectorVertexMove:   EventVertexEdit,
}

func (v *vector) click(pos json.RawMessage) error {
	p, err := v.coords.decodePoint(pos)
	if err != nil {
		return err
	}

	v.mu.Lock()
	switch v.drawing {
	case geocodec.KindMarker:
		h := v.completeLocked(geocodec.KindMarker, p)
		v.mu.Unlock()
		v.notify(Event{Type: EventOverlayComplete, Handle: h, Kind: geocodec.KindMarker, Point: p})
		return nil
	case geocodec.KindPolygon:
		// A finishing double-click arrives as a repeat of the last click.
		if n := len(v.draft); n == 0 || !v.draft[n-1].Equal(p) {
			v.draft = append(v.draft, p)
		}
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	v.notify(Event{Type: EventMapClick, Point: p})
	return nil
}

// commit finishes a polygon drawing, from the supplied path or from the
// clicks accumulated so far.
func (v *vector) commit(path json.RawMessage) error {
	var ring orb.Ring
	if len(path) > 0 {
		r, err := v.coords.decodePath(path)
		if err != nil {
			return err
		}
		ring = r
	}

	v.mu.Lock()
	if v.drawing != geocodec.KindPolygon {
		v.mu.Unlock()
		return ErrNotDrawing
	}
	if ring == nil {
		ring = v.draft.Clone()
	}
	ring = geocodec.OpenRing(dropRepeats(ring))
	if geocodec.DistinctPoints(ring) < 3 {
		v.mu.Unlock()
		return ErrIncompleteDrawing
	}
	h := v.completeLocked(geocodec.KindPolygon, ring)
	v.mu.Unlock()

	v.notify(Event{Type: EventOverlayComplete, Handle: h, Kind: geocodec.KindPolygon, Point: ring.Bound().Center()})
	return nil
}

// dropRepeats removes consecutive duplicate vertices.
func dropRepeats(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for _, p := range r {
		if n := len(out); n > 0 && out[n-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// lngLatCoords is the [lng, lat] wire order of the vector stack.
type lngLatCoords struct{}

func (lngLatCoords) encodePoint(p orb.Point) any { return [2]float64{p[0], p[1]} }

func (lngLatCoords) encodePath(r orb.Ring) any {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

func (lngLatCoords) encodeBound(b orb.Bound) any {
	return [2][2]float64{{b.Min[0], b.Min[1]}, {b.Max[0], b.Max[1]}}
}

func (lngLatCoords) decodePoint(raw json.RawMessage) (orb.Point, error) {
	var c []float64
	if err := json.Unmarshal(raw, &c); err != nil || len(c) < 2 {
		return orb.Point{}, fmt.Errorf("vector position: want [lng,lat], got %s", raw)
	}
	return validPoint(c[0], c[1])
}

func (lngLatCoords) decodePath(raw json.RawMessage) (orb.Ring, error) {
	var cs [][]float64
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("vector path: %w", err)
	}
	ring := make(orb.Ring, 0, len(cs))
	for _, c := range cs {
		if len(c) < 2 {
			return nil, fmt.Errorf("vector path: short coordinate %v", c)
		}
		p, err := validPoint(c[0], c[1])
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	return ring, nil
}

func validPoint(lng, lat float64) (orb.Point, error) {
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) ||
		lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return orb.Point{}, fmt.Errorf("coordinate out of range (%g, %g)", lng, lat)
	}
	return orb.Point{lng, lat}, nil
}
