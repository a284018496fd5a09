package mapadapter

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
)

// hosted adapts the hosted-maps stack. Its drawing manager owns clicks while
// drawing and reports finished overlays itself.
type hosted struct {
	*core
}

func newHosted(surface string, opts MapOptions) *hosted {
	return &hosted{core: newCore(BackendHosted, surface, opts, latLngCoords{})}
}

// Native hosted events, named as the library names them.
const (
	hostedClick           = "click"
	hostedOverlayComplete = "overlaycomplete"
	hostedDragEnd         = "dragend"
	hostedInsertAt        = "insert_at"
	hostedRemoveAt        = "remove_at"
	hostedSetAt           = "set_at"
)

var hostedVertexEvents = map[string]EventType{
	hostedInsertAt: EventVertexInsert,
	hostedRemoveAt: EventVertexRemove,
	hostedSetAt:    EventVertexEdit,
}

func (h *hosted) Dispatch(ev NativeEvent) error {
	switch ev.Type {
	case hostedClick:
		p, err := h.coords.decodePoint(ev.Position)
		if err != nil {
			return err
		}
		if h.Drawing() != geocodec.KindNone {
			return nil
		}
		h.notify(Event{Type: EventMapClick, Point: p})
		return nil
	case hostedOverlayComplete:
		return h.overlayComplete(ev)
	case hostedDragEnd:
		out, err := h.drag(ev.Overlay, ev.Position, ev.Path)
		if err != nil {
			return err
		}
		h.notify(out)
		return nil
	case hostedInsertAt, hostedRemoveAt, hostedSetAt:
		out, err := h.vertex(ev.Overlay, hostedVertexEvents[ev.Type], ev.Index, ev.Position)
		if err != nil {
			return err
		}
		h.notify(out)
		return nil
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownEvent, BackendHosted, ev.Type)
}

func (h *hosted) overlayComplete(ev NativeEvent) error {
	kind, err := geocodec.ParseKind(ev.Kind)
	if err != nil || kind == geocodec.KindNone {
		return fmt.Errorf("overlaycomplete: unknown overlay kind %q", ev.Kind)
	}

	var (
		geom   orb.Geometry
		anchor orb.Point
	)
	if kind == geocodec.KindMarker {
		p, err := h.coords.decodePoint(ev.Position)
		if err != nil {
			return err
		}
		geom, anchor = p, p
	} else {
		r, err := h.coords.decodePath(ev.Path)
		if err != nil {
			return err
		}
		r = geocodec.OpenRing(r)
		if geocodec.DistinctPoints(r) < 3 {
			return ErrIncompleteDrawing
		}
		geom, anchor = r, r.Bound().Center()
	}

	h.mu.Lock()
	if h.drawing != kind {
		h.mu.Unlock()
		return ErrNotDrawing
	}
	handle := h.completeLocked(kind, geom)
	h.mu.Unlock()

	h.notify(Event{Type: EventOverlayComplete, Handle: handle, Kind: kind, Point: anchor})
	return nil
}

type latLngLiteral struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type boundsLiteral struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
}

// latLngCoords is the {lat, lng} wire order of the hosted stack.
type latLngCoords struct{}

func (latLngCoords) encodePoint(p orb.Point) any { return latLngLiteral{Lat: p.Lat(), Lng: p.Lon()} }

func (latLngCoords) encodePath(r orb.Ring) any {
	out := make([]latLngLiteral, len(r))
	for i, p := range r {
		out[i] = latLngLiteral{Lat: p.Lat(), Lng: p.Lon()}
	}
	return out
}

func (latLngCoords) encodeBound(b orb.Bound) any {
	return boundsLiteral{North: b.Top(), East: b.Right(), South: b.Bottom(), West: b.Left()}
}

func (latLngCoords) decodePoint(raw json.RawMessage) (orb.Point, error) {
	var ll *latLngLiteral
	if err := json.Unmarshal(raw, &ll); err != nil || ll == nil {
		return orb.Point{}, fmt.Errorf("hosted position: want {lat,lng}, got %s", raw)
	}
	return validPoint(ll.Lng, ll.Lat)
}

func (latLngCoords) decodePath(raw json.RawMessage) (orb.Ring, error) {
	var lls []latLngLiteral
	if err := json.Unmarshal(raw, &lls); err != nil {
		return nil, fmt.Errorf("hosted path: %w", err)
	}
	ring := make(orb.Ring, 0, len(lls))
	for _, ll := range lls {
		p, err := validPoint(ll.Lng, ll.Lat)
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	return ring, nil
}
