package mapadapter

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
)

// nativeCoords converts between orb points and a backend's wire order.
type nativeCoords interface {
	encodePoint(p orb.Point) any
	encodePath(r orb.Ring) any
	encodeBound(b orb.Bound) any
	decodePoint(raw json.RawMessage) (orb.Point, error)
	decodePath(raw json.RawMessage) (orb.Ring, error)
}

type overlay struct {
	kind  geocodec.Kind
	geom  orb.Geometry
	style Style
}

type subscription struct {
	handle Handle
	ev     EventType
	fn     Listener
}

// core is the overlay mirror shared by both backends. Backends add Dispatch.
type core struct {
	backend Backend
	surface string
	opts    MapOptions
	coords  nativeCoords

	mu        sync.Mutex
	nextID    uint64
	overlays  map[Handle]*overlay
	subs      map[uint64]subscription
	drawing   geocodec.Kind
	drawStyle Style
	draft     orb.Ring
	view      Viewport
	queue     []Command
}

func newCore(backend Backend, surface string, opts MapOptions, coords nativeCoords) *core {
	c := &core{
		backend:  backend,
		surface:  surface,
		opts:     opts,
		coords:   coords,
		overlays: make(map[Handle]*overlay),
		subs:     make(map[uint64]subscription),
		view:     Viewport{Center: opts.Center, Zoom: opts.Zoom},
	}
	c.queue = append(c.queue, Command{
		Op:       OpCreateMap,
		Surface:  surface,
		Position: coords.encodePoint(opts.Center),
		Zoom:     opts.Zoom,
		MaxZoom:  opts.MaxZoom,
	})
	return c
}

func (c *core) Backend() Backend { return c.backend }
func (c *core) Surface() string  { return c.surface }

func (c *core) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *core) EnableDrawingMode(kind geocodec.Kind, style Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawing = kind
	c.drawStyle = style
	c.draft = nil
	c.queue = append(c.queue, Command{Op: OpDrawingMode, Kind: kind, Style: &style})
}

func (c *core) DisableDrawingMode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disableDrawingLocked()
}

func (c *core) disableDrawingLocked() {
	c.draft = nil
	if c.drawing == geocodec.KindNone {
		return
	}
	c.drawing = geocodec.KindNone
	c.queue = append(c.queue, Command{Op: OpDrawingMode, Kind: geocodec.KindNone})
}

func (c *core) Drawing() geocodec.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawing
}

func (c *core) PlaceMarker(p orb.Point, style Style) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(geocodec.KindMarker, p, style)
}

func (c *core) PlacePolygon(r orb.Ring, style Style) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(geocodec.KindPolygon, r.Clone(), style)
}

func (c *core) addLocked(kind geocodec.Kind, geom orb.Geometry, style Style) Handle {
	c.nextID++
	h := Handle(c.nextID)
	c.overlays[h] = &overlay{kind: kind, geom: geom, style: style}

	cmd := Command{Op: OpAddOverlay, Overlay: h, Kind: kind, Style: &style}
	switch g := geom.(type) {
	case orb.Point:
		cmd.Position = c.coords.encodePoint(g)
	case orb.Ring:
		cmd.Path = c.coords.encodePath(g)
	}
	c.queue = append(c.queue, cmd)
	return h
}

// RemoveOverlay removes h from the map. Listeners still attached to h are
// dropped with it; removing an unknown handle is a no-op.
func (c *core) RemoveOverlay(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.overlays[h]; !ok {
		return
	}
	delete(c.overlays, h)
	for id, s := range c.subs {
		if s.handle == h {
			delete(c.subs, id)
		}
	}
	c.queue = append(c.queue, Command{Op: OpRemoveOverlay, Overlay: h})
}

func (c *core) Geometry(h Handle) (orb.Geometry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.overlays[h]
	if !ok {
		return nil, false
	}
	return orb.Clone(o.geom), true
}

func (c *core) Overlays() []Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := make([]Handle, 0, len(c.overlays))
	for h := range c.overlays {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

func (c *core) FitToGeometry(h Handle, maxZoom int) {
	c.mu.Lock()
	o, ok := c.overlays[h]
	var b orb.Bound
	if ok {
		b = o.geom.Bound()
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.FitToBound(b, maxZoom)
}

func (c *core) FitToBound(b orb.Bound, maxZoom int) {
	if maxZoom <= 0 || maxZoom > c.opts.MaxZoom {
		maxZoom = c.opts.MaxZoom
	}
	view := fitBound(b, maxZoom, c.opts.Width, c.opts.Height)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = view
	c.queue = append(c.queue, Command{
		Op:      OpFit,
		Bounds:  c.coords.encodeBound(b),
		Zoom:    view.Zoom,
		MaxZoom: maxZoom,
	})
}

func (c *core) On(h Handle, ev EventType, fn Listener) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.overlays[h]; !ok {
		return Subscription{}
	}
	return c.subscribeLocked(h, ev, fn)
}

func (c *core) OnMap(ev EventType, fn Listener) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribeLocked(0, ev, fn)
}

func (c *core) subscribeLocked(h Handle, ev EventType, fn Listener) Subscription {
	c.nextID++
	c.subs[c.nextID] = subscription{handle: h, ev: ev, fn: fn}
	return Subscription{id: c.nextID}
}

// Off detaches sub. Unknown or zero subscriptions are ignored.
func (c *core) Off(sub Subscription) {
	if !sub.Attached() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, sub.id)
}

func (c *core) Listeners(h Handle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.subs {
		if s.handle == h {
			n++
		}
	}
	return n
}

func (c *core) Drain() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmds := c.queue
	c.queue = nil
	return cmds
}

// notify runs the listeners matching ev outside the lock, in attach order.
func (c *core) notify(ev Event) {
	target := ev.Handle
	if ev.Type == EventMapClick || ev.Type == EventOverlayComplete {
		target = 0
	}

	c.mu.Lock()
	ids := make([]uint64, 0, len(c.subs))
	for id, s := range c.subs {
		if s.ev == ev.Type && s.handle == target {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = c.subs[id].fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// completeLocked materialises a finished drawing as an overlay and leaves
// drawing mode.
func (c *core) completeLocked(kind geocodec.Kind, geom orb.Geometry) Handle {
	style := c.drawStyle
	c.disableDrawingLocked()
	return c.addLocked(kind, geom, style)
}

// drag replaces the whole geometry of h.
func (c *core) drag(h Handle, pos, path json.RawMessage) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.overlays[h]
	if !ok {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownOverlay, h)
	}
	switch o.kind {
	case geocodec.KindMarker:
		p, err := c.coords.decodePoint(pos)
		if err != nil {
			return Event{}, err
		}
		o.geom = p
		return Event{Type: EventDrag, Handle: h, Kind: o.kind, Point: p}, nil
	default:
		r, err := c.coords.decodePath(path)
		if err != nil {
			return Event{}, err
		}
		if geocodec.DistinctPoints(r) < 3 {
			return Event{}, ErrIncompleteDrawing
		}
		o.geom = r
		return Event{Type: EventDrag, Handle: h, Kind: o.kind, Point: r.Bound().Center()}, nil
	}
}

// vertex applies a single-vertex change to a polygon overlay.
func (c *core) vertex(h Handle, ev EventType, index int, pos json.RawMessage) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.overlays[h]
	if !ok {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownOverlay, h)
	}
	ring, ok := o.geom.(orb.Ring)
	if !ok {
		return Event{}, fmt.Errorf("overlay %d is not a polygon", h)
	}

	var p orb.Point
	if ev != EventVertexRemove {
		var err error
		if p, err = c.coords.decodePoint(pos); err != nil {
			return Event{}, err
		}
	}

	switch ev {
	case EventVertexInsert:
		if index < 0 || index > len(ring) {
			return Event{}, fmt.Errorf("vertex index %d out of range", index)
		}
		next := make(orb.Ring, 0, len(ring)+1)
		next = append(next, ring[:index]...)
		next = append(next, p)
		next = append(next, ring[index:]...)
		ring = next
	case EventVertexRemove:
		if index < 0 || index >= len(ring) {
			return Event{}, fmt.Errorf("vertex index %d out of range", index)
		}
		next := make(orb.Ring, 0, len(ring)-1)
		next = append(next, ring[:index]...)
		next = append(next, ring[index+1:]...)
		if geocodec.DistinctPoints(next) < 3 {
			return Event{}, ErrIncompleteDrawing
		}
		p = ring[index]
		ring = next
	case EventVertexEdit:
		if index < 0 || index >= len(ring) {
			return Event{}, fmt.Errorf("vertex index %d out of range", index)
		}
		ring = ring.Clone()
		ring[index] = p
	}
	o.geom = ring
	return Event{Type: ev, Handle: h, Kind: o.kind, Point: p}, nil
}

// queueUpdate asks the browser to redraw h from the mirrored geometry.
func (c *core) queueUpdate(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.overlays[h]
	if !ok {
		return
	}
	cmd := Command{Op: OpUpdateOverlay, Overlay: h, Kind: o.kind}
	switch g := o.geom.(type) {
	case orb.Point:
		cmd.Position = c.coords.encodePoint(g)
	case orb.Ring:
		cmd.Path = c.coords.encodePath(g)
	}
	c.queue = append(c.queue, cmd)
}

func (c *core) kindOf(h Handle) (geocodec.Kind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.overlays[h]
	if !ok {
		return geocodec.KindNone, false
	}
	return o.kind, true
}
