// Package shape owns the single editable shape of a map field and keeps the
// two hidden form values in sync with it.
package shape

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/debounce"
	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/mapadapter"
)

// Debounce window bounds for geometry writes.
const (
	DefaultDebounce = 150 * time.Millisecond
	MinDebounce     = 150 * time.Millisecond
	MaxDebounce     = 300 * time.Millisecond
)

// Options configures a Controller.
type Options struct {
	Encoding geocodec.Encoding
	Style    mapadapter.Style
	Debounce time.Duration
	MaxZoom  int

	// OnPersist receives the hidden field values after every write. It runs
	// outside the controller lock, serialised with other OnPersist calls.
	OnPersist func(geocodec.PersistedValue)

	Logger *slog.Logger
}

// Controller is the shape lifecycle state machine. All methods are safe for
// concurrent use.
type Controller struct {
	adapter mapadapter.Adapter
	opts    Options
	log     *slog.Logger

	mu        sync.Mutex
	state     State
	armed     geocodec.Kind
	kind      geocodec.Kind
	handle    mapadapter.Handle
	listeners *ListenerSet
	writer    *debounce.Debouncer
	value     geocodec.PersistedValue
	address   string
	completed mapadapter.Subscription
	closed    bool

	hookMu sync.Mutex
}

// New attaches a controller to a map.
func New(a mapadapter.Adapter, opts Options) (*Controller, error) {
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Debounce < MinDebounce || opts.Debounce > MaxDebounce {
		return nil, fmt.Errorf("debounce %s outside %s..%s", opts.Debounce, MinDebounce, MaxDebounce)
	}
	if opts.Encoding == "" {
		opts.Encoding = geocodec.EncodingGeoJSON
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 14
	}
	if opts.Style == (mapadapter.Style{}) {
		opts.Style = mapadapter.DefaultStyle()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		adapter: a,
		opts:    opts,
		log:     opts.Logger.With("surface", a.Surface()),
		state:   StateEmpty,
	}
	c.completed = a.OnMap(mapadapter.EventOverlayComplete, func(ev mapadapter.Event) {
		if err := c.CommitShape(ev.Handle, ev.Kind); err != nil {
			c.log.Warn("commit drawn overlay", "overlay", ev.Handle, "error", err)
			a.RemoveOverlay(ev.Handle)
		}
	})
	return c, nil
}

// Adapter returns the map the controller drives.
func (c *Controller) Adapter() mapadapter.Adapter { return c.adapter }

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tools returns the tool group visibility for the current state.
func (c *Controller) Tools() Tools {
	c.mu.Lock()
	defer c.mu.Unlock()
	return toolsFor(c.state)
}

// Value returns the hidden field values.
func (c *Controller) Value() geocodec.PersistedValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Snapshot returns state, tools and value read under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:   c.state,
		Tool:    toolStateFor(c.state),
		Tools:   toolsFor(c.state),
		Kind:    c.kind,
		Armed:   c.armed,
		Value:   c.value,
		Address: c.address,
	}
}

// Listeners returns the size of the live shape's listener set.
func (c *Controller) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners.Len()
}

// SetAddress records the search text stored next to the shape.
func (c *Controller) SetAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
}

// StartDrawing arms the map for a new shape. A marker is placed by the next
// map click; a polygon enters native drawing mode.
func (c *Controller) StartDrawing(kind geocodec.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != StateEmpty {
		return fmt.Errorf("%w: draw from %s", ErrInvalidTransition, c.state)
	}
	switch kind {
	case geocodec.KindMarker:
		c.armed = kind
	case geocodec.KindPolygon:
		c.armed = kind
		c.state = StatePlacing
	default:
		return fmt.Errorf("cannot draw shape type %q", kind)
	}
	c.kind = kind
	c.adapter.EnableDrawingMode(kind, c.opts.Style)
	return nil
}

// CancelDrawing abandons an armed marker or an unfinished polygon.
func (c *Controller) CancelDrawing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.armed == geocodec.KindNone {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, c.state)
	}
	c.adapter.DisableDrawingMode()
	c.armed = geocodec.KindNone
	c.kind = geocodec.KindNone
	c.state = StateEmpty
	return nil
}

// CommitShape makes the overlay h the current shape, replacing any prior one.
func (c *Controller) CommitShape(h mapadapter.Handle, kind geocodec.Kind) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateEmpty && c.armed != kind {
		c.mu.Unlock()
		return fmt.Errorf("%w: commit %s while not drawing", ErrInvalidTransition, kind)
	}
	if _, ok := c.adapter.Geometry(h); !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoOverlay, h)
	}
	changed := c.commitLocked(h, kind)
	c.mu.Unlock()

	if changed {
		c.emit()
	}
	return nil
}

// commitLocked swaps in h as the live shape and writes its value.
func (c *Controller) commitLocked(h mapadapter.Handle, kind geocodec.Kind) bool {
	c.releaseLocked(h)
	c.adapter.DisableDrawingMode()

	c.armed = geocodec.KindNone
	c.kind = kind
	c.handle = h
	c.listeners = attachListeners(c.adapter, h, kind, func(mapadapter.Event) { c.GeometryChanged() })
	c.writer = debounce.New(c.opts.Debounce, func() { c.flush(h) })
	c.state = StateActive
	return c.persistLocked()
}

// releaseLocked detaches and removes the live shape unless it is keep.
func (c *Controller) releaseLocked(keep mapadapter.Handle) {
	c.listeners.Detach()
	c.listeners = nil
	if c.writer != nil {
		c.writer.Stop()
		c.writer = nil
	}
	if c.handle != 0 && c.handle != keep {
		c.adapter.RemoveOverlay(c.handle)
	}
	c.handle = 0
}

// GeometryChanged schedules a debounced write of the live geometry.
func (c *Controller) GeometryChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer != nil {
		c.writer.Trigger()
	}
}

// Flush writes a pending debounced change now. It reports whether one was
// pending.
func (c *Controller) Flush() bool {
	c.mu.Lock()
	w := c.writer
	c.mu.Unlock()
	if w == nil {
		return false
	}
	return w.Flush()
}

func (c *Controller) flush(h mapadapter.Handle) {
	c.mu.Lock()
	if c.handle != h || c.state != StateActive {
		c.mu.Unlock()
		return
	}
	changed := c.persistLocked()
	c.mu.Unlock()

	if changed {
		c.emit()
	}
}

// DeleteShape removes the live shape and clears the hidden fields.
func (c *Controller) DeleteShape() error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: delete from %s", ErrInvalidTransition, c.state)
	}
	c.releaseLocked(0)
	c.kind = geocodec.KindNone
	c.state = StateEmpty
	changed := c.clearLocked()
	c.mu.Unlock()

	if changed {
		c.emit()
	}
	return nil
}

// PlaceFromSearch replaces any shape with a marker at p. When a shape exists
// confirm decides; a nil confirm declines. confirm runs under the controller
// lock and must not call back into the Controller.
func (c *Controller) PlaceFromSearch(p orb.Point, address string, confirm ConfirmFunc) (mapadapter.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	if c.handle != 0 && (confirm == nil || !confirm()) {
		c.mu.Unlock()
		return 0, ErrOverwriteDeclined
	}

	c.releaseLocked(0)
	if c.armed != geocodec.KindNone {
		c.adapter.DisableDrawingMode()
	}
	h := c.adapter.PlaceMarker(p, c.opts.Style)
	c.address = address
	changed := c.commitLocked(h, geocodec.KindMarker)
	c.mu.Unlock()

	if changed {
		c.emit()
	}
	return h, nil
}

// Restore draws a previously persisted shape without asking anything. It
// only applies to an empty controller; the fields are re-encoded with the
// configured encoding and the viewport is fitted to the shape.
func (c *Controller) Restore(s geocodec.Shape, address string) error {
	if s.IsZero() {
		return nil
	}

	c.mu.Lock()
	if c.state != StateEmpty || c.armed != geocodec.KindNone {
		c.mu.Unlock()
		return fmt.Errorf("%w: restore into %s", ErrInvalidTransition, c.state)
	}

	var h mapadapter.Handle
	switch g := s.Geometry.(type) {
	case orb.Point:
		h = c.adapter.PlaceMarker(g, c.opts.Style)
	case orb.Ring:
		h = c.adapter.PlacePolygon(g, c.opts.Style)
	default:
		c.mu.Unlock()
		return fmt.Errorf("cannot restore %s geometry", s.Geometry.GeoJSONType())
	}
	c.address = address
	changed := c.commitLocked(h, s.Kind)
	c.mu.Unlock()

	c.adapter.FitToGeometry(h, c.opts.MaxZoom)
	if changed {
		c.emit()
	}
	return nil
}

// Close flushes a pending write and detaches the controller from the map.
func (c *Controller) Close() {
	c.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.listeners.Detach()
	c.listeners = nil
	if c.writer != nil {
		c.writer.Stop()
		c.writer = nil
	}
	c.adapter.Off(c.completed)
}

// persistLocked re-derives the value from the live overlay. A missing
// overlay clears the fields; an unencodable one keeps the last good value.
func (c *Controller) persistLocked() bool {
	geom, ok := c.adapter.Geometry(c.handle)
	if !ok {
		return c.clearLocked()
	}
	v, err := geocodec.ToPersisted(c.kind, geom, c.opts.Encoding)
	if err != nil {
		c.log.Warn("encode shape", "kind", c.kind, "error", err)
		return false
	}
	if v == c.value {
		return false
	}
	c.value = v
	c.log.Debug("persist shape", "type", v.Type, "bytes", len(v.GeoJSON))
	return true
}

func (c *Controller) clearLocked() bool {
	if c.value == (geocodec.PersistedValue{}) {
		return false
	}
	c.value = geocodec.PersistedValue{}
	return true
}

// emit hands the current value to OnPersist. Reading the value inside the
// hook lock keeps the last delivered value equal to the latest write.
func (c *Controller) emit() {
	if c.opts.OnPersist == nil {
		return
	}
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.opts.OnPersist(c.Value())
}
