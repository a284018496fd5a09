// Package mapadapter puts the two supported map backends behind one
// capability surface.
//
// The browser-side map library is the source of truth for overlay geometry.
// It reports its native events through Dispatch, in its own coordinate order;
// the adapter keeps a mirror of each overlay in orb's [lng, lat] order and
// queues the commands the browser must replay (overlay changes, drawing
// mode, viewport fits) until Drain is called.
package mapadapter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
)

// Backend names a map library family.
type Backend string

const (
	// BackendVector is the open-data vector tile stack. Coordinates are
	// [lng, lat]; polygon drawing ends with an explicit commit action.
	BackendVector Backend = "vector"
	// BackendHosted is the proprietary hosted-maps stack. Coordinates are
	// {lat, lng}; the library signals polygon completion itself.
	BackendHosted Backend = "hosted"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendVector, BackendHosted:
		return Backend(s), nil
	}
	return "", fmt.Errorf("unknown map backend %q", s)
}

var (
	ErrUnknownOverlay    = errors.New("unknown overlay")
	ErrNotDrawing        = errors.New("drawing mode is not enabled")
	ErrIncompleteDrawing = errors.New("polygon needs at least 3 distinct vertices")
	ErrUnknownEvent      = errors.New("unknown native event")
)

// Handle is the opaque reference to an overlay. The zero Handle is no overlay.
type Handle uint64

// EventType identifies the events a listener can subscribe to.
type EventType string

const (
	EventMapClick        EventType = "map-click"
	EventOverlayComplete EventType = "overlay-complete"
	EventDrag            EventType = "drag"
	EventVertexInsert    EventType = "vertex-insert"
	EventVertexRemove    EventType = "vertex-remove"
	EventVertexEdit      EventType = "vertex-edit"
)

// Event is delivered to listeners after the adapter has applied the change
// to its overlay mirror.
type Event struct {
	Type   EventType
	Handle Handle
	Kind   geocodec.Kind
	Point  orb.Point
}

// Listener receives adapter events.
type Listener func(Event)

// Subscription identifies one attached listener. The zero value was never
// attached and detaching it is a no-op.
type Subscription struct {
	id uint64
}

// Attached reports whether s refers to a listener that was attached.
func (s Subscription) Attached() bool { return s.id != 0 }

// Style is applied to an overlay when it is created.
type Style struct {
	StrokeColor   string  `json:"strokeColor" mapstructure:"stroke_color"`
	StrokeOpacity float64 `json:"strokeOpacity" mapstructure:"stroke_opacity"`
	StrokeWeight  float64 `json:"strokeWeight" mapstructure:"stroke_weight"`
	FillColor     string  `json:"fillColor" mapstructure:"fill_color"`
	FillOpacity   float64 `json:"fillOpacity" mapstructure:"fill_opacity"`
	Draggable     bool    `json:"draggable" mapstructure:"draggable"`
	Editable      bool    `json:"editable" mapstructure:"editable"`
}

// DefaultStyle is the stock overlay style.
func DefaultStyle() Style {
	return Style{
		StrokeColor:   "#c21c75",
		StrokeOpacity: 0.9,
		StrokeWeight:  1,
		FillColor:     "#ed51a5",
		FillOpacity:   0.6,
		Draggable:     true,
		Editable:      true,
	}
}

// MapOptions configures a new map.
type MapOptions struct {
	Center  orb.Point
	Zoom    int
	MaxZoom int

	// Width and Height of the surface in CSS pixels, used to fit viewports.
	Width  int
	Height int
}

// Viewport is the current visible area.
type Viewport struct {
	Center orb.Point `json:"center"`
	Zoom   int       `json:"zoom"`
}

// NativeEvent is an event as reported by the browser-side map library.
// Position and Path are in the backend's native coordinate order.
type NativeEvent struct {
	Type     string          `json:"type"`
	Overlay  Handle          `json:"overlay,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Index    int             `json:"index,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
	Path     json.RawMessage `json:"path,omitempty"`
}

// Command is an instruction for the browser-side map library, with
// coordinates in the backend's native order.
type Command struct {
	Op       string        `json:"op"`
	Surface  string        `json:"surface,omitempty"`
	Overlay  Handle        `json:"overlay,omitempty"`
	Kind     geocodec.Kind `json:"kind,omitempty"`
	Position any           `json:"position,omitempty"`
	Path     any           `json:"path,omitempty"`
	Bounds   any           `json:"bounds,omitempty"`
	Zoom     int           `json:"zoom,omitempty"`
	MaxZoom  int           `json:"maxZoom,omitempty"`
	Style    *Style        `json:"style,omitempty"`
}

// Command ops.
const (
	OpCreateMap     = "create-map"
	OpDrawingMode   = "drawing-mode"
	OpAddOverlay    = "add-overlay"
	OpRemoveOverlay = "remove-overlay"
	OpUpdateOverlay = "update-overlay"
	OpFit           = "fit"
)

// Adapter is the capability surface the shape controller and search overlay
// rely on. Implementations are safe for concurrent use; listeners run outside
// the adapter's lock.
type Adapter interface {
	Backend() Backend
	Surface() string
	Viewport() Viewport

	// EnableDrawingMode switches the library into native polygon drawing.
	EnableDrawingMode(kind geocodec.Kind, style Style)
	DisableDrawingMode()
	Drawing() geocodec.Kind

	PlaceMarker(p orb.Point, style Style) Handle
	PlacePolygon(r orb.Ring, style Style) Handle
	RemoveOverlay(h Handle)
	Geometry(h Handle) (orb.Geometry, bool)
	Overlays() []Handle

	FitToGeometry(h Handle, maxZoom int)
	FitToBound(b orb.Bound, maxZoom int)

	On(h Handle, ev EventType, fn Listener) Subscription
	OnMap(ev EventType, fn Listener) Subscription
	Off(sub Subscription)
	Listeners(h Handle) int

	// Dispatch applies a native event from the browser and notifies listeners.
	Dispatch(ev NativeEvent) error
	// Drain returns and clears the queued browser commands.
	Drain() []Command
}

// Open creates a map on surface with the given backend.
func Open(backend Backend, surface string, opts MapOptions) (Adapter, error) {
	if surface == "" {
		return nil, errors.New("map surface is required")
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 14
	}
	if opts.Zoom < 0 || opts.Zoom > opts.MaxZoom {
		return nil, fmt.Errorf("zoom %d outside 0..%d", opts.Zoom, opts.MaxZoom)
	}
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}

	switch backend {
	case BackendVector:
		return newVector(surface, opts), nil
	case BackendHosted:
		return newHosted(surface, opts), nil
	}
	return nil, fmt.Errorf("unknown map backend %q", backend)
}
