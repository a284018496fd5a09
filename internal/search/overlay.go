// Package search turns typed addresses into place predictions and places the
// chosen one on the map.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/shape"
)

var (
	// ErrSuperseded is returned for a response that arrived after a newer query.
	ErrSuperseded = errors.New("search superseded by a newer query")

	ErrNoSuchPrediction = errors.New("no such prediction")
)

// Keys understood by Key.
const (
	KeyDown   = "ArrowDown"
	KeyUp     = "ArrowUp"
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)

// Target receives the place chosen by the editor.
type Target interface {
	PlaceFromSearch(p orb.Point, address string, confirm shape.ConfirmFunc) (mapadapter.Handle, error)
	Adapter() mapadapter.Adapter
}

// Options configures an Overlay.
type Options struct {
	MaxZoom int
	Logger  *slog.Logger
}

// View is the rendered state of the overlay.
type View struct {
	Text      string `json:"text"`
	Open      bool   `json:"open"`
	Visible   bool   `json:"visible"`
	Highlight int    `json:"highlight"`
	Items     []Item `json:"items"`
}

// Selection is the outcome of choosing a prediction.
type Selection struct {
	Handle mapadapter.Handle `json:"handle"`
	Place  Place             `json:"place"`
}

// Overlay is the search box, its suggestion list and the keyboard cursor.
type Overlay struct {
	provider Provider
	target   Target
	maxZoom  int
	log      *slog.Logger

	mu        sync.Mutex
	gen       uint64
	text      string
	results   []Prediction
	highlight int
	visible   bool
	open      bool
}

// New creates an overlay backed by provider.
func New(provider Provider, target Target, opts Options) *Overlay {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 14
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Overlay{
		provider:  provider,
		target:    target,
		maxZoom:   opts.MaxZoom,
		log:       opts.Logger.With("provider", provider.Name()),
		highlight: -1,
		open:      true,
	}
}

// Query replaces the results with the predictions for text. Responses to
// older queries are dropped with ErrSuperseded; provider failures clear and
// hide the list.
func (o *Overlay) Query(ctx context.Context, text string) ([]Prediction, error) {
	o.mu.Lock()
	o.gen++
	gen := o.gen
	o.text = text
	if strings.TrimSpace(text) == "" {
		o.clearLocked()
		o.mu.Unlock()
		return nil, nil
	}
	o.mu.Unlock()

	preds, err := o.provider.Predict(ctx, text)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		o.clearLocked()
		var se *ServiceError
		if errors.As(err, &se) {
			o.log.Warn("place predictions failed", "status", se.Status)
		} else {
			o.log.Error("place predictions failed", "error", err)
		}
		return nil, err
	}

	o.results = preds
	o.highlight = -1
	o.visible = len(preds) > 0
	return preds, nil
}

func (o *Overlay) clearLocked() {
	o.results = nil
	o.highlight = -1
	o.visible = false
}

// Key applies a keyboard key. Enter selects the highlighted prediction and
// returns the selection; other keys return nil.
func (o *Overlay) Key(ctx context.Context, key string, confirm shape.ConfirmFunc) (*Selection, error) {
	o.mu.Lock()
	n := len(o.results)
	switch key {
	case KeyDown, KeyUp:
		if n == 0 {
			break
		}
		o.visible = true
		switch {
		case key == KeyDown && o.highlight < 0:
			o.highlight = 0
		case key == KeyDown:
			o.highlight = (o.highlight + 1) % n
		case o.highlight < 0:
			o.highlight = n - 1
		default:
			o.highlight = (o.highlight - 1 + n) % n
		}
	case KeyEscape:
		o.visible = false
		o.highlight = -1
	case KeyEnter:
		idx := o.highlight
		o.mu.Unlock()
		if idx < 0 {
			return nil, nil
		}
		sel, err := o.Select(ctx, idx, confirm)
		if err != nil {
			return nil, err
		}
		return &sel, nil
	default:
		o.mu.Unlock()
		return nil, fmt.Errorf("unsupported key %q", key)
	}
	o.mu.Unlock()
	return nil, nil
}

// Select resolves the prediction at index, places it on the map and fits the
// viewport to the place's viewport, or to the marker when there is none.
func (o *Overlay) Select(ctx context.Context, index int, confirm shape.ConfirmFunc) (Selection, error) {
	o.mu.Lock()
	if index < 0 || index >= len(o.results) {
		o.mu.Unlock()
		return Selection{}, fmt.Errorf("%w: %d", ErrNoSuchPrediction, index)
	}
	pred := o.results[index]
	o.mu.Unlock()

	place, err := o.provider.Resolve(ctx, pred.PlaceID)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			o.log.Warn("place details failed", "status", se.Status, "place", pred.PlaceID)
		}
		return Selection{}, err
	}
	if place.Address == "" {
		place.Address = pred.Description
	}

	h, err := o.target.PlaceFromSearch(place.Location, pred.Description, confirm)
	if err != nil {
		return Selection{}, err
	}

	a := o.target.Adapter()
	if place.Viewport != nil {
		a.FitToBound(*place.Viewport, o.maxZoom)
	} else {
		a.FitToGeometry(h, o.maxZoom)
	}

	o.mu.Lock()
	o.text = pred.Description
	o.visible = false
	o.highlight = -1
	o.mu.Unlock()

	return Selection{Handle: h, Place: place}, nil
}

// Toggle shows or hides the whole search panel and returns the new state.
func (o *Overlay) Toggle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = !o.open
	if !o.open {
		o.visible = false
	}
	return o.open
}

// Focus re-shows existing results when the input regains focus.
func (o *Overlay) Focus() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.results) > 0 {
		o.visible = true
	}
}

// View returns the current overlay state with laid-out items.
func (o *Overlay) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := View{
		Text:      o.text,
		Open:      o.open,
		Visible:   o.visible,
		Highlight: o.highlight,
		Items:     make([]Item, len(o.results)),
	}
	for i, p := range o.results {
		v.Items[i] = Layout(i, p)
		v.Items[i].Highlighted = i == o.highlight
	}
	return v
}
