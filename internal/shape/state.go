package shape

import (
	"errors"

	"github.com/joeblew999/geofield/internal/geocodec"
)

// State is the controller's lifecycle state.
type State string

const (
	StateEmpty   State = "empty"
	StatePlacing State = "placing"
	StateActive  State = "active"
)

// ToolState names the one tool group the editor may see.
type ToolState string

const (
	ToolDraw    ToolState = "draw"
	ToolDrawing ToolState = "drawing"
	ToolDelete  ToolState = "delete"
)

// Tools is the visibility of the three tool groups. Exactly one is true.
type Tools struct {
	Draw    bool `json:"draw"`
	Drawing bool `json:"drawing"`
	Delete  bool `json:"delete"`
}

func toolsFor(s State) Tools {
	return Tools{
		Draw:    s == StateEmpty,
		Drawing: s == StatePlacing,
		Delete:  s == StateActive,
	}
}

func toolStateFor(s State) ToolState {
	switch s {
	case StatePlacing:
		return ToolDrawing
	case StateActive:
		return ToolDelete
	}
	return ToolDraw
}

var (
	// ErrOverwriteDeclined is returned when the editor refuses to replace the
	// existing shape with a search result.
	ErrOverwriteDeclined = errors.New("overwrite declined")

	// ErrInvalidTransition reports an operation the current state does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoOverlay reports a commit for an overlay the map does not know.
	ErrNoOverlay = errors.New("overlay not on map")

	ErrClosed = errors.New("controller closed")
)

// ConfirmFunc asks the editor whether the existing shape may be replaced.
type ConfirmFunc func() bool

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State   State                   `json:"state"`
	Tool    ToolState               `json:"tool"`
	Tools   Tools                   `json:"tools"`
	Kind    geocodec.Kind           `json:"kind"`
	Armed   geocodec.Kind           `json:"armed,omitempty"`
	Value   geocodec.PersistedValue `json:"value"`
	Address string                  `json:"address,omitempty"`
}
