package search

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
)

// Prediction is one ranked candidate for a query.
type Prediction struct {
	Description string  `json:"description"`
	PlaceID     string  `json:"placeId"`
	Terms       []Term  `json:"terms,omitempty"`
	Matches     []Match `json:"matches,omitempty"`
}

// Term is one comma-separated part of a description. Offsets and lengths
// count characters, not bytes.
type Term struct {
	Value  string `json:"value"`
	Offset int    `json:"offset"`
}

// Match is a span of the description matched by the query.
type Match struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Place is a resolved prediction.
type Place struct {
	Location orb.Point  `json:"location"`
	Viewport *orb.Bound `json:"viewport,omitempty"`
	Address  string     `json:"address,omitempty"`
}

// Provider is a place-autocomplete service.
type Provider interface {
	Name() string
	Predict(ctx context.Context, text string) ([]Prediction, error)
	Resolve(ctx context.Context, placeID string) (Place, error)
}

// ServiceError reports a non-OK status from a provider.
type ServiceError struct {
	Provider string
	Status   string
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %s: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: status %s", e.Provider, e.Status)
}

func (e *ServiceError) Unwrap() error { return e.Err }
