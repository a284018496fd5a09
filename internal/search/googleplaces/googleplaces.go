// Package googleplaces is the hosted place-autocomplete provider.
package googleplaces

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"googlemaps.github.io/maps"

	"github.com/joeblew999/geofield/internal/search"
)

const name = "google"

// Config configures the provider.
type Config struct {
	APIKey string

	// BaseURL overrides the API host, for tests and proxies.
	BaseURL string

	// Region biases predictions, e.g. "uk".
	Region string
}

// Provider wraps the Places autocomplete and details calls.
type Provider struct {
	client *maps.Client
	region string
}

// New creates a provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("googleplaces: api key is required")
	}
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("googleplaces: %w", err)
	}
	return &Provider{client: client, region: cfg.Region}, nil
}

func (p *Provider) Name() string { return name }

// Predict returns autocomplete predictions. ZERO_RESULTS is an empty list.
func (p *Provider) Predict(ctx context.Context, text string) ([]search.Prediction, error) {
	req := &maps.PlaceAutocompleteRequest{Input: text}
	if p.region != "" {
		req.Components = map[maps.Component][]string{maps.ComponentCountry: {p.region}}
	}
	resp, err := p.client.PlaceAutocomplete(ctx, req)
	if err != nil {
		if statusOf(err) == "ZERO_RESULTS" {
			return []search.Prediction{}, nil
		}
		return nil, serviceError(err)
	}

	preds := make([]search.Prediction, len(resp.Predictions))
	for i, ap := range resp.Predictions {
		pred := search.Prediction{Description: ap.Description, PlaceID: ap.PlaceID}
		for _, t := range ap.Terms {
			pred.Terms = append(pred.Terms, search.Term{Value: t.Value, Offset: t.Offset})
		}
		for _, m := range ap.MatchedSubstrings {
			pred.Matches = append(pred.Matches, search.Match{Offset: m.Offset, Length: m.Length})
		}
		preds[i] = pred
	}
	return preds, nil
}

// Resolve fetches the location and viewport of a place.
func (p *Provider) Resolve(ctx context.Context, placeID string) (search.Place, error) {
	res, err := p.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskGeometry,
			maps.PlaceDetailsFieldMaskFormattedAddress,
		},
	})
	if err != nil {
		return search.Place{}, serviceError(err)
	}

	loc := res.Geometry.Location
	place := search.Place{
		Location: orb.Point{loc.Lng, loc.Lat},
		Address:  res.FormattedAddress,
	}
	vp := res.Geometry.Viewport
	if vp.NorthEast != (maps.LatLng{}) || vp.SouthWest != (maps.LatLng{}) {
		b := orb.Bound{
			Min: orb.Point{vp.SouthWest.Lng, vp.SouthWest.Lat},
			Max: orb.Point{vp.NorthEast.Lng, vp.NorthEast.Lat},
		}
		place.Viewport = &b
	}
	return place, nil
}

// statusOf extracts the API status from the client's "maps: STATUS - msg"
// errors.
func statusOf(err error) string {
	msg, ok := strings.CutPrefix(err.Error(), "maps: ")
	if !ok {
		return ""
	}
	status, _, _ := strings.Cut(msg, " - ")
	return strings.TrimSpace(status)
}

func serviceError(err error) error {
	status := statusOf(err)
	if status == "" {
		status = "TRANSPORT"
	}
	return &search.ServiceError{Provider: name, Status: status, Err: err}
}
