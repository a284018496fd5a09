// Package field bootstraps one map field instance: map, search box and shape
// controller, restored from the host's prior value.
package field

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/shape"
)

// Defaults applied when the host leaves a setting empty.
const (
	DefaultCenterLat = 51.508742
	DefaultCenterLng = -2.109375
	DefaultZoom      = 2
	DefaultMaxZoom   = 14
)

// ErrRequired is returned by ValidateValue for an empty required field.
var ErrRequired = errors.New("a shape is required")

// Config is the host-supplied configuration of one field.
type Config struct {
	Name      string            `json:"name" mapstructure:"name" doc:"Field name" example:"location"`
	Label     string            `json:"label,omitempty" mapstructure:"label" doc:"Field label" example:"Location"`
	CenterLat float64           `json:"centerLat" mapstructure:"center_lat" minimum:"-90" maximum:"90" doc:"Initial map centre latitude"`
	CenterLng float64           `json:"centerLng" mapstructure:"center_lng" minimum:"-180" maximum:"180" doc:"Initial map centre longitude"`
	Zoom      *int              `json:"zoom,omitempty" mapstructure:"zoom" minimum:"0" doc:"Initial zoom, 0 shows the whole world"`
	MaxZoom   int               `json:"maxZoom" mapstructure:"max_zoom" minimum:"0" doc:"Maximum zoom, also caps viewport fits"`
	Required  bool              `json:"required" mapstructure:"required" doc:"Whether a shape must be drawn"`
	Backend   string            `json:"backend" mapstructure:"backend" enum:"vector,hosted" doc:"Map backend"`
	Encoding  string            `json:"encoding" mapstructure:"encoding" enum:"geojson,legacy" doc:"Persisted encoding"`
	Debounce  time.Duration     `json:"debounce" mapstructure:"debounce" doc:"Debounce window for geometry writes"`
	Style     *mapadapter.Style `json:"style,omitempty" mapstructure:"style" doc:"Overlay style"`
}

// WithDefaults fills every unset setting. A 0,0 centre counts as unset.
func (c Config) WithDefaults() Config {
	if c.CenterLat == 0 && c.CenterLng == 0 {
		c.CenterLat, c.CenterLng = DefaultCenterLat, DefaultCenterLng
	}
	if c.Zoom == nil {
		z := DefaultZoom
		c.Zoom = &z
	}
	if c.MaxZoom == 0 {
		c.MaxZoom = DefaultMaxZoom
	}
	if c.Backend == "" {
		c.Backend = string(mapadapter.BackendVector)
	}
	if c.Encoding == "" {
		c.Encoding = string(geocodec.EncodingGeoJSON)
	}
	if c.Debounce == 0 {
		c.Debounce = shape.DefaultDebounce
	}
	if c.Style == nil {
		s := mapadapter.DefaultStyle()
		c.Style = &s
	}
	return c
}

// InitialZoom returns the configured zoom, or DefaultZoom when unset.
func (c Config) InitialZoom() int {
	if c.Zoom == nil {
		return DefaultZoom
	}
	return *c.Zoom
}

// Validate reports every problem with a defaulted config.
func (c Config) Validate() []string {
	var errs []string
	if c.Name == "" {
		errs = append(errs, "name is required")
	}
	if c.CenterLat < -90 || c.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("center_lat must be -90..90, got %g", c.CenterLat))
	}
	if c.CenterLng < -180 || c.CenterLng > 180 {
		errs = append(errs, fmt.Sprintf("center_lng must be -180..180, got %g", c.CenterLng))
	}
	if c.MaxZoom < 1 || c.MaxZoom > 22 {
		errs = append(errs, fmt.Sprintf("max_zoom must be 1-22, got %d", c.MaxZoom))
	}
	if z := c.InitialZoom(); z < 0 || z > c.MaxZoom {
		errs = append(errs, fmt.Sprintf("zoom must be 0-%d, got %d", c.MaxZoom, z))
	}
	if _, err := mapadapter.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err.Error())
	}
	switch geocodec.Encoding(c.Encoding) {
	case geocodec.EncodingGeoJSON, geocodec.EncodingLegacy:
	default:
		errs = append(errs, fmt.Sprintf("unknown encoding %q", c.Encoding))
	}
	if c.Debounce < shape.MinDebounce || c.Debounce > shape.MaxDebounce {
		errs = append(errs, fmt.Sprintf("debounce must be %s-%s, got %s", shape.MinDebounce, shape.MaxDebounce, c.Debounce))
	}
	return errs
}

// Center returns the initial centre as an orb point.
func (c Config) Center() orb.Point {
	return orb.Point{c.CenterLng, c.CenterLat}
}

// Library names the client-side map library the backend loads.
func (c Config) Library() string {
	return "map-" + c.Backend
}

// ValidateValue is the host's submission hook: a required field must carry
// both hidden values.
func ValidateValue(c Config, v geocodec.PersistedValue) error {
	if c.Required && (v.GeoJSON == "" || v.Type == "") {
		return fmt.Errorf("%s: %w", c.Name, ErrRequired)
	}
	return nil
}
