// Package service holds the field instance registry and the entry store
// behind the geofield API.
package service

import (
	"errors"
	"time"
)

var (
	// ErrUnknownField is returned for a field name missing from the catalogue.
	ErrUnknownField = errors.New("unknown field")
	// ErrInstanceNotFound is returned for an unknown instance ID.
	ErrInstanceNotFound = errors.New("field instance not found")
	// ErrEntryNotFound is returned for an unknown entry ID.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidEntry wraps every reason a submission is rejected.
	ErrInvalidEntry = errors.New("invalid entry")
)

// Entry is one host form submission: the two hidden field strings plus the
// search address.
type Entry struct {
	ID        string    `json:"id" doc:"Entry ID" example:"9f0c1c5e-5b9e-4c1e-9d0b-3f7a2f1c8e11"`
	Field     string    `json:"field" doc:"Catalogue field name" example:"location"`
	GeoJSON   string    `json:"geoJSON" doc:"Serialized shape envelope"`
	Type      string    `json:"type" doc:"Shape type" enum:"marker,polygon,"`
	Address   string    `json:"address,omitempty" doc:"Address chosen in the search box"`
	CreatedAt time.Time `json:"createdAt" doc:"Submission time"`
}
