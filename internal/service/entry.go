package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/geocodec"
)

// EntryStore persists submitted entries.
type EntryStore interface {
	Put(ctx context.Context, e Entry) error
	// Get returns ErrEntryNotFound for an unknown ID.
	Get(ctx context.Context, id string) (Entry, error)
	// List returns a page of entries, newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]Entry, int, error)
	Close() error
}

// EntryService validates host form submissions and stores them.
type EntryService struct {
	fields *FieldService
	store  EntryStore
	bus    *EventBus
	now    func() time.Time
}

// NewEntryService creates an entry service. Field names are resolved against
// the catalogue of fields.
func NewEntryService(fields *FieldService, store EntryStore, bus *EventBus) *EntryService {
	if bus == nil {
		bus = DefaultBus
	}
	return &EntryService{fields: fields, store: store, bus: bus, now: time.Now}
}

// Submit validates v for the catalogue field name and stores it. A legacy
// {lat,lng} value is migrated to the field's encoding first. Every
// validation failure wraps ErrInvalidEntry.
func (s *EntryService) Submit(ctx context.Context, name string, v geocodec.HostValue) (Entry, error) {
	cfg, ok := s.fields.Field(name)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	v, err := geocodec.Migrate(v, geocodec.Encoding(cfg.Encoding))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	pv := geocodec.PersistedValue{GeoJSON: v.GeoJSON, Type: v.Type}
	if err := CheckValue(cfg, pv); err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:        uuid.NewString(),
		Field:     name,
		GeoJSON:   pv.GeoJSON,
		Type:      pv.Type,
		Address:   v.Address,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Put(ctx, e); err != nil {
		return Entry{}, err
	}
	s.bus.Publish(Event{Resource: ResourceEntries, Action: ActionCreated, ID: e.ID})
	return e, nil
}

// CheckValue applies the field's validation hook: a required field must hold
// a shape, both hidden strings are set together, and a set value decodes.
func CheckValue(cfg field.Config, v geocodec.PersistedValue) error {
	if err := field.ValidateValue(cfg, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if (v.GeoJSON == "") != (v.Type == "") {
		return fmt.Errorf("%w: geoJSON and type must be set together", ErrInvalidEntry)
	}
	if v.IsEmpty() {
		return nil
	}
	if _, err := geocodec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// Get returns an entry by ID.
func (s *EntryService) Get(ctx context.Context, id string) (Entry, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of entries and the total count.
func (s *EntryService) List(ctx context.Context, offset, limit int) ([]Entry, int, error) {
	return s.store.List(ctx, offset, limit)
}

// Close closes the underlying store.
func (s *EntryService) Close() error {
	return s.store.Close()
}
