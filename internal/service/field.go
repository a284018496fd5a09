package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/geocodec"
)

// FieldService mounts instances of catalogue fields and tracks them until
// they are deleted.
type FieldService struct {
	catalogue map[string]field.Config
	names     []string
	boot      *field.Bootstrapper
	bus       *EventBus
	log       *slog.Logger

	mu        sync.RWMutex
	instances map[string]*mounted
	seq       int
}

type mounted struct {
	inst   *field.Instance
	cancel context.CancelFunc
}

// NewFieldService creates a field service over the catalogue. It installs an
// OnPersist hook on boot that publishes every hidden field write to bus,
// chaining any hook already set.
func NewFieldService(catalogue []field.Config, boot *field.Bootstrapper, bus *EventBus) *FieldService {
	if bus == nil {
		bus = DefaultBus
	}
	s := &FieldService{
		catalogue: make(map[string]field.Config, len(catalogue)),
		boot:      boot,
		bus:       bus,
		log:       slog.Default(),
		instances: make(map[string]*mounted),
	}
	if boot.Logger != nil {
		s.log = boot.Logger
	}
	for _, cfg := range catalogue {
		cfg = cfg.WithDefaults()
		s.catalogue[cfg.Name] = cfg
		s.names = append(s.names, cfg.Name)
	}

	next := boot.OnPersist
	boot.OnPersist = func(id string, v geocodec.PersistedValue) {
		if next != nil {
			next(id, v)
		}
		s.log.Debug("field persisted", "instance", id, "type", v.Type)
		s.bus.Publish(Event{Resource: ResourceFields, Action: ActionPersisted, ID: id})
	}
	return s
}

// Catalogue returns the configured fields in declaration order.
func (s *FieldService) Catalogue() []field.Config {
	out := make([]field.Config, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.catalogue[name])
	}
	return out
}

// Field returns the catalogue entry named name.
func (s *FieldService) Field(name string) (field.Config, bool) {
	cfg, ok := s.catalogue[name]
	return cfg, ok
}

// Mount creates an instance of the catalogue field name seeded with prior,
// the host's stored value. The instance becomes ready once its map library
// is marked loaded; until then it reports field.StatusPending.
func (s *FieldService) Mount(name string, prior json.RawMessage) (*field.Instance, error) {
	cfg, ok := s.catalogue[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("%s_%d", generateID(name), s.seq)
	s.mu.Unlock()

	inst, err := s.boot.Prepare(id, cfg, prior)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.instances[id] = &mounted{inst: inst, cancel: cancel}
	s.mu.Unlock()

	s.bus.Publish(Event{Resource: ResourceFields, Action: ActionMounted, ID: id})
	go s.await(ctx, inst)
	return inst, nil
}

func (s *FieldService) await(ctx context.Context, inst *field.Instance) {
	if err := inst.Await(ctx); err != nil {
		if ctx.Err() == nil {
			s.bus.Publish(Event{Resource: ResourceFields, Action: ActionFailed, ID: inst.ID})
		}
		return
	}
	s.bus.Publish(Event{Resource: ResourceFields, Action: ActionReady, ID: inst.ID})
}

// Get returns a mounted instance by ID.
func (s *FieldService) Get(id string) (*field.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.instances[id]
	if !ok {
		return nil, false
	}
	return m.inst, true
}

// List returns the mounted instances ordered by ID.
func (s *FieldService) List() []*field.Instance {
	s.mu.RLock()
	out := make([]*field.Instance, 0, len(s.instances))
	for _, m := range s.instances {
		out = append(out, m.inst)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LibraryReady records that the browser finished loading the map library
// used by instance id. Every instance waiting on that library proceeds.
func (s *FieldService) LibraryReady(id string) (*field.Instance, error) {
	inst, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstanceNotFound, id)
	}
	s.boot.Libraries().MarkReady(inst.Config.Library())
	return inst, nil
}

// Delete unmounts an instance, flushing any pending write first.
func (s *FieldService) Delete(id string) error {
	s.mu.Lock()
	m, ok := s.instances[id]
	delete(s.instances, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrInstanceNotFound, id)
	}
	m.cancel()
	m.inst.Close()
	s.bus.Publish(Event{Resource: ResourceFields, Action: ActionDeleted, ID: id})
	return nil
}

// Close unmounts every instance.
func (s *FieldService) Close() {
	for _, inst := range s.List() {
		_ = s.Delete(inst.ID)
	}
}

// generateID creates an ID safe for element IDs and Datastar signal names.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "field"
	}
	return result.String()
}
