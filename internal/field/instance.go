package field

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/loader"
	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/search"
	"github.com/joeblew999/geofield/internal/shape"
)

// Status is the bootstrap status of an instance.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// ErrNotReady is returned when an instance is used before its library loaded.
var ErrNotReady = errors.New("field is not ready")

// ProviderFunc picks the place provider for a backend. A nil result disables
// search for the field.
type ProviderFunc func(backend mapadapter.Backend) search.Provider

// Bootstrapper creates field instances.
type Bootstrapper struct {
	Register  *loader.Register
	Timeout   time.Duration
	Providers ProviderFunc
	// OnPersist is called with the instance id after every hidden field write.
	OnPersist func(id string, v geocodec.PersistedValue)
	Logger    *slog.Logger
}

func (b *Bootstrapper) register() *loader.Register {
	if b.Register == nil {
		return loader.DefaultRegister
	}
	return b.Register
}

// Libraries returns the load-status register the bootstrapper waits on.
func (b *Bootstrapper) Libraries() *loader.Register { return b.register() }

func (b *Bootstrapper) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Instance is one mounted field.
type Instance struct {
	ID     string
	Config Config

	// MustLoad is true for the first instance that needs the map library;
	// the page serving it includes the library script.
	MustLoad bool

	adapter    mapadapter.Adapter
	prior      geocodec.Shape
	priorValue geocodec.PersistedValue
	address    string
	boot       *Bootstrapper
	log        *slog.Logger
	readyCh    chan struct{}

	mu         sync.RWMutex
	status     Status
	err        error
	controller *shape.Controller
	overlay    *search.Overlay
}

// Prepare validates cfg, decodes the prior value and opens the map. The
// instance is not usable until Await returns nil.
func (b *Bootstrapper) Prepare(id string, cfg Config, prior json.RawMessage) (*Instance, error) {
	cfg = cfg.WithDefaults()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("field %q: %s", cfg.Name, strings.Join(errs, "; "))
	}

	log := b.logger().With("field", cfg.Name, "instance", id)

	s, address, err := decodePrior(prior)
	if err != nil {
		log.Warn("ignoring invalid persisted value", "error", err)
	}

	a, err := mapadapter.Open(mapadapter.Backend(cfg.Backend), "map-"+id, mapadapter.MapOptions{
		Center:  cfg.Center(),
		Zoom:    cfg.InitialZoom(),
		MaxZoom: cfg.MaxZoom,
	})
	if err != nil {
		return nil, err
	}

	return &Instance{
		ID:         id,
		Config:     cfg,
		MustLoad:   b.register().Begin(cfg.Library()),
		adapter:    a,
		prior:      s,
		priorValue: hostPrior(prior, geocodec.Encoding(cfg.Encoding)),
		address:    address,
		boot:       b,
		log:        log,
		readyCh:    make(chan struct{}),
		status:     StatusPending,
	}, nil
}

// hostPrior is the host's value as the hidden fields hold it before the
// controller takes over: legacy values migrated, half-set values dropped.
func hostPrior(prior json.RawMessage, enc geocodec.Encoding) geocodec.PersistedValue {
	var hv geocodec.HostValue
	if len(prior) == 0 || json.Unmarshal(prior, &hv) != nil {
		return geocodec.PersistedValue{}
	}
	hv, _ = geocodec.Migrate(hv, enc)
	if hv.GeoJSON == "" || hv.Type == "" {
		return geocodec.PersistedValue{}
	}
	return geocodec.PersistedValue{GeoJSON: hv.GeoJSON, Type: hv.Type}
}

// decodePrior migrates a legacy value and decodes it. An invalid value
// yields no shape and the error for logging.
func decodePrior(prior json.RawMessage) (geocodec.Shape, string, error) {
	var hv geocodec.HostValue
	_ = json.Unmarshal(prior, &hv)
	s, err := geocodec.FromPersisted(prior)
	if err != nil {
		return geocodec.Shape{}, hv.Address, err
	}
	return s, hv.Address, nil
}

// Await waits for the map library, then wires the controller and search box
// and restores the prior shape. A timeout is terminal for the instance.
func (inst *Instance) Await(ctx context.Context) error {
	inst.mu.RLock()
	if inst.status != StatusPending {
		err := inst.err
		inst.mu.RUnlock()
		return err
	}
	inst.mu.RUnlock()

	start := time.Now()
	if err := inst.boot.register().Wait(ctx, inst.Config.Library(), inst.boot.Timeout); err != nil {
		if errors.Is(err, loader.ErrBootstrapTimeout) {
			inst.log.Error("map library did not load", "library", inst.Config.Library(), "waited", time.Since(start))
			inst.fail(err)
		}
		return err
	}
	return inst.wire()
}

func (inst *Instance) wire() error {
	c, err := shape.New(inst.adapter, shape.Options{
		Encoding: geocodec.Encoding(inst.Config.Encoding),
		Style:    *inst.Config.Style,
		Debounce: inst.Config.Debounce,
		MaxZoom:  inst.Config.MaxZoom,
		OnPersist: func(v geocodec.PersistedValue) {
			if inst.boot.OnPersist != nil {
				inst.boot.OnPersist(inst.ID, v)
			}
		},
		Logger: inst.log,
	})
	if err != nil {
		inst.fail(err)
		return err
	}

	if err := c.Restore(inst.prior, inst.address); err != nil {
		inst.log.Warn("restore prior shape", "error", err)
	} else if inst.prior.IsZero() && inst.address != "" {
		c.SetAddress(inst.address)
	}

	var overlay *search.Overlay
	if inst.boot.Providers != nil {
		if p := inst.boot.Providers(mapadapter.Backend(inst.Config.Backend)); p != nil {
			overlay = search.New(p, c, search.Options{MaxZoom: inst.Config.MaxZoom, Logger: inst.log})
		}
	}

	inst.mu.Lock()
	if inst.status != StatusPending {
		err := inst.err
		inst.mu.Unlock()
		c.Close()
		return err
	}
	inst.controller = c
	inst.overlay = overlay
	inst.status = StatusReady
	close(inst.readyCh)
	inst.mu.Unlock()
	return nil
}

func (inst *Instance) fail(err error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.status != StatusPending {
		return
	}
	inst.status, inst.err = StatusFailed, err
	close(inst.readyCh)
}

// Bootstrap prepares an instance and waits for it.
func (b *Bootstrapper) Bootstrap(ctx context.Context, id string, cfg Config, prior json.RawMessage) (*Instance, error) {
	inst, err := b.Prepare(id, cfg, prior)
	if err != nil {
		return nil, err
	}
	if err := inst.Await(ctx); err != nil {
		return inst, err
	}
	return inst, nil
}

// Done is closed once the instance is ready or failed.
func (inst *Instance) Done() <-chan struct{} { return inst.readyCh }

// Status returns the bootstrap status and, when failed, the reason.
func (inst *Instance) Status() (Status, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return inst.status, inst.err
}

// Adapter returns the instance's map.
func (inst *Instance) Adapter() mapadapter.Adapter { return inst.adapter }

// Controller returns the shape controller, or ErrNotReady.
func (inst *Instance) Controller() (*shape.Controller, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	if inst.controller == nil {
		return nil, inst.notReady()
	}
	return inst.controller, nil
}

// Search returns the search overlay. It is nil, with no error, when the field
// has no place provider.
func (inst *Instance) Search() (*search.Overlay, error) {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	if inst.controller == nil {
		return nil, inst.notReady()
	}
	return inst.overlay, nil
}

func (inst *Instance) notReady() error {
	if inst.err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, inst.err)
	}
	return ErrNotReady
}

// Value returns the hidden field values and the address. Until the
// controller is wired, and after a failed bootstrap, that is the host's
// prior value.
func (inst *Instance) Value() (geocodec.PersistedValue, string) {
	inst.mu.RLock()
	c := inst.controller
	inst.mu.RUnlock()
	if c == nil {
		return inst.priorValue, inst.address
	}
	snap := c.Snapshot()
	return snap.Value, snap.Address
}

// Close flushes pending writes and detaches the controller.
func (inst *Instance) Close() {
	inst.fail(errors.New("field closed"))

	inst.mu.RLock()
	c := inst.controller
	inst.mu.RUnlock()
	if c != nil {
		c.Close()
	}
}
