// Package loader tracks the one-time loading of client-side map libraries
// shared by every field instance in the process.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the load state of one library.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
)

// DefaultTimeout bounds how long an instance waits for a library.
const DefaultTimeout = 2000 * time.Millisecond

// ErrBootstrapTimeout is returned when a library is not ready in time.
var ErrBootstrapTimeout = errors.New("map library did not load in time")

type library struct {
	status Status
	ready  chan struct{}
}

// Register is a load-status register with subscribers. The zero value is not
// usable; use NewRegister.
type Register struct {
	mu   sync.Mutex
	libs map[string]*library
}

// NewRegister creates an empty register.
func NewRegister() *Register {
	return &Register{libs: make(map[string]*library)}
}

// DefaultRegister is the process-wide register.
var DefaultRegister = NewRegister()

func (r *Register) lib(name string) *library {
	l, ok := r.libs[name]
	if !ok {
		l = &library{status: StatusUnloaded, ready: make(chan struct{})}
		r.libs[name] = l
	}
	return l
}

// Begin records that an instance needs name. It reports true only to the
// first caller, which is responsible for loading the library.
func (r *Register) Begin(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lib(name)
	if l.status != StatusUnloaded {
		return false
	}
	l.status = StatusLoading
	return true
}

// MarkReady flips name to ready and releases every waiter. Repeated calls
// are no-ops.
func (r *Register) MarkReady(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.lib(name)
	if l.status == StatusReady {
		return
	}
	l.status = StatusReady
	close(l.ready)
}

// Status returns the load state of name.
func (r *Register) Status(name string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.libs[name]; ok {
		return l.status
	}
	return StatusUnloaded
}

// Ready returns a channel closed once name is ready.
func (r *Register) Ready(name string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lib(name).ready
}

// Wait blocks until name is ready, timeout elapses or ctx is done. A
// non-positive timeout means DefaultTimeout.
func (r *Register) Wait(ctx context.Context, name string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ready := r.Ready(name)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", ErrBootstrapTimeout, name, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the status of every library seen so far.
func (r *Register) Snapshot() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Status, len(r.libs))
	for name, l := range r.libs {
		out[name] = l.status
	}
	return out
}

// Names returns the known library names in order.
func (r *Register) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.libs))
	for name := range r.libs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
