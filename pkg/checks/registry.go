/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/chainguard-dev/clog"
)

// ErrInvalidBuild is returned when resolving for a zero Build or a nil run or job.
var ErrInvalidBuild = errors.New("invalid build: neither run nor job is set")

// Factory creates publishers for one kind of backend.
//
// A factory that does not apply to a build returns (nil, false, nil). An error
// is reserved for collaborator failures.
type Factory interface {
	// Name identifies the factory in the Registry.
	Name() string

	PublisherForRun(ctx context.Context, run Run, listener Listener) (Publisher, bool, error)
	PublisherForJob(ctx context.Context, job Job, listener Listener) (Publisher, bool, error)
}

type registration struct {
	factory  Factory
	priority int
	seq      uint64
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithPriority sets the priority of a factory. Factories with a higher
// priority are asked first; the default is 0.
func WithPriority(p int) RegisterOption {
	return func(r *registration) {
		r.priority = p
	}
}

// Registry holds the registered factories.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
	seq     uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a factory. Registering a name again replaces the earlier
// factory and moves it to the end of its priority.
func (r *Registry) Register(f Factory, opts ...RegisterOption) {
	reg := registration{factory: f}
	for _, opt := range opts {
		opt(&reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = slices.DeleteFunc(r.entries, func(e registration) bool {
		return e.factory.Name() == f.Name()
	})
	r.seq++
	reg.seq = r.seq
	r.entries = append(r.entries, reg)
}

// Unregister removes the factory with the given name and reports whether
// one was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = slices.DeleteFunc(r.entries, func(e registration) bool {
		return e.factory.Name() == name
	})
	return len(r.entries) != n
}

// Factories returns the registered factories in the order they are asked:
// by descending priority, then by registration order.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	entries := slices.Clone(r.entries)
	r.mu.RUnlock()

	slices.SortStableFunc(entries, func(a, b registration) int {
		if c := cmp.Compare(b.priority, a.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Factory, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.factory)
	}
	return out
}

// Resolve returns the publisher of the first factory accepting the build,
// or NullPublisher when none does.
//
// The returned Publisher is never nil. If a factory fails, resolution stops
// and the error is returned together with NullPublisher.
func (r *Registry) Resolve(ctx context.Context, b Build, listener Listener) (Publisher, error) {
	run, isRun := b.Run()
	job := b.Job()
	if b.IsZero() || (!isRun && job == nil) {
		return NullPublisher, ErrInvalidBuild
	}

	log := clog.FromContext(ctx).With("build", b.String())
	for _, f := range r.Factories() {
		var (
			pub Publisher
			ok  bool
			err error
		)
		if isRun {
			pub, ok, err = f.PublisherForRun(ctx, run, listener)
		} else {
			pub, ok, err = f.PublisherForJob(ctx, job, listener)
		}
		if err != nil {
			return NullPublisher, fmt.Errorf("checks publisher factory %q: %w", f.Name(), err)
		}
		if ok && pub != nil {
			log.With("factory", f.Name()).Debug("Resolved checks publisher")
			return pub, nil
		}
		log.With("factory", f.Name()).Debug("Checks publisher factory declined")
	}

	log.Debug("No checks publisher applies, using null publisher")
	return NullPublisher, nil
}

// ForRun resolves the publisher of a run.
func (r *Registry) ForRun(ctx context.Context, run Run, listener Listener) (Publisher, error) {
	if run == nil {
		return NullPublisher, ErrInvalidBuild
	}
	return r.Resolve(ctx, RunBuild(run), listener)
}

// ForJob resolves the publisher of a job.
func (r *Registry) ForJob(ctx context.Context, job Job, listener Listener) (Publisher, error) {
	if job == nil {
		return NullPublisher, ErrInvalidBuild
	}
	return r.Resolve(ctx, JobBuild(job), listener)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide Registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a factory to the default Registry.
func Register(f Factory, opts ...RegisterOption) { defaultRegistry.Register(f, opts...) }

// Unregister removes a factory from the default Registry.
func Unregister(name string) bool { return defaultRegistry.Unregister(name) }

// Resolve resolves a publisher using the default Registry.
func Resolve(ctx context.Context, b Build, listener Listener) (Publisher, error) {
	return defaultRegistry.Resolve(ctx, b, listener)
}

// PublisherForRun resolves the publisher of a run using the default Registry.
func PublisherForRun(ctx context.Context, run Run, listener Listener) (Publisher, error) {
	return defaultRegistry.ForRun(ctx, run, listener)
}

// PublisherForJob resolves the publisher of a job using the default Registry.
func PublisherForJob(ctx context.Context, job Job, listener Listener) (Publisher, error) {
	return defaultRegistry.ForJob(ctx, job, listener)
}
