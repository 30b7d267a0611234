// Package emitter defines the output interface for reaper invocations.
package emitter

import (
	"context"
	"errors"

	"github.com/yairfalse/reaper/pkg/instance"
)

// Emitter outputs invocation results to a backend.
type Emitter interface {
	// Emit records one invocation.
	Emit(ctx context.Context, inv instance.Invocation) error

	// Close cleans up resources.
	Close() error
}

// MultiEmitter fans out to multiple emitters. A failing sink does not keep
// the invocation from reaching the others.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends. Nil
// emitters are dropped.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit sends inv to every emitter and joins their errors.
func (m *MultiEmitter) Emit(ctx context.Context, inv instance.Invocation) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every emitter and joins their errors.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
