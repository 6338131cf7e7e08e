// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"sync"

	"github.com/google/uuid"
)

// Cancelable is implemented by [Handle] and [TrackingHandle] of any item type.
type Cancelable interface {
	Cancel(cause error)
}

// Registry tracks the handles of jobs that are currently producing so that
// they can all be cancelled at once, typically when the session that owns them
// is torn down. The zero value is ready to use.
type Registry struct {
	mu      sync.Mutex
	handles map[uuid.UUID]Cancelable
}

// Add registers h and returns the id under which it was registered.
func (r *Registry) Add(h Cancelable) uuid.UUID {
	if h == nil {
		panic("handle must be non-nil")
	}
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles == nil {
		r.handles = make(map[uuid.UUID]Cancelable)
	}
	r.handles[id] = h
	return id
}

// Remove stops tracking the handle registered under id and reports whether
// there was one. The handle itself is left alone.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	return true
}

// CancelAll empties the registry and cancels every handle that was in it, with
// an error wrapping [ErrCancelled]. Returns the number of handles cancelled.
//
// The registry is emptied in a single step, so a handle added concurrently is
// either cancelled by this call or remains registered for the next one.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	// Cancel outside the lock since termination observers may call back into
	// the registry.
	for _, h := range handles {
		h.Cancel(ErrCancelled)
	}
	return len(handles)
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// WithHold registers h for the duration of body and deregisters it on every
// exit path, including a panic. It never cancels h itself.
func (r *Registry) WithHold(h Cancelable, body func() error) error {
	id := r.Add(h)
	defer r.Remove(id)
	return body()
}
