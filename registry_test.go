// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/petenewcomb/infq-go"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistryCancelAll(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry

	var handles []*infq.TrackingHandle[string]
	var streams []*infq.Stream[string]
	for range 3 {
		s, h := infq.NewStream[string]()
		th := infq.Track(h)
		r.Add(th)
		handles = append(handles, th)
		streams = append(streams, s)
	}
	chk.Equal(3, r.Len())

	chk.Equal(3, r.CancelAll())
	chk.Zero(r.Len())
	for i, th := range handles {
		chk.True(th.IsCancelled())
		_, err := streams[i].Next(t.Context())
		chk.ErrorIs(err, infq.ErrCancelled)
	}

	chk.Zero(r.CancelAll())
}

func TestRegistryRemoveDoesNotCancel(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry
	_, h := infq.NewStream[int]()
	th := infq.Track(h)

	id := r.Add(th)
	chk.True(r.Remove(id))
	chk.False(r.Remove(id))
	chk.False(r.Remove(uuid.New()))
	chk.Zero(r.CancelAll())
	chk.False(th.IsCancelled())
}

func TestRegistryAddNilPanics(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry
	chk.PanicsWithValue("handle must be non-nil", func() {
		r.Add(nil)
	})
}

func TestRegistryWithHold(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry
	_, h := infq.NewStream[int]()
	th := infq.Track(h)

	err := r.WithHold(th, func() error {
		chk.Equal(1, r.Len())
		return nil
	})
	chk.NoError(err)
	chk.Zero(r.Len())
	chk.False(th.IsCancelled())

	boom := errors.New("boom")
	chk.ErrorIs(r.WithHold(th, func() error { return boom }), boom)
	chk.Zero(r.Len())

	chk.Panics(func() {
		_ = r.WithHold(th, func() error { panic("body panicked") })
	})
	chk.Zero(r.Len())
	chk.False(th.IsCancelled())
}

func TestRegistryCancelAllDuringHold(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry
	_, h := infq.NewStream[int]()
	th := infq.Track(h)

	err := r.WithHold(th, func() error {
		chk.Equal(1, r.CancelAll())
		return nil
	})
	chk.NoError(err)
	chk.True(th.IsCancelled())
	chk.Zero(r.Len())
}

func TestRegistryObserverMayReenter(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry
	_, h := infq.NewStream[int]()

	var id uuid.UUID
	h.OnTermination(func(infq.TerminationReason, error) {
		r.Remove(id)
	})
	id = r.Add(h)
	chk.Equal(1, r.CancelAll())
}

func TestRegistryConcurrent(t *testing.T) {
	chk := require.New(t)
	var r infq.Registry

	const n = 100
	handles := make([]*infq.TrackingHandle[int], n)
	var wg sync.WaitGroup
	for i := range n {
		_, h := infq.NewStream[int]()
		handles[i] = infq.Track(h)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(handles[i])
		}()
	}
	cancelled := 0
	var mu sync.Mutex
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := r.CancelAll()
			mu.Lock()
			cancelled += c
			mu.Unlock()
		}()
	}
	wg.Wait()
	cancelled += r.CancelAll()

	// Every handle is cancelled exactly once, whichever call got it.
	chk.Equal(n, cancelled)
	for _, th := range handles {
		chk.True(th.IsCancelled())
	}
}

// TestRegistryRapid compares the registry against a map of live handles.
func TestRegistryRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var r infq.Registry
		live := map[uuid.UUID]*infq.TrackingHandle[int]{}
		var ids []uuid.UUID
		var all []*infq.TrackingHandle[int]
		cancelled := map[*infq.TrackingHandle[int]]bool{}

		t.Repeat(map[string]func(*rapid.T){
			"add": func(t *rapid.T) {
				_, h := infq.NewStream[int]()
				th := infq.Track(h)
				id := r.Add(th)
				live[id] = th
				ids = append(ids, id)
				all = append(all, th)
			},
			"remove": func(t *rapid.T) {
				if len(ids) == 0 {
					t.Skip("nothing added")
				}
				id := rapid.SampledFrom(ids).Draw(t, "id")
				_, want := live[id]
				if got := r.Remove(id); got != want {
					t.Fatalf("Remove returned %v, want %v", got, want)
				}
				delete(live, id)
			},
			"cancelAll": func(t *rapid.T) {
				if got := r.CancelAll(); got != len(live) {
					t.Fatalf("CancelAll returned %d, want %d", got, len(live))
				}
				for id, th := range live {
					cancelled[th] = true
					delete(live, id)
				}
			},
			"": func(t *rapid.T) {
				if r.Len() != len(live) {
					t.Fatalf("Len is %d, want %d", r.Len(), len(live))
				}
				for _, th := range all {
					if th.IsCancelled() != cancelled[th] {
						t.Fatalf("IsCancelled is %v, want %v", th.IsCancelled(), cancelled[th])
					}
				}
			},
		})
	})
}
