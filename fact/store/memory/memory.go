/*
Package memory provides an in-memory fact.IndexProvider.

PURPOSE:
  The reference adapter for tests and short-lived processes: a current-state
  map keyed by (e,a,v) plus an append-only slice of the full transaction
  log, guarded by one sync.RWMutex. No persistence, no fulltext
  indirection — values are held as fact.TypedValue directly rather than
  round-tripped through an encode/decode boundary.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/factdb/fact"
)

type entry struct {
	e, a fact.Entid
	v    fact.TypedValue
}

// Store is an in-memory fact.IndexProvider.
type Store struct {
	mu      sync.RWMutex
	current map[entry]bool // live (e,a,v) triples
	log     []fact.Datom   // full transaction history, append order
	byA     map[fact.Entid][]entry // index: attribute -> live (e,a,v) triples sharing it, for LookupUnique
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		current: make(map[entry]bool),
		byA:     make(map[fact.Entid][]entry),
	}
}

// LookupUnique implements fact.IndexProvider.
func (s *Store) LookupUnique(_ context.Context, a fact.Entid, v fact.TypedValue) (fact.Entid, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.byA[a] {
		if e.v.Equal(v) {
			return e.e, true, nil
		}
	}
	return 0, false, nil
}

// ScanEAV implements fact.IndexProvider.
func (s *Store) ScanEAV(_ context.Context, e fact.Entid, a fact.Entid) ([]fact.Datom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []fact.Datom
	for ent := range s.current {
		if ent.e != e {
			continue
		}
		if a != 0 && ent.a != a {
			continue
		}
		out = append(out, fact.Datom{E: ent.e, A: ent.a, V: ent.v, Added: true})
	}
	fact.SortEAVT(out)
	return out, nil
}

// ScanTx implements fact.IndexProvider.
func (s *Store) ScanTx(_ context.Context, tx fact.Entid) ([]fact.Datom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []fact.Datom
	for _, d := range s.log {
		if d.Tx == tx {
			out = append(out, d)
		}
	}
	return out, nil
}

// Append implements fact.IndexProvider. timeline is ignored: log entries
// carry no timeline label, and current state is a single materialized view
// across timelines (adequate for tests; a timeline-labelled log is
// storesql's job). For the same reason TimelineUpdate only applies the
// inverse datoms to current state and relabels nothing.
func (s *Store) Append(_ context.Context, timeline string, datoms []fact.Datom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range datoms {
		s.applyLocked(d)
		s.log = append(s.log, d)
	}
	return nil
}

// TimelineUpdate implements fact.IndexProvider.
func (s *Store) TimelineUpdate(_ context.Context, from, to string, fromTx, toTx fact.Entid, inverse []fact.Datom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range inverse {
		s.applyLocked(d)
	}
	return nil
}

// DeleteTx implements fact.IndexProvider.
func (s *Store) DeleteTx(_ context.Context, timeline string, tx fact.Entid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.log[:0]
	for _, d := range s.log {
		if d.Tx != tx {
			kept = append(kept, d)
		}
	}
	s.log = kept
	return nil
}

func (s *Store) applyLocked(d fact.Datom) {
	key := entry{e: d.E, a: d.A, v: d.V}
	if d.Added {
		if !s.current[key] {
			s.current[key] = true
			s.byA[d.A] = append(s.byA[d.A], key)
		}
	} else {
		if s.current[key] {
			delete(s.current, key)
			s.removeFromIndex(d.A, key)
		}
	}
}

func (s *Store) removeFromIndex(a fact.Entid, key entry) {
	entries := s.byA[a]
	for i, e := range entries {
		if e == key {
			s.byA[a] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// AllCurrent returns a sorted snapshot of every live datom, for debugging
// and test assertions.
func (s *Store) AllCurrent() []fact.Datom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]fact.Datom, 0, len(s.current))
	for ent := range s.current {
		out = append(out, fact.Datom{E: ent.e, A: ent.a, V: ent.v, Added: true})
	}
	sort.Slice(out, func(i, j int) bool { return fact.CompareEAVT(out[i], out[j]) < 0 })
	return out
}
