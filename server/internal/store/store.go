package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/types"
)

// Entry is the latest snapshot of one source plus its reporting history.
type Entry struct {
	Snapshot  *types.Snapshot
	UpdatedAt time.Time

	// FirstSeen is when the source first reported since it was last evicted.
	FirstSeen time.Time
	// Updates counts snapshots received since FirstSeen.
	Updates int
	// LastGood is the most recent analyzed snapshot. It is nil until one
	// arrives and survives later failed snapshots.
	LastGood *types.Snapshot
}

// Stats counts live entries by outcome.
type Stats struct {
	Live   int
	Profit int
	Loss   int
	Failed int
}

// Store is a thread-safe in-memory snapshot store, keyed by source_id.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL. A TTL of zero disables expiry.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests

	onEvict func(sourceID string)
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores snap as the latest snapshot for snap.SourceID and reports
// whether it did. A snapshot whose TimestampUnix is older than the live
// entry's (a retried shipment) is not stored; it only refreshes UpdatedAt.
// Callers must not modify snap after calling Put.
//
// Entries are replaced, never mutated, so an *Entry returned earlier stays
// consistent.
func (s *Store) Put(snap *types.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	next := &Entry{Snapshot: snap, UpdatedAt: now, FirstSeen: now, Updates: 1}
	if prev, ok := s.data[snap.SourceID]; ok && s.fresh(prev, now) {
		if snap.TimestampUnix < prev.Snapshot.TimestampUnix {
			touched := *prev
			touched.UpdatedAt = now
			s.data[snap.SourceID] = &touched
			return false
		}
		next.FirstSeen = prev.FirstSeen
		next.Updates = prev.Updates + 1
		next.LastGood = prev.LastGood
	}
	if !snap.Failed() {
		next.LastGood = snap
	}
	s.data[snap.SourceID] = next
	return true
}

// OnEvict registers fn to be called with the ID of every entry Evict removes.
// It must be called before Run.
func (s *Store) OnEvict(fn func(sourceID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Delete removes sourceID and reports whether it was present.
func (s *Store) Delete(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[sourceID]
	delete(s.data, sourceID)
	return ok
}

// Stats counts live entries by profit status; failed snapshots count as Failed.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	now := s.now()
	for _, e := range s.data {
		if !s.fresh(e, now) {
			continue
		}
		st.Live++
		switch {
		case e.Snapshot.Failed() || e.Snapshot.Report == nil:
			st.Failed++
		case e.Snapshot.Report.ProfitStatus == analysis.StatusLoss:
			st.Loss++
		default:
			st.Profit++
		}
	}
	return st
}

// Get returns the Entry for the given source ID and a boolean indicating
// whether an entry was found. The entry may be stale if TTL has elapsed.
func (s *Store) Get(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sourceID]
	return e, ok
}

// Live is Get, but reports false for an entry older than the TTL.
func (s *Store) Live(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sourceID]
	if !ok || !s.fresh(e, s.now()) {
		return nil, false
	}
	return e, true
}

// List returns all entries whose UpdatedAt is within the TTL, ordered by
// source ID. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	now := s.now()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if s.fresh(e, now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Snapshot.SourceID < out[j].Snapshot.SourceID
	})
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL and
// returns their source IDs in order. The OnEvict callback runs for each one
// after the lock is released.
func (s *Store) Evict(now time.Time) []string {
	s.mu.Lock()
	var removed []string
	for id, e := range s.data {
		if !s.fresh(e, now) {
			delete(s.data, id)
			removed = append(removed, id)
		}
	}
	fn := s.onEvict
	s.mu.Unlock()

	sort.Strings(removed)
	if fn != nil {
		for _, id := range removed {
			fn(id)
		}
	}
	return removed
}

func (s *Store) fresh(e *Entry, now time.Time) bool {
	return s.ttl <= 0 || e.UpdatedAt.After(now.Add(-s.ttl))
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second) so entries are evicted promptly. Run blocks until ctx is
// cancelled. With a zero TTL it only waits for ctx.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if ids := s.Evict(now); len(ids) > 0 {
				slog.Debug("store: evicted stale snapshots", "count", len(ids), "sources", ids)
			}
		}
	}
}
