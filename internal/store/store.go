// Package store owns the in-memory schedule and its durable copy.  Every
// mutation goes through Store.Apply, which merges a patch into the current
// schedule and persists the result before anyone can observe it.  Listeners
// registered with Subscribe learn about every applied patch and where it
// came from, which is how outbound sync and cache invalidation hook in.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/repository"
)

// Blob is the durable storage behind a Store: one opaque document that is
// read at startup and overwritten on every change.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Origin tells listeners where a patch came from.
type Origin string

const (
	// OriginLocal marks edits made through this process's own API.
	OriginLocal Origin = "local"
	// OriginRemote marks patches received over a sync connection.  They
	// must never be sent back upstream.
	OriginRemote Origin = "remote"
)

// Change describes one applied patch.  Source is an opaque tag set by the
// caller of Apply (for example the peer connection a patch arrived on) so a
// listener can avoid reflecting a patch back to its sender.
type Change struct {
	Patch  model.Schedule
	Origin Origin
	Source any
}

// Listener receives changes after they have been persisted, in the order
// they were committed.  Listeners run synchronously on the goroutine that
// called Apply; they may read the store but must not call Apply.
type Listener func(Change)

// Store is the process-wide schedule.  It is safe for concurrent use.
type Store struct {
	blob      Blob
	knownSpot func(string) bool

	mu      sync.RWMutex
	current model.Schedule
	seq     uint64 // commits so far, guarded by mu

	// turn is the sequence number whose listeners run next.
	turnMu   sync.Mutex
	turnCond *sync.Cond
	turn     uint64

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// Option customizes a Store.
type Option func(*Store)

// WithKnownSpots installs a predicate used to warn about spot keys that are
// not in the catalog when loading persisted data.
func WithKnownSpots(known func(string) bool) Option {
	return func(s *Store) { s.knownSpot = known }
}

// New returns an empty Store backed by blob.  Call Load to read the
// persisted schedule.
func New(blob Blob, opts ...Option) *Store {
	s := &Store{
		blob:      blob,
		current:   model.Schedule{},
		listeners: make(map[int]Listener),
	}
	s.turnCond = sync.NewCond(&s.turnMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory schedule with the persisted one and returns a
// copy of it.  Missing or corrupt data yields an empty schedule.
func (s *Store) Load(ctx context.Context) model.Schedule {
	loaded := Load(ctx, s.blob)
	if s.knownSpot != nil {
		warnStrayKeys(loaded, s.knownSpot)
	}
	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded.Clone()
}

// Apply merges patch into the current schedule and persists the result.
// When persisting fails the in-memory schedule is left untouched and the
// error is returned; listeners only hear about persisted changes.
func (s *Store) Apply(ctx context.Context, patch model.Schedule, origin Origin, source any) (model.Schedule, error) {
	s.mu.Lock()
	next := model.Merge(s.current, patch)
	if err := Persist(ctx, s.blob, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = next
	out := next.Clone()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	s.waitTurn(seq)
	s.notify(Change{Patch: patch.Clone(), Origin: origin, Source: source})
	s.endTurn()
	return out, nil
}

func (s *Store) waitTurn(seq uint64) {
	s.turnMu.Lock()
	for s.turn != seq {
		s.turnCond.Wait()
	}
	s.turnMu.Unlock()
}

func (s *Store) endTurn() {
	s.turnMu.Lock()
	s.turn++
	s.turnCond.Broadcast()
	s.turnMu.Unlock()
}

// Snapshot returns a copy of the whole schedule.
func (s *Store) Snapshot() model.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Day returns a copy of one date's schedule.  Unknown dates yield an empty
// map.
func (s *Store) Day(date string) model.DaySchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[date].Clone()
}

// SpotHours returns a copy of one spot's hours on one date.
func (s *Store) SpotHours(date, spot string) model.SpotHours {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[date][spot].Clone()
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) notify(ch Change) {
	s.lmu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.lmu.RUnlock()
	for _, l := range ls {
		l(ch)
	}
}

// Load reads and decodes the schedule held by blob.  Absent, unreadable or
// unparsable data is reported in the log and yields an empty schedule.
func Load(ctx context.Context, blob Blob) model.Schedule {
	raw, err := blob.Read(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrBlobNotFound) {
			log.Printf("store: read failed, starting empty: %v", err)
		}
		return model.Schedule{}
	}
	var s model.Schedule
	if err := json.Unmarshal(raw, &s); err != nil {
		log.Printf("store: stored schedule is corrupt, starting empty: %v", err)
		return model.Schedule{}
	}
	if s == nil {
		s = model.Schedule{}
	}
	return s
}

// Persist encodes schedule and overwrites the blob with it.
func Persist(ctx context.Context, blob Blob, schedule model.Schedule) error {
	raw, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	if err := blob.Write(ctx, raw); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}
	return nil
}

func warnStrayKeys(s model.Schedule, known func(string) bool) {
	for date, day := range s {
		if _, err := model.ParseDateKey(date, nil); err != nil {
			log.Printf("store: stored schedule has malformed date key %q", date)
		}
		for spot, hours := range day {
			if !known(spot) {
				log.Printf("store: stored schedule has unknown spot %q on %s", spot, date)
			}
			for hour := range hours {
				if !model.ValidHour(hour) {
					log.Printf("store: stored schedule has out-of-range hour %d for %s on %s", hour, spot, date)
				}
			}
		}
	}
}
