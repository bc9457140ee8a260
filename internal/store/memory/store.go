// Package memory implements organization.Store in process memory. It backs
// unit and end-to-end tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

// DatabaseName is reported as connection.db for in-memory records.
const DatabaseName = "memory"

type record struct {
	id        string
	data      map[string]any
	createdAt time.Time
}

type state struct {
	orgs       map[string]organization.Organization
	admins     map[string]organization.Admin
	partitions map[string][]record
	retained   map[string]organization.RetainedPartition
}

func newState() *state {
	return &state{
		orgs:       make(map[string]organization.Organization),
		admins:     make(map[string]organization.Admin),
		partitions: make(map[string][]record),
		retained:   make(map[string]organization.RetainedPartition),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	for k, v := range s.partitions {
		c.partitions[k] = append([]record(nil), v...)
	}
	for k, v := range s.retained {
		c.retained[k] = v
	}
	return c
}

// Store is an in-memory organization.Store. Atomic works on a copy of the
// state and swaps it in on success, holding the store lock throughout, so
// transactions are fully serialized.
type Store struct {
	mu    sync.Mutex
	state *state
	clock clock.Clock
}

var _ organization.Store = (*Store)(nil)

// New returns an empty store using wall-clock time.
func New() *Store {
	return NewWithClock(clock.New())
}

// NewWithClock returns an empty store stamping records with clk.
func NewWithClock(clk clock.Clock) *Store {
	return &Store{state: newState(), clock: clk}
}

// scope runs repository calls either inside a transaction (tx set) or
// against the live state under the store lock.
type scope struct {
	store *Store
	tx    *state
}

func (sc scope) do(fn func(st *state) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	return fn(sc.store.state)
}

func (sc scope) now() time.Time {
	return sc.store.clock.Now().UTC()
}

func (s *Store) Registry() organization.Registry {
	return &registry{scope{store: s}}
}

func (s *Store) Admins() organization.AdminRepository {
	return &admins{scope{store: s}}
}

func (s *Store) Partitions() organization.PartitionManager {
	return &partitions{scope{store: s}}
}

func (s *Store) Retention() organization.RetentionLedger {
	return &retention{scope{store: s}}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx organization.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(&txStore{scope{store: s, tx: draft}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = draft
	return nil
}

type txStore struct {
	sc scope
}

func (t *txStore) Registry() organization.Registry { return &registry{t.sc} }
func (t *txStore) Admins() organization.AdminRepository { return &admins{t.sc} }
func (t *txStore) Partitions() organization.PartitionManager { return &partitions{t.sc} }
func (t *txStore) Retention() organization.RetentionLedger { return &retention{t.sc} }

// Atomic inside a transaction joins it.
func (t *txStore) Atomic(ctx context.Context, fn func(tx organization.Store) error) error {
	return fn(t)
}

type retention struct {
	sc scope
}

func (r *retention) Retain(ctx context.Context, partitionID, orgID string, at time.Time) error {
	return r.sc.do(func(st *state) error {
		st.retained[partitionID] = organization.RetainedPartition{
			PartitionID:    partitionID,
			OrganizationID: orgID,
			RetainedAt:     at,
		}
		return nil
	})
}

func (r *retention) Release(ctx context.Context, partitionID string) (bool, error) {
	var released bool
	err := r.sc.do(func(st *state) error {
		_, released = st.retained[partitionID]
		delete(st.retained, partitionID)
		return nil
	})
	return released, err
}

func (r *retention) ListExpired(ctx context.Context, before time.Time) ([]organization.RetainedPartition, error) {
	var out []organization.RetainedPartition
	err := r.sc.do(func(st *state) error {
		for _, rp := range st.retained {
			if rp.RetainedAt.Before(before) {
				out = append(out, rp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RetainedAt.Before(out[j].RetainedAt) })
	return out, err
}
