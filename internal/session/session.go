// Package session holds process-lifetime state: per-user token
// revocation cutoffs and pending upload reservations. Nothing here
// survives a restart, which is intentional — a reservation or cutoff
// outliving the process would reference state validated under a
// configuration that may have since changed.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrReservationNotFound covers unknown, consumed, and in-flight
// reservation UUIDs; callers cannot distinguish them and must restart
// at the metadata phase.
var ErrReservationNotFound = errors.New("upload reservation not found")

// Reservation binds a single-use upload UUID to a validated destination.
type Reservation struct {
	UUID  string
	Owner string
	Path  string
}

type reservationRow struct {
	owner string
	path  string
	busy  bool
}

// Store is the ephemeral session store.
type Store struct {
	mu           sync.Mutex
	cutoffs      map[string]int64
	reservations map[string]*reservationRow
}

// NewStore constructs an empty session store.
func NewStore() *Store {
	return &Store{
		cutoffs:      make(map[string]int64),
		reservations: make(map[string]*reservationRow),
	}
}

// RevokeUser raises the blacklist cutoff for a user. A cutoff never
// moves backward: repeated logout-all calls only widen the invalidated
// window.
func (s *Store) RevokeUser(username string, cutoff int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cutoff > s.cutoffs[username] {
		s.cutoffs[username] = cutoff
	}
}

// IsRevoked reports whether a token issued at issuedAt for username is
// invalidated. Tokens issued at or before the cutoff are invalid
// regardless of their own expiry.
func (s *Store) IsRevoked(username string, issuedAt int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff, ok := s.cutoffs[username]
	return ok && issuedAt <= cutoff
}

// CreateReservation records a validated upload destination and returns
// its fresh single-use UUID.
func (s *Store) CreateReservation(owner, path string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.reservations[id] = &reservationRow{owner: owner, path: path}
	s.mu.Unlock()
	return id
}

// AcquireReservation looks up a reservation and marks it in-flight.
// A concurrent acquire of the same UUID observes not-found, so two
// streams can never write the same destination. The caller must follow
// with CompleteReservation or ReleaseReservation.
func (s *Store) AcquireReservation(id string) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.reservations[id]
	if !ok || row.busy {
		return Reservation{}, ErrReservationNotFound
	}
	row.busy = true
	return Reservation{UUID: id, Owner: row.owner, Path: row.path}, nil
}

// CompleteReservation consumes a reservation after a successful stream.
func (s *Store) CompleteReservation(id string) {
	s.mu.Lock()
	delete(s.reservations, id)
	s.mu.Unlock()
}

// ReleaseReservation returns a failed in-flight reservation to the
// store so the client can retry the stream phase.
func (s *Store) ReleaseReservation(id string) {
	s.mu.Lock()
	if row, ok := s.reservations[id]; ok {
		row.busy = false
	}
	s.mu.Unlock()
}
