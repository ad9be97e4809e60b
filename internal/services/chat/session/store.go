// Package session tracks every live realtime connection and the identity and
// room bound to it.
//
// Connections are addressed by a ConnID allocated at Open; callers never hand
// transport handles to the store, only the Sender that writes to them.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultMaxConnections bounds live entries when no limit is configured.
const DefaultMaxConnections = 10_000

var (
	// ErrCapacity is returned by Open when the store is full.
	ErrCapacity = errors.New("session store at capacity")
	// ErrUnknownConn is returned for a ConnID that is not live.
	ErrUnknownConn = errors.New("unknown connection")
	// ErrInvalidState is returned when a transition is not allowed from the
	// connection's current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrClosed is returned by a Sender whose connection has gone away.
	ErrClosed = errors.New("connection closed")
)

// ConnID identifies one live connection. Zero is never allocated.
type ConnID uint64

// NoConn excludes nobody from a recipient snapshot.
const NoConn ConnID = 0

// Sender delivers one serialized frame to a connection's outbound buffer.
type Sender interface {
	Send(payload []byte) error
}

// State is the protocol state of a connection.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateInRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

// Identity is drawn from verified token claims.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Session is a point-in-time copy of one connection's state.
type Session struct {
	ID       ConnID
	Identity Identity
	RoomID   string
	State    State
}

// Recipient pairs a connection with its Sender for fanout.
type Recipient struct {
	ID     ConnID
	Sender Sender
}

type entry struct {
	sender   Sender
	identity Identity
	roomID   string
	state    State
}

// Store is the process-wide table of live connections.
type Store struct {
	mu      sync.RWMutex
	entries map[ConnID]*entry
	max     int
	nextID  atomic.Uint64
}

// NewStore builds a store bounded to maxConnections live entries.
func NewStore(maxConnections int) *Store {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	return &Store{
		entries: make(map[ConnID]*entry),
		max:     maxConnections,
	}
}

// Open registers a new unauthenticated connection.
func (s *Store) Open(sender Sender) (ConnID, error) {
	if sender == nil {
		return NoConn, errors.New("sender is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.max {
		return NoConn, ErrCapacity
	}
	id := ConnID(s.nextID.Add(1))
	s.entries[id] = &entry{sender: sender, state: StateUnauthenticated}
	return id, nil
}

// Authenticate binds identity to an unauthenticated connection.
func (s *Store) Authenticate(id ConnID, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrUnknownConn
	}
	if e.state != StateUnauthenticated {
		return ErrInvalidState
	}
	e.identity = identity
	e.state = StateAuthenticated
	return nil
}

// Join binds an authenticated connection to roomID, replacing any previous room.
func (s *Store) Join(id ConnID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrUnknownConn
	}
	if e.state == StateUnauthenticated {
		return ErrInvalidState
	}
	e.roomID = roomID
	e.state = StateInRoom
	return nil
}

// Get returns a copy of the connection's session.
func (s *Store) Get(id ConnID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Session{}, false
	}
	return Session{ID: id, Identity: e.identity, RoomID: e.roomID, State: e.state}, true
}

// Close forgets the connection. Closing twice is a no-op.
func (s *Store) Close(id ConnID) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Recipients snapshots the connections currently bound to roomID, except
// exclude.
func (s *Store) Recipients(roomID string, exclude ConnID) []Recipient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipients := make([]Recipient, 0, 8)
	for id, e := range s.entries {
		if id == exclude || e.state != StateInRoom || e.roomID != roomID {
			continue
		}
		recipients = append(recipients, Recipient{ID: id, Sender: e.sender})
	}
	return recipients
}

// Len returns the number of live connections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RoomCount returns the number of connections bound to roomID.
func (s *Store) RoomCount(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.state == StateInRoom && e.roomID == roomID {
			n++
		}
	}
	return n
}
