// Package session keeps short-term, per-conversation memory so follow-up
// questions can be resolved against prior turns. State lives in process
// memory only; an attached history archive is the sole durable record.
package session

import (
	"context"
	"sync"
	"time"
)

// Turn is one completed utterance/answer cycle. Immutable once appended.
type Turn struct {
	Utterance string
	SQL       string
	RowCount  int
	Answer    string
	At        time.Time
}

type conversation struct {
	mu       sync.Mutex
	turns    []Turn
	lastSeen time.Time
}

// Store holds all live conversations keyed by an opaque session ID.
// Turns within one session are serialized by the conversation mutex held
// for the whole checkout; different sessions proceed concurrently.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*conversation

	maxTurns int
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(maxTurns int, idleTTL time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = 6
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*conversation),
		maxTurns: maxTurns,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Session is a checked-out conversation. The caller owns it exclusively
// until Release; a second Checkout of the same ID blocks until then.
type Session struct {
	id    string
	conv  *conversation
	store *Store
}

func (s *Store) Checkout(id string) *Session {
	s.mu.Lock()
	conv, ok := s.sessions[id]
	if !ok {
		conv = &conversation{}
		s.sessions[id] = conv
	}
	conv.lastSeen = s.now()
	s.mu.Unlock()

	conv.mu.Lock()
	return &Session{id: id, conv: conv, store: s}
}

func (s *Session) ID() string {
	return s.id
}

// Recent returns up to n most recent turns, oldest first.
func (s *Session) Recent(n int) []Turn {
	turns := s.conv.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a completed turn and trims the window to the configured
// maximum. Called exactly once per successful turn, after composition.
func (s *Session) Append(t Turn) {
	s.conv.turns = append(s.conv.turns, t)
	if excess := len(s.conv.turns) - s.store.maxTurns; excess > 0 {
		s.conv.turns = append([]Turn(nil), s.conv.turns[excess:]...)
	}
}

func (s *Session) Release() {
	s.conv.mu.Unlock()
}

// Reset discards a conversation entirely. A session checked out elsewhere
// keeps its in-flight view; the next Checkout starts fresh.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps idle conversations until ctx is cancelled.
func (s *Store) Run(ctx context.Context, sweepEvery time.Duration) {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conv := range s.sessions {
		if conv.lastSeen.After(cutoff) {
			continue
		}
		// Skip conversations mid-turn; they will age out next sweep.
		if !conv.mu.TryLock() {
			continue
		}
		conv.mu.Unlock()
		delete(s.sessions, id)
	}
}
