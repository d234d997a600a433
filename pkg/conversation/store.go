// Package conversation holds the visible chat transcript of one widget session.
package conversation

import (
	"errors"
	"sync"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem is only ever added by the relay server; it is never stored here.
	RoleSystem Role = "system"
)

// Turn is one message of the transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ErrLastTurnNotAssistant is returned when UpdateLastTurn targets a turn that is
// not an assistant turn.
var ErrLastTurnNotAssistant = errors.New("last turn is not an assistant turn")

// Store is the ordered transcript. Turns are never dropped or reordered; the
// order is the literal payload order sent to the relay. Only the trailing
// assistant turn is ever rewritten, while its reply streams in.
type Store struct {
	mu      sync.RWMutex
	welcome Turn
	turns   []Turn
}

// NewStore returns a store seeded with a single assistant welcome turn.
func NewStore(welcome string) *Store {
	s := &Store{welcome: Turn{Role: RoleAssistant, Content: welcome}}
	s.turns = []Turn{s.welcome}
	return s
}

// Append adds a turn at the end.
func (s *Store) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// AppendEmptyAssistantTurn adds the placeholder a streaming reply is written into.
func (s *Store) AppendEmptyAssistantTurn() {
	s.Append(Turn{Role: RoleAssistant})
}

// UpdateLastTurn replaces the content of the final turn with the full text
// accumulated so far.
func (s *Store) UpdateLastTurn(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) == 0 || s.turns[len(s.turns)-1].Role != RoleAssistant {
		return ErrLastTurnNotAssistant
	}
	s.turns[len(s.turns)-1].Content = content
	return nil
}

// Reset discards the transcript and restores the welcome turn.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []Turn{s.welcome}
}

// Turns returns a copy of the transcript in order.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the final turn, if any.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// UserTurns counts the turns sent by the visitor.
func (s *Store) UserTurns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// Welcome returns the seeded welcome turn.
func (s *Store) Welcome() Turn {
	return s.welcome
}
