// Package session holds per-client state: the selected profile name, the most
// recent OCR text and a chat transcript. Nothing here is persisted.
package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role identifies who produced a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// MaxTurns bounds the in-memory transcript; older turns are dropped first.
const MaxTurns = 200

// Turn is one entry of the chat transcript.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is safe for concurrent use. Each field is last-writer-wins.
type Session struct {
	ID string

	mu             sync.Mutex
	currentProfile string
	lastRecognized string
	turns          []Turn
	lastUsed       time.Time
}

// New creates a session starting on currentProfile.
func New(id, currentProfile string) *Session {
	return &Session{ID: id, currentProfile: currentProfile, lastUsed: time.Now()}
}

// NewID returns a fresh sortable session ID.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// CurrentProfileName returns the selected profile name ("" means Default).
func (s *Session) CurrentProfileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentProfile
}

// SetCurrentProfileName selects a profile for subsequent operations.
func (s *Session) SetCurrentProfileName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentProfile = name
	s.lastUsed = time.Now()
}

// LastRecognizedText returns the text from the most recent successful OCR.
func (s *Session) LastRecognizedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecognized
}

// SetLastRecognizedText replaces the stored OCR text.
func (s *Session) SetLastRecognizedText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRecognized = text
	s.lastUsed = time.Now()
}

// AddTurn appends to the transcript.
func (s *Session) AddTurn(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.turns = append(s.turns, Turn{Role: role, Text: text, At: now})
	if len(s.turns) > MaxTurns {
		s.turns = append([]Turn(nil), s.turns[len(s.turns)-MaxTurns:]...)
	}
	s.lastUsed = now
}

// Turns returns a copy of the transcript, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// ClearTurns empties the transcript.
func (s *Session) ClearTurns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// LastUsed reports when the session last changed.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}
