// Package session tracks per-conversation chat history. Every session opens
// with a seeded greeting turn that is shown to the user but kept out of the
// transcript sent to the model, which must begin with a user-authored turn.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ubitech/deskmate/pkg/model"
	"github.com/ubitech/deskmate/pkg/ticket"
)

// Greeting is the seeded opening turn.
const Greeting = "Good day. I am the UBI IT Support Assistant.\n\nTo begin, please state your name and how you would like to be addressed (e.g., Mr., Ms., Engr.)."

// greetingID marks the seeded turn so history filtering can drop it.
const greetingID = "greeting"

// Session is one support conversation.
type Session struct {
	id      string
	mu      sync.Mutex
	turns   []ticket.ChatTurn
	started time.Time
	now     func() time.Time
}

// New creates a session seeded with the greeting turn.
func New() *Session {
	return newSession(time.Now)
}

func newSession(now func() time.Time) *Session {
	s := &Session{
		id:      uuid.NewString(),
		started: now(),
		now:     now,
	}
	s.turns = []ticket.ChatTurn{{
		ID:        greetingID,
		Role:      ticket.RoleAgent,
		Text:      Greeting,
		Timestamp: s.started,
	}}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AddUserTurn records a user utterance and returns the stored turn.
func (s *Session) AddUserTurn(text string) ticket.ChatTurn {
	return s.add(ticket.RoleUser, text, false)
}

// AddAgentTurn records an agent reply and whether tools ran producing it.
func (s *Session) AddAgentTurn(text string, toolUsed bool) ticket.ChatTurn {
	return s.add(ticket.RoleAgent, text, toolUsed)
}

func (s *Session) add(role ticket.Role, text string, toolUsed bool) ticket.ChatTurn {
	turn := ticket.ChatTurn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: s.now(),
		ToolUsed:  toolUsed,
	}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	return turn
}

// History returns a copy of all turns, seeded greeting included.
func (s *Session) History() []ticket.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ticket.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// ModelHistory renders the transcript for the model service: the seeded
// greeting is dropped and roles map onto the chat-completions vocabulary.
// The result always starts with a user turn or is empty.
func (s *Session) ModelHistory() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Message, 0, len(s.turns))
	for _, turn := range s.turns {
		if turn.ID == greetingID {
			continue
		}
		role := "assistant"
		if turn.Role == ticket.RoleUser {
			role = "user"
		}
		out = append(out, model.Message{Role: role, Content: turn.Text})
	}
	return out
}

// Manager holds the live sessions of a server process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create opens a new session and registers it.
func (m *Manager) Create() *Session {
	s := New()
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with the given id, creating and
// registering a fresh one when id is empty or unknown.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s
		}
	}
	return m.Create()
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
