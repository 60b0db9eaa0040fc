package session

import (
	"testing"

	"github.com/ubitech/deskmate/pkg/ticket"
)

func TestNewSession_SeededGreeting(t *testing.T) {
	s := New()

	history := s.History()
	if len(history) != 1 {
		t.Fatalf("Expected 1 seeded turn, got %d", len(history))
	}
	if history[0].Role != ticket.RoleAgent {
		t.Errorf("Seeded turn should be agent-authored, got %q", history[0].Role)
	}
	if history[0].Text != Greeting {
		t.Errorf("Unexpected greeting text: %q", history[0].Text)
	}

	// The transcript for the model must not include the seeded turn.
	if got := s.ModelHistory(); len(got) != 0 {
		t.Errorf("Expected empty model history, got %d messages", len(got))
	}
}

func TestModelHistory_StartsWithUserTurn(t *testing.T) {
	s := New()
	s.AddUserTurn("my vpn is down")
	s.AddAgentTurn("Let me check. What is your PID?", false)
	s.AddUserTurn("PID 03264")

	history := s.ModelHistory()
	if len(history) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(history))
	}
	if history[0].Role != "user" {
		t.Errorf("Transcript must start with a user turn, got %q", history[0].Role)
	}
	if history[1].Role != "assistant" {
		t.Errorf("Agent turns map to assistant, got %q", history[1].Role)
	}
}

func TestSession_TurnMetadata(t *testing.T) {
	s := New()
	turn := s.AddAgentTurn("Created ticket 34761.", true)

	if !turn.ToolUsed {
		t.Error("Expected toolUsed flag")
	}
	if turn.ID == "" || turn.ID == "greeting" {
		t.Errorf("Expected fresh turn id, got %q", turn.ID)
	}
}

func TestManager(t *testing.T) {
	m := NewManager()

	s := m.Create()
	if got, ok := m.Get(s.ID()); !ok || got != s {
		t.Fatal("Create should register the session")
	}

	if got := m.GetOrCreate(s.ID()); got != s {
		t.Error("GetOrCreate should return the existing session")
	}
	fresh := m.GetOrCreate("")
	if fresh == s {
		t.Error("Empty id should create a fresh session")
	}
	if m.Count() != 2 {
		t.Errorf("Expected 2 sessions, got %d", m.Count())
	}

	m.Remove(s.ID())
	if _, ok := m.Get(s.ID()); ok {
		t.Error("Remove should drop the session")
	}
}
