package tool

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ubitech/deskmate/pkg/errors"
	"github.com/ubitech/deskmate/pkg/gateway"
	"github.com/ubitech/deskmate/pkg/store"
	"github.com/ubitech/deskmate/pkg/ticket"
)

func newRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	s := store.New(gateway.NewClient(server.URL),
		store.WithDelays(time.Hour, time.Hour),
	)
	t.Cleanup(func() { s.Close() })

	r := NewRegistry(nil)
	RegisterTicketTools(r, s)
	return r, s
}

func createParams() map[string]any {
	return map[string]any{
		"requester":        "1234",
		"pid":              "03264",
		"subject":          "PC won't boot",
		"category":         "Hardware",
		"description":      "No display on power-up",
		"location":         "HQ 3F",
		"severity":         "Major",
		"contact_number":   "555-0100",
		"superior_contact": "boss@ubitech.example",
	}
}

func TestRegistryCatalog(t *testing.T) {
	r, _ := newRegistry(t)

	if r.Count() != 5 {
		t.Fatalf("Expected 5 tools, got %d", r.Count())
	}

	fns := r.ToOpenAIFunctions()
	names := map[string]bool{}
	for _, fn := range fns {
		inner := fn["function"].(map[string]any)
		names[inner["name"].(string)] = true
	}
	for _, want := range []string{"lookup_ticket", "search_tickets", "create_ticket", "append_troubleshooting_log", "close_ticket"} {
		if !names[want] {
			t.Errorf("Catalog missing %q", want)
		}
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	r, _ := newRegistry(t)

	_, err := r.Execute("reboot_server", nil)
	if !errors.IsCode(err, errors.ErrCodeToolNotFound) {
		t.Fatalf("Expected TOOL_NOT_FOUND, got %v", err)
	}
}

func TestCreateThenLookup(t *testing.T) {
	r, s := newRegistry(t)

	created, err := r.Execute("create_ticket", createParams())
	if err != nil {
		t.Fatalf("create_ticket failed: %v", err)
	}
	if !created.Success {
		t.Fatalf("Expected success, got %+v", created)
	}
	id, _ := created.Data["ticketId"].(string)
	if id == "" {
		t.Fatal("Expected ticketId in result data")
	}
	if s.IdentifiedUser() != "1234" {
		t.Errorf("Expected identified user side effect, got %q", s.IdentifiedUser())
	}

	looked, err := r.Execute("lookup_ticket", map[string]any{"ticket_id": id})
	if err != nil {
		t.Fatalf("lookup_ticket failed: %v", err)
	}
	if looked.Data["status"] != string(ticket.StatusOpen) {
		t.Errorf("Expected open ticket, got %v", looked.Data["status"])
	}
	if looked.Data["technician"] != ticket.TechnicianUnassigned {
		t.Errorf("Expected Unassigned technician, got %v", looked.Data["technician"])
	}
}

func TestLookup_NotFound(t *testing.T) {
	r, _ := newRegistry(t)

	res, err := r.Execute("lookup_ticket", map[string]any{"ticket_id": "99999"})
	if err != nil {
		t.Fatalf("lookup_ticket errored: %v", err)
	}
	if res.Success {
		t.Fatal("Expected unsuccessful result for unknown id")
	}

	payload, err := ToJSON(res)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if payload != `{"error":"Not found."}` {
		t.Errorf("Unexpected error payload: %s", payload)
	}
}

func TestSearchTickets_SideEffect(t *testing.T) {
	r, s := newRegistry(t)
	r.Execute("create_ticket", createParams())

	res, err := r.Execute("search_tickets", map[string]any{"query": "03264"})
	if err != nil {
		t.Fatalf("search_tickets failed: %v", err)
	}
	if count, _ := res.Data["count"].(int); count != 1 {
		t.Errorf("Expected 1 match, got %v", res.Data["count"])
	}
	if s.IdentifiedUser() != "03264" {
		t.Errorf("Expected query recorded as identified user, got %q", s.IdentifiedUser())
	}
}

func TestAppendAndClose(t *testing.T) {
	r, s := newRegistry(t)
	created, _ := r.Execute("create_ticket", createParams())
	id := created.Data["ticketId"].(string)

	res, err := r.Execute("append_troubleshooting_log", map[string]any{
		"ticket_id":      id,
		"text_to_append": "User restarted device: no change",
	})
	if err != nil || !res.Success {
		t.Fatalf("append failed: res=%+v err=%v", res, err)
	}

	before, _ := s.GetByID(id)
	res, err = r.Execute("close_ticket", map[string]any{
		"ticket_id": id,
		"reason":    "Resolved by user",
	})
	if err != nil || !res.Success {
		t.Fatalf("close failed: res=%+v err=%v", res, err)
	}

	after, _ := s.GetByID(id)
	if after.Status != ticket.StatusClosed {
		t.Errorf("Expected Closed status, got %q", after.Status)
	}
	if after.LogLineCount() != before.LogLineCount()+1 {
		t.Errorf("Expected one closing note, got %d -> %d lines", before.LogLineCount(), after.LogLineCount())
	}
}

func TestAppend_UnknownTicketIsRecoverable(t *testing.T) {
	r, _ := newRegistry(t)

	res, err := r.Execute("append_troubleshooting_log", map[string]any{
		"ticket_id":      "99999",
		"text_to_append": "x",
	})
	if err != nil {
		t.Fatalf("Handler misses must come back as results, got error: %v", err)
	}
	if res.Success {
		t.Fatal("Expected unsuccessful result")
	}
}
