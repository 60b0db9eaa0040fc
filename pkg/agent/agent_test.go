package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ubitech/deskmate/pkg/gateway"
	"github.com/ubitech/deskmate/pkg/model"
	"github.com/ubitech/deskmate/pkg/session"
	"github.com/ubitech/deskmate/pkg/store"
	"github.com/ubitech/deskmate/pkg/ticket"
	"github.com/ubitech/deskmate/pkg/tool"
)

// scriptedClient replays canned responses and captures every request.
type scriptedClient struct {
	requests  []model.ChatRequest
	responses []*model.ChatResponse
	err       error
}

func (c *scriptedClient) ChatCompletion(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.responses) == 0 {
		return nil, fmt.Errorf("script exhausted")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func textResponse(text string) *model.ChatResponse {
	return &model.ChatResponse{Choices: []model.Choice{{
		Message:      model.Message{Role: "assistant", Content: text},
		FinishReason: "stop",
	}}}
}

func toolCallResponse(name, arguments string) *model.ChatResponse {
	return &model.ChatResponse{Choices: []model.Choice{{
		Message: model.Message{
			Role: "assistant",
			ToolCalls: []model.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: model.FunctionCall{Name: name, Arguments: arguments},
			}},
		},
		FinishReason: "tool_calls",
	}}}
}

func newTicketStore(t *testing.T) *store.Store {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	s := store.New(gateway.NewClient(server.URL), store.WithDelays(time.Hour, time.Hour))
	t.Cleanup(func() { s.Close() })
	return s
}

func newResponder(t *testing.T, client ModelClient) (*Responder, *store.Store) {
	t.Helper()
	s := newTicketStore(t)
	registry := tool.NewRegistry(nil)
	tool.RegisterTicketTools(registry, s)
	return NewResponder(client, registry), s
}

func TestRespond_PlainText(t *testing.T) {
	client := &scriptedClient{responses: []*model.ChatResponse{
		textResponse("Hello! What is your name?"),
	}}
	r, _ := newResponder(t, client)
	sess := session.New()

	reply := r.Respond(context.Background(), sess, "hi")

	if reply.ToolUsed {
		t.Error("Plain text reply must report toolUsed=false")
	}
	if reply.Text != "Hello! What is your name?" {
		t.Errorf("Unexpected reply: %q", reply.Text)
	}

	// One round only.
	if len(client.requests) != 1 {
		t.Fatalf("Expected 1 model request, got %d", len(client.requests))
	}
	req := client.requests[0]
	if req.Messages[0].Role != "system" {
		t.Error("First message must be the system prompt")
	}
	if req.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", req.Temperature)
	}
	if len(req.Tools) != 5 {
		t.Errorf("Expected the 5-tool catalog, got %d", len(req.Tools))
	}

	// Both turns recorded.
	history := sess.History()
	last := history[len(history)-1]
	if last.Role != ticket.RoleAgent || last.Text != reply.Text {
		t.Errorf("Agent turn not recorded: %+v", last)
	}
}

func TestRespond_TranscriptExcludesGreeting(t *testing.T) {
	client := &scriptedClient{responses: []*model.ChatResponse{
		textResponse("a"), textResponse("b"),
	}}
	r, _ := newResponder(t, client)
	sess := session.New()

	r.Respond(context.Background(), sess, "first")
	r.Respond(context.Background(), sess, "second")

	for i, req := range client.requests {
		for _, msg := range req.Messages {
			if msg.Role != "system" && strings.Contains(msg.Content, "To begin, please state your name") {
				t.Errorf("Request %d leaked the seeded greeting", i)
			}
		}
	}

	// The transcript after the system prompt starts with a user turn.
	second := client.requests[1]
	if second.Messages[1].Role != "user" {
		t.Errorf("Transcript must start with a user turn, got %q", second.Messages[1].Role)
	}
}

func TestRespond_ToolCall(t *testing.T) {
	args := `{"requester":"1234","pid":"03264","subject":"PC won't boot","category":"Hardware","description":"No display","location":"HQ 3F","severity":"Major","contact_number":"555-0100","superior_contact":"boss@ubitech.example"}`
	client := &scriptedClient{responses: []*model.ChatResponse{
		toolCallResponse("create_ticket", args),
		textResponse("Your ticket is created. Try reseating the RAM."),
	}}
	r, s := newResponder(t, client)
	sess := session.New()

	reply := r.Respond(context.Background(), sess, "PID 03264, PC won't boot. Location HQ 3F, mobile 555-0100, superior boss@ubitech.example")

	if !reply.ToolUsed {
		t.Error("Tool-backed reply must report toolUsed=true")
	}
	if len(client.requests) != 2 {
		t.Fatalf("Expected the two-round protocol, got %d requests", len(client.requests))
	}

	// The ticket exists with structural defaults.
	tickets := s.Tickets()
	if len(tickets) != 1 {
		t.Fatalf("Expected 1 ticket in store, got %d", len(tickets))
	}
	if tickets[0].Status != ticket.StatusOpen || tickets[0].Technician != ticket.TechnicianUnassigned {
		t.Errorf("Structural defaults missing: %+v", tickets[0])
	}

	// The follow-up request carries assistant tool calls plus a tool result.
	followUp := client.requests[1]
	var sawToolMsg bool
	for _, msg := range followUp.Messages {
		if msg.Role == "tool" && msg.ToolCallID == "call_1" {
			sawToolMsg = true
			if !strings.Contains(msg.Content, tickets[0].ID) {
				t.Errorf("Tool result should carry the new ticket id: %s", msg.Content)
			}
		}
	}
	if !sawToolMsg {
		t.Error("Follow-up request missing the tool result message")
	}
	if followUp.ToolChoice != "none" {
		t.Errorf("Follow-up round must not request more tools, got %q", followUp.ToolChoice)
	}
}

func TestRespond_ToolFailureIsNarratable(t *testing.T) {
	client := &scriptedClient{responses: []*model.ChatResponse{
		toolCallResponse("lookup_ticket", `{"ticket_id":"99999"}`),
		textResponse("I could not find that ticket. Could you double-check the ID?"),
	}}
	r, _ := newResponder(t, client)
	sess := session.New()

	reply := r.Respond(context.Background(), sess, "what's the status of 99999?")

	if !reply.ToolUsed {
		t.Error("Expected toolUsed=true even when the tool missed")
	}

	followUp := client.requests[1]
	var payload string
	for _, msg := range followUp.Messages {
		if msg.Role == "tool" {
			payload = msg.Content
		}
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		t.Fatalf("Tool payload not JSON: %q", payload)
	}
	if parsed["error"] == "" {
		t.Errorf("Expected {\"error\": ...} payload, got %q", payload)
	}
}

func TestRespond_TransportFailure(t *testing.T) {
	client := &scriptedClient{err: fmt.Errorf("connection refused")}
	r, s := newResponder(t, client)
	sess := session.New()

	reply := r.Respond(context.Background(), sess, "hello?")

	if reply.ToolUsed {
		t.Error("Fallback reply must report toolUsed=false")
	}
	if reply.Text != FallbackText {
		t.Errorf("Unexpected fallback text: %q", reply.Text)
	}
	if len(s.Tickets()) != 0 {
		t.Error("Transport failure must not mutate the store")
	}

	// The session still records both turns so the user sees the apology.
	history := sess.History()
	if history[len(history)-1].Text != reply.Text {
		t.Error("Fallback turn not recorded in session")
	}
}

func TestRespond_FallbackNeverLeaksErrorDetail(t *testing.T) {
	leaky := `HTTP 401: API key not valid (raw: {"error":{"message":"API key not valid"}})`

	var replies []string
	for _, msg := range []string{"connection refused", leaky} {
		client := &scriptedClient{err: fmt.Errorf("%s", msg)}
		r, _ := newResponder(t, client)

		reply := r.Respond(context.Background(), session.New(), "hello?")
		if strings.Contains(reply.Text, "401") || strings.Contains(reply.Text, "API key") {
			t.Errorf("Transport error detail leaked into reply: %q", reply.Text)
		}
		replies = append(replies, reply.Text)
	}

	// Every transport failure reads identically to the user.
	if replies[0] != replies[1] || replies[0] != FallbackText {
		t.Errorf("Fallback text varies per failure: %q vs %q", replies[0], replies[1])
	}
}

func TestRespond_HistoryWindow(t *testing.T) {
	responses := make([]*model.ChatResponse, 0, 30)
	for i := 0; i < 30; i++ {
		responses = append(responses, textResponse(fmt.Sprintf("reply %d", i)))
	}
	client := &scriptedClient{responses: responses}
	r, _ := newResponder(t, client)
	sess := session.New()

	for i := 0; i < 30; i++ {
		r.Respond(context.Background(), sess, fmt.Sprintf("utterance %d", i))
	}

	last := client.requests[len(client.requests)-1]
	// system + windowed history + new utterance
	if got := len(last.Messages); got != 1+DefaultMaxHistory+1 {
		t.Errorf("Expected %d messages, got %d", 1+DefaultMaxHistory+1, got)
	}
}

func TestRespond_Scenario_CreateThenLogGrowsByOneLine(t *testing.T) {
	createArgs := `{"requester":"1234","pid":"03264","subject":"PC won't boot","category":"Hardware","description":"No display","location":"HQ 3F","severity":"Major","contact_number":"555-0100","superior_contact":"boss@ubitech.example"}`
	client := &scriptedClient{responses: []*model.ChatResponse{
		toolCallResponse("create_ticket", createArgs),
		textResponse("Ticket created. Try restarting the device."),
	}}
	r, s := newResponder(t, client)
	sess := session.New()

	r.Respond(context.Background(), sess, "PID 03264, PC won't boot")
	created := s.Tickets()[0]
	linesBefore := created.LogLineCount()

	appendArgs := fmt.Sprintf(`{"ticket_id":%q,"text_to_append":"User restarted device: no change"}`, created.ID)
	client.responses = []*model.ChatResponse{
		toolCallResponse("append_troubleshooting_log", appendArgs),
		textResponse("Logged. A technician will follow up."),
	}
	r.Respond(context.Background(), sess, "restarted it, no change")

	after, _ := s.GetByID(created.ID)
	if after.LogLineCount() != linesBefore+1 {
		t.Errorf("Expected log to grow by exactly one line, got %d -> %d", linesBefore, after.LogLineCount())
	}
}
