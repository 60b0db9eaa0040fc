// Package agent implements the conversational orchestrator: it drives the
// per-turn dialogue with the model service and dispatches tool calls into
// the ticket store. The protocol is strictly two rounds: one completion that
// may request tools, and at most one follow-up completion carrying the tool
// results back for the final text.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ubitech/deskmate/pkg/audit"
	"github.com/ubitech/deskmate/pkg/logging"
	"github.com/ubitech/deskmate/pkg/model"
	"github.com/ubitech/deskmate/pkg/session"
	"github.com/ubitech/deskmate/pkg/tool"
)

// DefaultMaxHistory is the transcript window sent to the model, in turns.
const DefaultMaxHistory = 20

const defaultTemperature = 0.2

// FallbackText is the reply for model-transport failures. It is deliberately
// constant: transport errors carry raw response bodies and must never reach
// the user.
const FallbackText = "System Error. Please try again."

// State tracks where a respond cycle is in the turn protocol.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateAwaitingFollowUp
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateAwaitingFollowUp:
		return "awaiting_follow_up"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Reply is the outcome of one conversation turn. Failures surface as
// apology text, never as an error: the conversation is never blocked.
type Reply struct {
	Text     string `json:"text"`
	ToolUsed bool   `json:"toolUsed"`
}

// ModelClient is the slice of the model service the responder needs.
type ModelClient interface {
	ChatCompletion(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
}

// Responder orchestrates conversation turns.
// A single Responder serves many sessions; overlapping Respond calls for the
// same session are the caller's responsibility to serialize.
type Responder struct {
	client      ModelClient
	tools       *tool.Registry
	sink        audit.Sink
	logger      *logging.Logger
	maxHistory  int
	temperature float64
}

// Option configures a Responder.
type Option func(*Responder)

// WithAuditSink routes (utterance, reply) pairs to the given sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(r *Responder) { r.sink = sink }
}

// WithLogger attaches a structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Responder) { r.logger = l }
}

// WithMaxHistory overrides the transcript window.
func WithMaxHistory(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.maxHistory = n
		}
	}
}

// WithTemperature overrides the sampling temperature sent on every request.
func WithTemperature(t float64) Option {
	return func(r *Responder) {
		if t >= 0 {
			r.temperature = t
		}
	}
}

// NewResponder creates an orchestrator over the given model client and tools.
func NewResponder(client ModelClient, tools *tool.Registry, opts ...Option) *Responder {
	r := &Responder{
		client:      client,
		tools:       tools,
		sink:        audit.NopSink{},
		logger:      logging.NewNopLogger(),
		maxHistory:  DefaultMaxHistory,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond runs one conversation turn: the utterance goes to the model with
// the windowed transcript and tool catalog; any requested tools execute
// against the store; the final text comes back with a flag saying whether
// tools ran. Both session turns are recorded and the exchange is forwarded
// to the audit sink.
func (r *Responder) Respond(ctx context.Context, sess *session.Session, utterance string) Reply {
	history := sess.ModelHistory()
	if len(history) > r.maxHistory {
		history = history[len(history)-r.maxHistory:]
	}

	messages := make([]model.Message, 0, len(history)+2)
	messages = append(messages, model.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, model.Message{Role: "user", Content: utterance})

	sess.AddUserTurn(utterance)

	reply := r.converse(ctx, sess.ID(), messages)

	sess.AddAgentTurn(reply.Text, reply.ToolUsed)
	r.sink.Record(audit.ActivityChat, utterance, reply.Text)
	return reply
}

func (r *Responder) converse(ctx context.Context, sessionID string, messages []model.Message) Reply {
	state := StateAwaitingModel
	r.logState(sessionID, state)

	resp, err := r.client.ChatCompletion(ctx, model.ChatRequest{
		Messages:    messages,
		Temperature: r.temperature,
		Tools:       r.tools.ToOpenAIFunctions(),
		ToolChoice:  "auto",
	})
	if err != nil {
		return r.fallback(sessionID, err)
	}
	if len(resp.Choices) == 0 {
		return r.fallback(sessionID, fmt.Errorf("model returned no choices"))
	}

	assistant := resp.Choices[0].Message
	if len(assistant.ToolCalls) == 0 {
		r.logState(sessionID, StateDone)
		return Reply{Text: assistant.Content}
	}

	state = StateExecutingTools
	r.logState(sessionID, state)

	messages = append(messages, assistant)
	for _, call := range assistant.ToolCalls {
		messages = append(messages, model.Message{
			Role:       "tool",
			Content:    r.executeCall(sessionID, call),
			ToolCallID: call.ID,
			Name:       call.Function.Name,
		})
	}

	state = StateAwaitingFollowUp
	r.logState(sessionID, state)

	final, err := r.client.ChatCompletion(ctx, model.ChatRequest{
		Messages:    messages,
		Temperature: r.temperature,
		Tools:       r.tools.ToOpenAIFunctions(),
		ToolChoice:  "none",
	})
	if err != nil {
		return r.fallback(sessionID, err)
	}
	if len(final.Choices) == 0 {
		return r.fallback(sessionID, fmt.Errorf("model returned no choices"))
	}

	r.logState(sessionID, StateDone)
	return Reply{Text: final.Choices[0].Message.Content, ToolUsed: true}
}

// executeCall runs one tool call and renders its payload for the model.
// Every failure mode collapses to {"error": reason} so the model can narrate
// a recovery instead of the turn dying.
func (r *Responder) executeCall(sessionID string, call model.ToolCall) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return errorPayload("invalid arguments: " + err.Error())
	}

	result, err := r.tools.Execute(call.Function.Name, args)
	if err != nil {
		r.logger.Warn(logging.CategoryConversation, "tool_failed", call.Function.Name, map[string]any{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return errorPayload(err.Error())
	}

	payload, err := tool.ToJSON(result)
	if err != nil {
		return errorPayload("unencodable result: " + err.Error())
	}
	return payload
}

// fallback produces the fixed apology for model transport failures.
// Nothing is retried at this layer and no state is mutated. The underlying
// error goes to the log only.
func (r *Responder) fallback(sessionID string, err error) Reply {
	r.logger.Error(logging.CategoryModel, "turn_failed", "model service unavailable", map[string]any{
		"sessionId": sessionID,
		"error":     err.Error(),
	})
	return Reply{Text: FallbackText}
}

func (r *Responder) logState(sessionID string, s State) {
	r.logger.Debug(logging.CategoryConversation, "state", s.String(), map[string]any{
		"sessionId": sessionID,
	})
}

func errorPayload(reason string) string {
	data, _ := json.Marshal(map[string]string{"error": reason})
	return string(data)
}
