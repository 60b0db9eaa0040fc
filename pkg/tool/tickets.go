package tool

import (
	"encoding/json"

	"github.com/ubitech/deskmate/pkg/store"
)

// RegisterTicketTools registers the five ticket tools against the given store.
func RegisterTicketTools(r *Registry, s *store.Store) {
	r.Register(&LookupTicketTool{store: s})
	r.Register(&SearchTicketsTool{store: s})
	r.Register(&CreateTicketTool{store: s})
	r.Register(&AppendLogTool{store: s})
	r.Register(&CloseTicketTool{store: s})
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// LookupTicketTool retrieves a single ticket by id.
type LookupTicketTool struct {
	store *store.Store
}

func (t *LookupTicketTool) Name() string { return "lookup_ticket" }

func (t *LookupTicketTool) Description() string {
	return "Retrieves details of a technical support ticket by its Ticket ID."
}

func (t *LookupTicketTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"ticket_id": {Type: "string", Description: "The unique 5-digit Ticket ID."},
		},
		Required: []string{"ticket_id"},
	}
}

func (t *LookupTicketTool) Execute(params map[string]any) (*Result, error) {
	id := stringParam(params, "ticket_id")
	found, ok := t.store.GetByID(id)
	if !ok {
		return &Result{Success: false, Error: "Not found."}, nil
	}

	// Round-trip through JSON so the model sees the wire-shaped field names.
	raw, err := json.Marshal(found)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: fields}, nil
}

// SearchTicketsTool finds tickets by PID, PIN, or email. As a side effect it
// records the query as the identified user for downstream filtering.
type SearchTicketsTool struct {
	store *store.Store
}

func (t *SearchTicketsTool) Name() string { return "search_tickets" }

func (t *SearchTicketsTool) Description() string {
	return "Searches for tickets by Property ID (PID) or Employee PIN/Email when the user does not know the Ticket ID."
}

func (t *SearchTicketsTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"query": {Type: "string", Description: "The PID, PIN, or Email to search for."},
		},
		Required: []string{"query"},
	}
}

func (t *SearchTicketsTool) Execute(params map[string]any) (*Result, error) {
	query := stringParam(params, "query")
	matches := t.store.Search(query)
	t.store.SetIdentifiedUser(query)

	raw, err := json.Marshal(matches)
	if err != nil {
		return nil, err
	}
	var tickets []any
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []any{}
	}
	return &Result{Success: true, Data: map[string]any{
		"tickets": tickets,
		"count":   len(tickets),
	}}, nil
}

// CreateTicketTool creates a new support ticket through the optimistic store.
type CreateTicketTool struct {
	store *store.Store
}

func (t *CreateTicketTool) Name() string { return "create_ticket" }

func (t *CreateTicketTool) Description() string {
	return "Creates a new technical support ticket."
}

func (t *CreateTicketTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"requester":           {Type: "string", Description: "User Email or PIN."},
			"pid":                 {Type: "string", Description: "Property ID (PID)."},
			"subject":             {Type: "string", Description: "Issue summary."},
			"category":            {Type: "string", Description: "Asset category."},
			"description":         {Type: "string", Description: "Detailed description. For Company IDs, include Emergency Contact info here."},
			"location":            {Type: "string", Description: "Physical location or Department."},
			"severity":            {Type: "string", Enum: []string{"Minor", "Major", "Critical"}, Description: "AI-Determined Severity based on impact. Minor=SingleUser, Major=Dept, Critical=CompanyWide."},
			"contact_number":      {Type: "string", Description: "Mobile number."},
			"immediate_superior":  {Type: "string", Description: "Superior Name (Optional)."},
			"superior_contact":    {Type: "string", Description: "Superior Email (Required)."},
			"troubleshooting_log": {Type: "string", Description: "Summary of steps taken BEFORE ticket creation."},
			"attachment_url":      {Type: "string", Description: "URL(s) of uploaded files. IMPORTANT: You must provide the URL here if the user uploaded a file earlier in the conversation."},
			"requester_name":      {Type: "string", Description: "Full Name of the user."},
			"position":            {Type: "string", Description: "Job Position."},
			"department":          {Type: "string", Description: "Department or Project Name."},
		},
		Required: []string{"requester", "pid", "subject", "category", "description", "location", "severity", "contact_number", "superior_contact"},
	}
}

func (t *CreateTicketTool) Execute(params map[string]any) (*Result, error) {
	troubleshootingLog := stringParam(params, "troubleshooting_log")
	if troubleshootingLog == "" {
		troubleshootingLog = "No steps recorded."
	}

	created := t.store.Create(store.CreateRequest{
		Requester:          stringParam(params, "requester"),
		PID:                stringParam(params, "pid"),
		Subject:            stringParam(params, "subject"),
		Category:           stringParam(params, "category"),
		Description:        stringParam(params, "description"),
		Location:           stringParam(params, "location"),
		Severity:           stringParam(params, "severity"),
		ContactNumber:      stringParam(params, "contact_number"),
		ImmediateSuperior:  stringParam(params, "immediate_superior"),
		SuperiorContact:    stringParam(params, "superior_contact"),
		TroubleshootingLog: troubleshootingLog,
		AttachmentURL:      stringParam(params, "attachment_url"),
		RequesterName:      stringParam(params, "requester_name"),
		Department:         stringParam(params, "department"),
		Position:           stringParam(params, "position"),
	})
	t.store.SetIdentifiedUser(stringParam(params, "requester"))

	return &Result{Success: true, Data: map[string]any{
		"success":  true,
		"ticketId": created.ID,
		"message":  "Ticket created.",
	}}, nil
}

// AppendLogTool appends a troubleshooting step to an existing ticket.
type AppendLogTool struct {
	store *store.Store
}

func (t *AppendLogTool) Name() string { return "append_troubleshooting_log" }

func (t *AppendLogTool) Description() string {
	return "Appends text to the troubleshooting log of an EXISTING ticket. Call this when the user performs a suggested action (success or fail)."
}

func (t *AppendLogTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"ticket_id":      {Type: "string", Description: "The Ticket ID to update."},
			"text_to_append": {Type: "string", Description: "The text description of the action taken and its result (e.g., 'User reseated RAM: No display')."},
		},
		Required: []string{"ticket_id", "text_to_append"},
	}
}

func (t *AppendLogTool) Execute(params map[string]any) (*Result, error) {
	id := stringParam(params, "ticket_id")
	if err := t.store.AppendLog(id, stringParam(params, "text_to_append")); err != nil {
		return &Result{Success: false, Error: "Ticket " + id + " not found."}, nil
	}
	return &Result{Success: true, Data: map[string]any{"success": true}}, nil
}

// CloseTicketTool closes a ticket with a reason.
type CloseTicketTool struct {
	store *store.Store
}

func (t *CloseTicketTool) Name() string { return "close_ticket" }

func (t *CloseTicketTool) Description() string {
	return "Closes a ticket. Use this when the issue is resolved or the user explicitly asks to close a ticket."
}

func (t *CloseTicketTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"ticket_id": {Type: "string", Description: "The Ticket ID to close."},
			"reason":    {Type: "string", Description: "The reason for closing (e.g., 'Resolved by user', 'Hardware replaced')."},
		},
		Required: []string{"ticket_id", "reason"},
	}
}

func (t *CloseTicketTool) Execute(params map[string]any) (*Result, error) {
	id := stringParam(params, "ticket_id")
	if err := t.store.CloseTicket(id, stringParam(params, "reason")); err != nil {
		return &Result{Success: false, Error: "Ticket " + id + " not found."}, nil
	}
	return &Result{Success: true, Data: map[string]any{
		"success": true,
		"message": "Ticket Closed.",
	}}, nil
}
