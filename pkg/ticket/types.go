// Package ticket defines the support-ticket domain model shared by the
// store, the gateway client, and the tool handlers.
package ticket

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In-Progress"
	StatusOnHold     Status = "On-Hold"
	StatusDone       Status = "Done"
	StatusClosed     Status = "Closed"
)

// Severity is the impact classification assigned at creation time.
type Severity string

const (
	SeverityMinor    Severity = "Minor"    // single user
	SeverityMajor    Severity = "Major"    // department
	SeverityCritical Severity = "Critical" // company-wide
)

// TechnicianUnassigned is the sentinel value for tickets nobody picked up yet.
const TechnicianUnassigned = "Unassigned"

// ParseSeverity maps free-form model output onto a known severity.
// Unrecognized values fall back to Minor rather than failing the mutation.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "major":
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

// Ticket is the unit of work tracked in the remote system of record.
// Field names mirror the gateway's row schema; see schema.go for the
// positional column contract.
type Ticket struct {
	ID                 string   `json:"id"`
	DateCreated        string   `json:"dateCreated"`
	PID                string   `json:"pid"`
	RequesterEmail     string   `json:"requesterEmail,omitempty"`
	EmployeePIN        string   `json:"employeePin,omitempty"`
	ImmediateSuperior  string   `json:"immediateSuperior,omitempty"`
	SuperiorContact    string   `json:"superiorContact,omitempty"`
	Subject            string   `json:"subject"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	Technician         string   `json:"technician"`
	Location           string   `json:"location"`
	Status             Status   `json:"status"`
	Severity           Severity `json:"severity"`
	ContactNumber      string   `json:"contactNumber"`
	TechNotes          string   `json:"techNotes,omitempty"`
	TroubleshootingLog string   `json:"troubleshootingLog,omitempty"`
	AttachmentURL      string   `json:"attachmentUrl,omitempty"`
}

// Requester returns whichever identification channel the ticket carries.
func (t *Ticket) Requester() string {
	if t.RequesterEmail != "" && t.RequesterEmail != "N/A" {
		return t.RequesterEmail
	}
	return t.EmployeePIN
}

// LogLineCount reports the number of lines in the troubleshooting log.
// The log is append-only, so this count never decreases across mutations.
func (t *Ticket) LogLineCount() int {
	if t.TroubleshootingLog == "" {
		return 0
	}
	return strings.Count(t.TroubleshootingLog, "\n") + 1
}

// AppendLogLine appends one line to the troubleshooting log.
func (t *Ticket) AppendLogLine(line string) {
	if t.TroubleshootingLog == "" {
		t.TroubleshootingLog = line
		return
	}
	t.TroubleshootingLog += "\n" + line
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// ChatTurn is one utterance in a support conversation. Turns are ephemeral:
// they live for the session and reach the remote side only through the audit
// sink.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ToolUsed  bool      `json:"tool_used,omitempty"`
}
