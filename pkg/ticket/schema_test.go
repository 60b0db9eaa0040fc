package ticket

import (
	"testing"
)

func sampleTicket() Ticket {
	return Ticket{
		ID:                 "83118",
		DateCreated:        "October 8, 2024",
		PID:                "03264",
		RequesterEmail:     "annamichelle@example.com",
		Subject:            "Laptop OS activation",
		Category:           "Laptop",
		Description:        "Activate OS of newly issued laptop",
		Technician:         TechnicianUnassigned,
		Location:           "CORPORATE OFFICE INTERNAL AUDIT DEPT",
		Status:             StatusOpen,
		Severity:           SeverityMinor,
		ContactNumber:      "09515182952",
		TroubleshootingLog: "[09:15]: Restarted laptop: no change",
	}
}

func TestRowRoundTrip(t *testing.T) {
	orig := sampleTicket()
	row := orig.Row()

	decoded, err := FromRow(row[:])
	if err != nil {
		t.Fatalf("FromRow failed: %v", err)
	}
	if decoded != orig {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, orig)
	}
}

func TestFromRow_WrongArity(t *testing.T) {
	tests := []struct {
		name string
		cols int
	}{
		{"too_short", 17},
		{"too_long", 19},
		{"empty", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := make([]string, tt.cols)
			if _, err := FromRow(row); err == nil {
				t.Errorf("FromRow accepted %d columns", tt.cols)
			}
		})
	}
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{
			name: "named_fields",
			payload: `[{"id": 83118, "dateCreated": "October 8, 2024", "pid": "03264",
				"requesterEmail": "a@b.com", "employeePin": 40884,
				"subject": "s", "category": "c", "description": "d",
				"technician": "Unassigned", "location": "HQ",
				"status": "Open", "severity": "Minor", "contactNumber": "0951"}]`,
			want: 1,
		},
		{
			name:    "positional_row",
			payload: `[["83118","Oct 8","03264","a@b.com","","","","s","c","d","Unassigned","HQ","Open","Minor","0951","","",""]]`,
			want:    1,
		},
		{
			name:    "empty_array",
			payload: `[]`,
			want:    0,
		},
		{
			name:    "not_an_array",
			payload: `{"error": "quota exceeded"}`,
			wantErr: true,
		},
		{
			name:    "html_error_page",
			payload: `<html><body>Service unavailable</body></html>`,
			wantErr: true,
		},
		{
			name:    "positional_row_wrong_arity",
			payload: `[["83118","Oct 8","03264"]]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSnapshot([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSnapshot failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("decoded %d tickets, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDecodeSnapshot_NumericCellsNormalized(t *testing.T) {
	payload := `[{"id": 83118, "pid": 3264, "employeePin": 40884,
		"dateCreated": "", "requesterEmail": "", "subject": "", "category": "",
		"description": "", "technician": "", "location": "", "status": "Open",
		"severity": "Minor", "contactNumber": ""}]`

	got, err := DecodeSnapshot([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if got[0].ID != "83118" {
		t.Errorf("ID = %q, want %q", got[0].ID, "83118")
	}
	if got[0].EmployeePIN != "40884" {
		t.Errorf("EmployeePIN = %q, want %q", got[0].EmployeePIN, "40884")
	}
}

func TestLogLineCount(t *testing.T) {
	var tk Ticket
	if tk.LogLineCount() != 0 {
		t.Errorf("empty log count = %d, want 0", tk.LogLineCount())
	}

	tk.AppendLogLine("[09:00]: first")
	tk.AppendLogLine("[09:05]: second")
	if got := tk.LogLineCount(); got != 2 {
		t.Errorf("log count = %d, want 2", got)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"Critical", SeverityCritical},
		{"critical", SeverityCritical},
		{"Major", SeverityMajor},
		{"Minor", SeverityMinor},
		{"", SeverityMinor},
		{"catastrophic", SeverityMinor},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.in); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequester(t *testing.T) {
	email := Ticket{RequesterEmail: "a@b.com", EmployeePIN: ""}
	if email.Requester() != "a@b.com" {
		t.Errorf("Requester() = %q, want email", email.Requester())
	}
	pin := Ticket{RequesterEmail: "N/A", EmployeePIN: "40884"}
	if pin.Requester() != "40884" {
		t.Errorf("Requester() = %q, want PIN", pin.Requester())
	}
}
