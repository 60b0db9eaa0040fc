package ticket

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion tags the row contract carried on every gateway write. The
// original sheet backend identified columns purely by position, which meant a
// reorder between writer and reader silently corrupted every field after the
// moved one. Writes now carry this tag so the backend can reject rows built
// against a different layout.
const SchemaVersion = 2

// Columns is the fixed 18-column order of the remote row store. Readers that
// receive positional rows decode against this slice; it must never be
// reordered without bumping SchemaVersion.
var Columns = [18]string{
	"id",
	"dateCreated",
	"pid",
	"requesterEmail",
	"employeePin",
	"immediateSuperior",
	"superiorContact",
	"subject",
	"category",
	"description",
	"technician",
	"location",
	"status",
	"severity",
	"contactNumber",
	"techNotes",
	"troubleshootingLog",
	"attachmentUrl",
}

// Row returns the ticket's fields in positional column order.
func (t *Ticket) Row() [18]string {
	return [18]string{
		t.ID,
		t.DateCreated,
		t.PID,
		t.RequesterEmail,
		t.EmployeePIN,
		t.ImmediateSuperior,
		t.SuperiorContact,
		t.Subject,
		t.Category,
		t.Description,
		t.Technician,
		t.Location,
		string(t.Status),
		string(t.Severity),
		t.ContactNumber,
		t.TechNotes,
		t.TroubleshootingLog,
		t.AttachmentURL,
	}
}

// FromRow builds a ticket from a positional row. Rows shorter or longer than
// the column contract are rejected instead of being misaligned silently.
func FromRow(row []string) (Ticket, error) {
	if len(row) != len(Columns) {
		return Ticket{}, fmt.Errorf("row has %d columns, schema v%d requires %d", len(row), SchemaVersion, len(Columns))
	}
	return Ticket{
		ID:                 row[0],
		DateCreated:        row[1],
		PID:                row[2],
		RequesterEmail:     row[3],
		EmployeePIN:        row[4],
		ImmediateSuperior:  row[5],
		SuperiorContact:    row[6],
		Subject:            row[7],
		Category:           row[8],
		Description:        row[9],
		Technician:         row[10],
		Location:           row[11],
		Status:             Status(row[12]),
		Severity:           Severity(row[13]),
		ContactNumber:      row[14],
		TechNotes:          row[15],
		TroubleshootingLog: row[16],
		AttachmentURL:      row[17],
	}, nil
}

// DecodeSnapshot parses a full-snapshot read. The gateway serves named-field
// objects; older deployments served bare positional arrays. Both are
// accepted, and numeric cells (the sheet returns PINs and ids as numbers) are
// normalized to strings.
func DecodeSnapshot(data []byte) ([]Ticket, error) {
	var rawRows []json.RawMessage
	if err := json.Unmarshal(data, &rawRows); err != nil {
		return nil, fmt.Errorf("snapshot is not a JSON array: %w", err)
	}

	tickets := make([]Ticket, 0, len(rawRows))
	for i, raw := range rawRows {
		var cells []any
		if err := json.Unmarshal(raw, &cells); err == nil {
			row := make([]string, len(cells))
			for j, cell := range cells {
				row[j] = stringifyCell(cell)
			}
			t, err := FromRow(row)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			tickets = append(tickets, t)
			continue
		}

		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("row %d: neither positional nor named: %w", i, err)
		}
		row := make([]string, len(Columns))
		for j, name := range Columns {
			row[j] = stringifyCell(fields[name])
		}
		t, err := FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func stringifyCell(v any) string {
	switch cell := v.(type) {
	case nil:
		return ""
	case string:
		return cell
	case float64:
		// Sheet cells holding ids/PINs come back as numbers.
		if cell == float64(int64(cell)) {
			return fmt.Sprintf("%d", int64(cell))
		}
		return fmt.Sprintf("%v", cell)
	default:
		return fmt.Sprintf("%v", cell)
	}
}
