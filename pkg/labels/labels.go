// Package labels encodes the metadata a calendar event cannot hold natively
// as "Label: value" lines appended to the event description.
package labels

import (
	"strings"
)

const (
	Parent    = "Parent:"
	Assignee  = "Assignee:"
	UpdatedAt = "UpdatedAt:"
	DueHour   = "DueHour:"
)

// Metadata is the structured form of the labeled lines.
type Metadata struct {
	Parent    string
	Assignee  string
	UpdatedAt string
	DueHour   string
}

// Encode appends the labeled lines to body, one per line, in a fixed order.
func Encode(body string, m Metadata) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n" + Parent + " " + m.Parent)
	b.WriteString("\n" + Assignee + " " + m.Assignee)
	b.WriteString("\n" + UpdatedAt + " " + m.UpdatedAt)
	b.WriteString("\n" + DueHour + " " + m.DueHour)
	return b.String()
}

// Decode scans description line by line. Lines are trimmed before matching,
// unknown lines are ignored and a label seen twice keeps its last value.
func Decode(description string) Metadata {
	var m Metadata
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if v, ok := value(line, Parent); ok {
			m.Parent = v
		} else if v, ok := value(line, Assignee); ok {
			m.Assignee = v
		} else if v, ok := value(line, UpdatedAt); ok {
			m.UpdatedAt = v
		} else if v, ok := value(line, DueHour); ok {
			m.DueHour = v
		}
	}
	return m
}

func value(line, label string) (string, bool) {
	if !strings.HasPrefix(line, label) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, label)), true
}
