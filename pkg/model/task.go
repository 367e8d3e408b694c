package model

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	NoParent   = "No parent"
	Unassigned = "Not assigned to anyone"
	ZeroHour   = "00:00:00"
)

// Task is a work package normalized for reconciliation. ID is the key.
type Task struct {
	ID          int
	Subject     string
	Description string // rich (HTML) form, copied verbatim into the event body
	Parent      string // "<id>:<title>" or NoParent
	Assignee    string
	DueDate     string // YYYY-MM-DD
	DueHour     string
	UpdatedAt   string // opaque fingerprint, compared by equality only
}

// Event is a calendar entry decoded back into the task id space.
// Empty strings mean the field could not be recovered from the event.
type Event struct {
	EventID   string
	WPID      int
	Subject   string
	Parent    string
	Assignee  string
	UpdatedAt string
	DueDate   string
	DueHour   string
}

// ParseError keeps a record that could not be normalized together with the reason.
type ParseError struct {
	Record json.RawMessage
	Err    error
}

const maxRecordInError = 256

func (e ParseError) Error() string {
	rec := string(e.Record)
	if len(rec) > maxRecordInError {
		cut := maxRecordInError
		for cut > 0 && !utf8.RuneStart(rec[cut]) {
			cut--
		}
		rec = rec[:cut] + "..."
	}
	return fmt.Sprintf("%v: %s", e.Err, rec)
}

func (e ParseError) Unwrap() error {
	return e.Err
}
