// Package audit appends the outcome of each reconciliation pass to an
// append-only log. It records, it does not decide.
package audit

import (
	"context"
	"errors"
	"time"
)

// Sheet ranges the rows are appended to, matching the layout of the log spreadsheet.
const (
	ActionsRange = "actions"
	ErrorsRange  = "errors!A1"
)

// Row is one labeled list, e.g. the ids to create or the delete errors.
type Row struct {
	Label string
	Items []string
}

// Report is everything one pass has to say.
type Report struct {
	PassID  string
	Time    time.Time
	Actions []Row
	Errors  []Row
}

// Record is a single audit line as handed to a sink.
type Record struct {
	Time   time.Time `json:"time"`
	PassID string    `json:"pass_id"`
	Range  string    `json:"range"`
	Label  string    `json:"label"`
	Items  []string  `json:"items"`
}

// Sink stores audit records. Implementations only ever append.
type Sink interface {
	Append(ctx context.Context, records []Record) error
}

// Recorder turns reports into records for a sink.
type Recorder struct {
	sink Sink
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record appends one record per row of the report, actions first.
func (r *Recorder) Record(ctx context.Context, rep Report) error {
	if r == nil || r.sink == nil {
		return nil
	}
	records := make([]Record, 0, len(rep.Actions)+len(rep.Errors))
	for _, row := range rep.Actions {
		records = append(records, record(rep, ActionsRange, row))
	}
	for _, row := range rep.Errors {
		records = append(records, record(rep, ErrorsRange, row))
	}
	return r.sink.Append(ctx, records)
}

func record(rep Report, rng string, row Row) Record {
	items := row.Items
	if items == nil {
		items = []string{}
	}
	return Record{Time: rep.Time, PassID: rep.PassID, Range: rng, Label: row.Label, Items: items}
}

// MultiSink appends to every sink, trying all of them even when one fails.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, records []Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
