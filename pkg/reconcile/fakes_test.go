package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harrisonrobin/opcal/pkg/audit"
	"google.golang.org/api/calendar/v3"
)

type call struct {
	op      string
	eventID string
	summary string
}

// fakeCalendar keeps events in memory and fails calls whose summary or event id is listed in failOn.
type fakeCalendar struct {
	events  []*calendar.Event
	calls   []call
	failOn  map[string]bool
	listErr error
	nextID  int
}

func (f *fakeCalendar) ListEvents(_ context.Context, _ time.Time) ([]*calendar.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeCalendar) InsertEvent(_ context.Context, ev *calendar.Event) (*calendar.Event, error) {
	f.calls = append(f.calls, call{op: "insert", summary: ev.Summary})
	if f.failOn[ev.Summary] {
		return nil, errors.New("quota exceeded")
	}
	f.nextID++
	created := *ev
	created.Id = fmt.Sprintf("new-%d", f.nextID)
	f.events = append(f.events, &created)
	return &created, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	f.calls = append(f.calls, call{op: "update", eventID: eventID, summary: ev.Summary})
	if f.failOn[eventID] {
		return nil, errors.New("backend error")
	}
	for i, existing := range f.events {
		if existing.Id == eventID {
			updated := *ev
			updated.Id = eventID
			f.events[i] = &updated
			return &updated, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.calls = append(f.calls, call{op: "delete", eventID: eventID})
	if f.failOn[eventID] {
		return errors.New("forbidden")
	}
	for i, existing := range f.events {
		if existing.Id == eventID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

type fakeSource struct {
	records []json.RawMessage
	err     error
}

func (f *fakeSource) WorkPackages(context.Context) ([]json.RawMessage, error) {
	return f.records, f.err
}

type memorySink struct {
	records []audit.Record
	err     error
}

func (m *memorySink) Append(_ context.Context, records []audit.Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memorySink) row(label string) []string {
	for _, r := range m.records {
		if r.Label == label {
			return r.Items
		}
	}
	return nil
}
