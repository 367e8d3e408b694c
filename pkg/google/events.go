package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/opcal/pkg/labels"
	"github.com/harrisonrobin/opcal/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// SummarySeparator splits "<work package id>:<subject>" summaries.
const SummarySeparator = ":"

// ParseEvents decodes calendar events back into the work package id space.
// Events that do not follow the summary convention are returned as parse
// errors and left out of the result.
func ParseEvents(events []*calendar.Event) (map[int]model.Event, []model.ParseError) {
	parsed := make(map[int]model.Event, len(events))
	var errs []model.ParseError

	for _, item := range events {
		ev, err := parseEvent(item)
		if err == nil {
			if _, dup := parsed[ev.WPID]; dup {
				err = fmt.Errorf("duplicate event for work package %d", ev.WPID)
			}
		}
		if err != nil {
			errs = append(errs, model.ParseError{Record: rawEvent(item), Err: err})
			continue
		}
		parsed[ev.WPID] = ev
	}
	return parsed, errs
}

func parseEvent(item *calendar.Event) (model.Event, error) {
	if item == nil {
		return model.Event{}, errors.New("nil event")
	}
	idPart, subject, found := strings.Cut(item.Summary, SummarySeparator)
	if !found {
		return model.Event{}, fmt.Errorf("invalid summary (expected '<id>:<subject>'): %q", item.Summary)
	}
	wpID, err := strconv.Atoi(strings.TrimSpace(idPart))
	if err != nil {
		return model.Event{}, fmt.Errorf("work package id is not an integer: %q", idPart)
	}

	meta := labels.Decode(item.Description)
	ev := model.Event{
		EventID:   item.Id,
		WPID:      wpID,
		Subject:   strings.TrimSpace(subject),
		Parent:    meta.Parent,
		Assignee:  meta.Assignee,
		UpdatedAt: meta.UpdatedAt,
		DueHour:   meta.DueHour,
	}

	end := item.End
	switch {
	case end != nil && end.DateTime != "":
		t, err := time.Parse(time.RFC3339, end.DateTime)
		if err != nil {
			return model.Event{}, fmt.Errorf("invalid end time %q: %w", end.DateTime, err)
		}
		ev.DueDate = t.Format("2006-01-02")
		if ev.DueHour == "" {
			ev.DueHour = t.Format("15:04:05")
		}
	case end != nil && end.Date != "":
		ev.DueDate = end.Date
		if ev.DueHour == "" {
			ev.DueHour = model.ZeroHour
		}
	}
	return ev, nil
}

func rawEvent(item *calendar.Event) json.RawMessage {
	if item == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(item)
	if err != nil {
		return json.RawMessage(strconv.Quote(item.Summary))
	}
	return b
}
