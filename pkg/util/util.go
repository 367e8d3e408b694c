package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/opcal/pkg/labels"
	"github.com/harrisonrobin/opcal/pkg/model"
	"google.golang.org/api/calendar/v3"
)

const (
	EventDuration = time.Hour

	dateLayout = "2006-01-02"
)

// Reminders returns the fixed reminder policy of every synchronized event:
// popups one day and half an hour before start.
func Reminders() *calendar.EventReminders {
	return &calendar.EventReminders{
		UseDefault: false,
		Overrides: []*calendar.EventReminder{
			{Method: "popup", Minutes: 24 * 60},
			{Method: "popup", Minutes: 30},
		},
		ForceSendFields: []string{"UseDefault"},
	}
}

// CombineDateAndHour joins a YYYY-MM-DD date with a time of day given as
// HH:MM:SS, HH:MM or HH. Fractional seconds are truncated and an empty hour
// means midnight.
func CombineDateAndHour(date, hour string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: %w", date, err)
	}

	var clock [3]int
	hour = strings.TrimSpace(hour)
	if hour != "" {
		parts := strings.Split(hour, ":")
		if len(parts) > 3 {
			return time.Time{}, fmt.Errorf("invalid due hour %q", hour)
		}
		for i, p := range parts {
			if i == 2 {
				p, _, _ = strings.Cut(p, ".")
			}
			n, err := strconv.Atoi(p)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid due hour %q: %w", hour, err)
			}
			clock[i] = n
		}
		if clock[0] > 23 || clock[1] > 59 || clock[2] > 59 || clock[0] < 0 || clock[1] < 0 || clock[2] < 0 {
			return time.Time{}, fmt.Errorf("due hour %q out of range", hour)
		}
	}

	return time.Date(d.Year(), d.Month(), d.Day(), clock[0], clock[1], clock[2], 0, loc), nil
}

// ConvertTaskToCalendarEvent builds the event body for a task. The same task
// always yields the same body.
func ConvertTaskToCalendarEvent(task *model.Task, loc *time.Location) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("could not convert nil Task")
	}

	start, err := CombineDateAndHour(task.DueDate, task.DueHour, loc)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	end := start.Add(EventDuration)

	description := labels.Encode(task.Description, labels.Metadata{
		Parent:    task.Parent,
		Assignee:  task.Assignee,
		UpdatedAt: task.UpdatedAt,
		DueHour:   task.DueHour,
	})

	event := &calendar.Event{
		Summary:     fmt.Sprintf("%d:%s", task.ID, task.Subject),
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
		},
		Reminders: Reminders(),
	}
	return event, nil
}
