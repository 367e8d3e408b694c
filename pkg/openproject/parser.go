package openproject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/opcal/pkg/model"
)

const (
	// SuppressionMarker as the first description line keeps a work package off the calendar.
	SuppressionMarker = "!!!"

	DefaultDueHourField = "customField19"
)

// ParseWorkPackages normalizes raw work package records into tasks keyed by id.
// Suppressed records are dropped silently; records that cannot be normalized
// are returned as parse errors and the rest of the batch is still parsed.
func ParseWorkPackages(records []json.RawMessage, dueHourField string) (map[int]model.Task, []model.ParseError) {
	if dueHourField == "" {
		dueHourField = DefaultDueHourField
	}
	tasks := make(map[int]model.Task, len(records))
	var errs []model.ParseError

	for _, raw := range records {
		task, skip, err := parseWorkPackage(raw, dueHourField)
		if err != nil {
			errs = append(errs, model.ParseError{Record: raw, Err: err})
			continue
		}
		if skip {
			continue
		}
		if _, dup := tasks[task.ID]; dup {
			errs = append(errs, model.ParseError{Record: raw, Err: fmt.Errorf("duplicate work package id %d", task.ID)})
			continue
		}
		tasks[task.ID] = task
	}
	return tasks, errs
}

// parseWorkPackage validates one record. skip reports a suppressed record.
func parseWorkPackage(raw json.RawMessage, dueHourField string) (task model.Task, skip bool, err error) {
	var wp WorkPackage
	if err := json.Unmarshal(raw, &wp); err != nil {
		return task, false, fmt.Errorf("failed to decode work package: %w", err)
	}
	if Suppressed(&wp) {
		return task, true, nil
	}
	if wp.ID <= 0 {
		return task, false, errors.New("work package has no id")
	}

	task = model.Task{
		ID:          wp.ID,
		Subject:     strings.TrimSpace(wp.Subject),
		Description: wp.Description.HTML,
		Parent:      parent(&wp),
		Assignee:    model.Unassigned,
		UpdatedAt:   wp.UpdatedAt,
	}
	if wp.Links.Assignee != nil && wp.Links.Assignee.Title != "" {
		task.Assignee = wp.Links.Assignee.Title
	}

	if wp.DueDate != "" {
		hour, err := wp.CustomString(dueHourField)
		if err != nil {
			return task, false, err
		}
		if hour == "" {
			hour = model.ZeroHour
		}
		task.DueDate, task.DueHour = wp.DueDate, hour
	} else {
		task.DueDate, task.DueHour = splitTimestamp(wp.CreatedAt)
	}
	return task, false, nil
}

// Suppressed reports whether the work package must not be synchronized: its
// raw description is missing or starts with the suppression marker line.
func Suppressed(wp *WorkPackage) bool {
	if wp.Description == nil || wp.Description.Raw == nil {
		return true
	}
	first, _, _ := strings.Cut(*wp.Description.Raw, "\n")
	return first == SuppressionMarker
}

func parent(wp *WorkPackage) string {
	p := wp.Links.Parent
	if p == nil || p.Href == "" || p.Title == "" {
		return model.NoParent
	}
	href := strings.TrimRight(p.Href, "/")
	id := href[strings.LastIndex(href, "/")+1:]
	return id + ":" + p.Title
}

// splitTimestamp turns "2025-05-23T10:52:34.297Z" into its date and
// time-of-day parts, dropping the zone designator.
func splitTimestamp(ts string) (date, hour string) {
	date, hour, found := strings.Cut(ts, "T")
	if !found {
		return ts, model.ZeroHour
	}
	return date, stripZone(hour)
}

func stripZone(hour string) string {
	if strings.HasSuffix(hour, "Z") {
		return strings.TrimSuffix(hour, "Z")
	}
	if i := strings.LastIndexAny(hour, "+-"); i > 0 {
		return hour[:i]
	}
	return hour
}
