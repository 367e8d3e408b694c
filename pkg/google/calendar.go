package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const listPageSize = 250

// CalendarClient is a Google Calendar API client bound to one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
}

// NewCalendarClient creates a new Google Calendar client.
func NewCalendarClient(srv *calendar.Service, calendarID string) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID}
}

// CalendarID returns the id of the calendar this client writes to.
func (c *CalendarClient) CalendarID() string {
	return c.calendarID
}

// ListEvents fetches every single event starting at or after timeMin,
// following page tokens until the listing is exhausted.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	var items []*calendar.Event
	pageToken := ""
	for {
		call := c.srv.Events.List(c.calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			SingleEvents(true).
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
		}
		items = append(items, events.Items...)
		if events.NextPageToken == "" {
			break
		}
		pageToken = events.NextPageToken
	}
	log.WithFields(log.Fields{"calendar": c.calendarID, "events": len(items)}).Debug("listed calendar events")
	return items, nil
}

// InsertEvent creates a new event.
func (c *CalendarClient) InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
}

// UpdateEvent replaces the event with the given id.
func (c *CalendarClient) UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar. An event that is already
// gone counts as deleted.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusGone || gerr.Code == http.StatusNotFound) {
		log.WithField("event", eventID).Debug("event already deleted")
		return nil
	}
	return err
}
