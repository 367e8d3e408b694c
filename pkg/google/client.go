package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes are the OAuth scopes needed to write events and append audit rows.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
	sheets.SpreadsheetsScope,
}

// NewClient creates a Google Calendar client for calendarRef, which is either
// a calendar id ("primary", "...@group.calendar.google.com") or the summary of
// a calendar in the user's list.
func NewClient(ctx context.Context, httpClient *http.Client, calendarRef string, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	if calendarRef == "primary" || strings.Contains(calendarRef, "@") {
		return NewCalendarClient(srv, calendarRef), nil
	}

	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	var calendarID string
	for _, item := range calendarList.Items {
		if item.Summary == calendarRef {
			calendarID = item.Id
			break
		}
	}

	if calendarID == "" {
		return nil, fmt.Errorf("calendar '%s' not found", calendarRef)
	}

	return NewCalendarClient(srv, calendarID), nil
}

// NewSheetsService creates a Sheets API service sharing the calendar's credentials.
func NewSheetsService(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*sheets.Service, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Sheets client: %w", err)
	}
	return srv, nil
}
