package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type calendarStub struct {
	*httptest.Server
	inserted []calendar.Event
	updated  map[string]calendar.Event
	deleted  []string
}

func newCalendarStub(t *testing.T) *calendarStub {
	t.Helper()
	stub := &calendarStub{updated: make(map[string]calendar.Event)}
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"id": "personal@example.com", "summary": "Personal"},
				{"id": "wp123@group.calendar.google.com", "summary": "Work Packages"},
			},
		})
	})
	mux.HandleFunc("/calendars/wp123@group.calendar.google.com/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("timeMin") == "" {
				t.Errorf("Expected timeMin to be set")
			}
			resp := map[string]interface{}{"items": []map[string]string{{"id": "e1", "summary": "1:a"}}, "nextPageToken": "p2"}
			if r.URL.Query().Get("pageToken") == "p2" {
				resp = map[string]interface{}{"items": []map[string]string{{"id": "e2", "summary": "2:b"}}}
			}
			json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var ev calendar.Event
			json.NewDecoder(r.Body).Decode(&ev)
			stub.inserted = append(stub.inserted, ev)
			ev.Id = "new-id"
			json.NewEncoder(w).Encode(ev)
		}
	})
	mux.HandleFunc("/calendars/wp123@group.calendar.google.com/events/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/calendars/wp123@group.calendar.google.com/events/"):]
		switch r.Method {
		case http.MethodPut:
			var ev calendar.Event
			json.NewDecoder(r.Body).Decode(&ev)
			stub.updated[id] = ev
			ev.Id = id
			json.NewEncoder(w).Encode(ev)
		case http.MethodDelete:
			switch id {
			case "gone":
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGone)
				w.Write([]byte(`{"error": {"code": 410, "message": "Resource has been deleted"}}`))
				return
			case "forbidden":
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error": {"code": 403, "message": "Forbidden"}}`))
				return
			}
			stub.deleted = append(stub.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	stub.Server = httptest.NewServer(mux)
	t.Cleanup(stub.Close)
	return stub
}

func TestCalendarClientRoundTrip(t *testing.T) {
	stub := newCalendarStub(t)
	ctx := context.Background()

	client, err := NewClient(ctx, stub.Client(), "Work Packages", option.WithEndpoint(stub.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.CalendarID() != "wp123@group.calendar.google.com" {
		t.Fatalf("Expected calendar to resolve by summary, got %s", client.CalendarID())
	}

	events, err := client.ListEvents(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events across pages, got %d", len(events))
	}

	created, err := client.InsertEvent(ctx, &calendar.Event{Summary: "3:c"})
	if err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if created.Id != "new-id" || len(stub.inserted) != 1 {
		t.Errorf("Expected one insert returning new-id, got %+v", created)
	}

	if _, err := client.UpdateEvent(ctx, "e1", &calendar.Event{Summary: "1:a2"}); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if stub.updated["e1"].Summary != "1:a2" {
		t.Errorf("Expected e1 to be updated, got %+v", stub.updated)
	}

	if err := client.DeleteEvent(ctx, "e2"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if len(stub.deleted) != 1 || stub.deleted[0] != "e2" {
		t.Errorf("Expected e2 to be deleted, got %v", stub.deleted)
	}
}

func TestNewClientUnknownCalendar(t *testing.T) {
	stub := newCalendarStub(t)
	_, err := NewClient(context.Background(), stub.Client(), "Nope", option.WithEndpoint(stub.URL+"/"))
	if err == nil {
		t.Fatal("Expected error for unknown calendar name")
	}
}

func TestDeleteEventAlreadyGone(t *testing.T) {
	stub := newCalendarStub(t)
	ctx := context.Background()
	client, err := NewClient(ctx, stub.Client(), "wp123@group.calendar.google.com", option.WithEndpoint(stub.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.DeleteEvent(ctx, "gone"); err != nil {
		t.Errorf("Expected 410 to count as deleted, got %v", err)
	}
	if err := client.DeleteEvent(ctx, "forbidden"); err == nil {
		t.Error("Expected 403 to be reported")
	}
}
