package openproject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newTestServer(t *testing.T, pageSize int, workPackages int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/projects", func(w http.ResponseWriter, r *http.Request) {
		writeCollection(w, 2, `{"id": 3, "identifier": "lab", "name": "Tapir Lab"}`, `{"id": 8, "identifier": "ops", "name": "Operations"}`)
	})
	mux.HandleFunc("/api/v3/projects/3/work_packages", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "apikey" || pass != "secret" {
			http.Error(w, `{"message": "unauthenticated"}`, http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if got := r.URL.Query().Get("pageSize"); got != strconv.Itoa(pageSize) {
			t.Errorf("Expected pageSize %d, got %s", pageSize, got)
		}
		var elems []string
		for id := (page-1)*pageSize + 1; id <= page*pageSize && id <= workPackages; id++ {
			elems = append(elems, fmt.Sprintf(`{"id": %d}`, id))
		}
		writeCollection(w, workPackages, elems...)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeCollection(w http.ResponseWriter, total int, elems ...string) {
	raw := make([]json.RawMessage, len(elems))
	for i, e := range elems {
		raw[i] = json.RawMessage(e)
	}
	body := map[string]interface{}{
		"_type":     "Collection",
		"total":     total,
		"count":     len(elems),
		"_embedded": map[string]interface{}{"elements": raw},
	}
	w.Header().Set("Content-Type", "application/hal+json")
	json.NewEncoder(w).Encode(body)
}

func TestWorkPackagesPaginates(t *testing.T) {
	srv := newTestServer(t, 2, 5)
	client := NewClient(srv.URL+"/api/v3/", "secret", srv.Client())
	client.PageSize = 2

	elems, err := client.WorkPackages(context.Background(), 3)
	if err != nil {
		t.Fatalf("WorkPackages failed: %v", err)
	}
	if len(elems) != 5 {
		t.Fatalf("Expected 5 work packages across pages, got %d", len(elems))
	}
}

func TestWorkPackagesUnauthorized(t *testing.T) {
	srv := newTestServer(t, defaultPageSize, 1)
	client := NewClient(srv.URL, "wrong", srv.Client())

	_, err := client.WorkPackages(context.Background(), 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", apiErr.StatusCode)
	}
}

func TestResolveProject(t *testing.T) {
	srv := newTestServer(t, defaultPageSize, 0)
	client := NewClient(srv.URL, "secret", srv.Client())
	ctx := context.Background()

	for input, want := range map[string]int{"Tapir Lab": 3, "ops": 8, "12": 12} {
		got, err := client.ResolveProject(ctx, input)
		if err != nil {
			t.Fatalf("ResolveProject(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("ResolveProject(%q) = %d, want %d", input, got, want)
		}
	}

	if _, err := client.ResolveProject(ctx, "Missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Expected ErrProjectNotFound, got %v", err)
	}
}

func TestSourceFetchesConfiguredProject(t *testing.T) {
	srv := newTestServer(t, defaultPageSize, 3)
	src := &Source{Client: NewClient(srv.URL, "secret", srv.Client()), Project: "lab"}

	elems, err := src.WorkPackages(context.Background())
	if err != nil {
		t.Fatalf("WorkPackages failed: %v", err)
	}
	if len(elems) != 3 {
		t.Errorf("Expected 3 work packages, got %d", len(elems))
	}
}
