package openproject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	apiPath         = "/api/v3/"
	defaultPageSize = 100
	maxErrorBody    = 512
)

// ErrProjectNotFound is returned when a project name or id matches nothing.
var ErrProjectNotFound = errors.New("project not found")

// APIError is a non-2xx response from OpenProject.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openproject responded %d: %s", e.StatusCode, e.Body)
}

// Client reads projects and work packages from the OpenProject API v3.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	PageSize   int
}

// NewClient creates a client for the instance at baseURL, authenticating with
// an API key. baseURL may or may not include the /api/v3 suffix.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, strings.TrimRight(apiPath, "/"))
	return &Client{
		baseURL:    base + apiPath,
		apiKey:     apiKey,
		httpClient: httpClient,
		PageSize:   defaultPageSize,
	}
}

// Projects lists every project visible to the API key.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	elements, err := c.collect(ctx, "projects")
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(elements))
	for _, raw := range elements {
		var p Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// ResolveProject maps a project id, identifier or name to its numeric id.
func (c *Client) ResolveProject(ctx context.Context, nameOrID string) (int, error) {
	if id, err := strconv.Atoi(nameOrID); err == nil {
		return id, nil
	}
	projects, err := c.Projects(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range projects {
		if p.Name == nameOrID || p.Identifier == nameOrID {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrProjectNotFound, nameOrID)
}

// WorkPackages returns the raw elements of the project's work package
// collection. Records are left undecoded so that one malformed record does
// not fail the whole snapshot.
func (c *Client) WorkPackages(ctx context.Context, projectID int) ([]json.RawMessage, error) {
	return c.collect(ctx, fmt.Sprintf("projects/%d/work_packages", projectID))
}

// collect walks a paginated collection. OpenProject offsets are 1-based page numbers.
func (c *Client) collect(ctx context.Context, path string) ([]json.RawMessage, error) {
	size := c.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	var elements []json.RawMessage
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("offset", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(size))

		var coll collection
		if err := c.get(ctx, path, q, &coll); err != nil {
			return nil, err
		}
		elements = append(elements, coll.Embedded.Elements...)
		log.WithFields(log.Fields{"path": path, "page": page, "count": coll.Count, "total": coll.Total}).
			Debug("fetched openproject page")

		if len(coll.Embedded.Elements) == 0 || len(elements) >= coll.Total {
			return elements, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth("apikey", c.apiKey)
	req.Header.Set("Accept", "application/hal+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openproject request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode openproject %s response: %w", path, err)
	}
	return nil
}

// Source is a single project's work packages, fetched fresh on every call.
type Source struct {
	Client  *Client
	Project string
}

// WorkPackages resolves the configured project and returns its snapshot.
func (s *Source) WorkPackages(ctx context.Context) ([]json.RawMessage, error) {
	id, err := s.Client.ResolveProject(ctx, s.Project)
	if err != nil {
		return nil, err
	}
	return s.Client.WorkPackages(ctx, id)
}
