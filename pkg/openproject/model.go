package openproject

import (
	"encoding/json"
	"fmt"
	"strings"
)

const customFieldPrefix = "customField"

// Link is a HAL link as found under "_links".
type Link struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

// Formattable is OpenProject's rich text value. Raw is nil when the API sends null.
type Formattable struct {
	Format string  `json:"format"`
	Raw    *string `json:"raw"`
	HTML   string  `json:"html"`
}

// WorkPackage mirrors the subset of an API v3 work package this tool reads.
type WorkPackage struct {
	ID          int          `json:"id"`
	Subject     string       `json:"subject"`
	Description *Formattable `json:"description"`
	DueDate     string       `json:"dueDate"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
	Links       struct {
		Parent   *Link `json:"parent"`
		Assignee *Link `json:"assignee"`
		Status   *Link `json:"status"`
	} `json:"_links"`
	// CustomFields holds every top-level "customFieldN" value undecoded.
	CustomFields map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface, collecting custom
// fields, whose keys depend on the OpenProject instance, next to the fixed ones.
func (wp *WorkPackage) UnmarshalJSON(b []byte) error {
	type plain WorkPackage
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for k, v := range all {
		if strings.HasPrefix(k, customFieldPrefix) {
			if p.CustomFields == nil {
				p.CustomFields = make(map[string]json.RawMessage)
			}
			p.CustomFields[k] = v
		}
	}

	*wp = WorkPackage(p)
	return nil
}

// CustomString returns the named custom field as a string. Missing and null
// fields yield "".
func (wp *WorkPackage) CustomString(name string) (string, error) {
	raw, ok := wp.CustomFields[name]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("custom field %s is not a string: %s", name, raw)
	}
	return s, nil
}

// Project is an element of the projects collection.
type Project struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

type collection struct {
	Total    int `json:"total"`
	Count    int `json:"count"`
	PageSize int `json:"pageSize"`
	Offset   int `json:"offset"`
	Embedded struct {
		Elements []json.RawMessage `json:"elements"`
	} `json:"_embedded"`
}
