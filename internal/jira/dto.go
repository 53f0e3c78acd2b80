package jira

import (
	"encoding/json"
	"strconv"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	Key       string        `json:"key"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the standard fields plus the raw payload for custom field lookup.
type FieldsDTO struct {
	Summary  string `json:"summary"`
	Status   Status `json:"status"`
	Assignee *struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"assignee"`
	Created string `json:"created"`
	Updated string `json:"updated"`

	Raw map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps every field for Custom lookups.
func (f *FieldsDTO) UnmarshalJSON(data []byte) error {
	type known FieldsDTO
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FieldsDTO(k)
	f.Raw = raw
	return nil
}

// MarshalJSON writes the raw payload back when present so fixtures round-trip.
func (f FieldsDTO) MarshalJSON() ([]byte, error) {
	if f.Raw != nil {
		return json.Marshal(f.Raw)
	}
	type known FieldsDTO
	return json.Marshal(known(f))
}

// Custom returns a display string for a custom field. Select lists, user pickers,
// multi-values, booleans and numbers are flattened; missing or null fields return "".
func (f FieldsDTO) Custom(id string) string {
	if id == "" {
		return ""
	}
	raw, ok := f.Raw[id]
	if !ok {
		return ""
	}
	return flatten(raw)
}

func flatten(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var option struct {
		Value       string `json:"value"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(raw, &option); err == nil {
		switch {
		case option.Value != "":
			return option.Value
		case option.DisplayName != "":
			return option.DisplayName
		case option.Name != "":
			return option.Name
		}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if s := flatten(v); s != "" {
				return s
			}
		}
		return ""
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}

	return ""
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Histories  []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	FieldType  string `json:"fieldtype,omitempty"`
	ToString   string `json:"toString"`
	FromString string `json:"fromString"`
	To         string `json:"to"`   // ID
	From       string `json:"from"` // ID
}

// Status is an embedded status object.
type Status struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParseTime is a helper for the strict Jira time format, with RFC3339 and plain dates as fallbacks.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04:05.000-0700", s)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339, s); rfcErr == nil {
		return t, nil
	}
	if t, dayErr := time.Parse(time.DateOnly, s); dayErr == nil {
		return t, nil
	}
	return time.Time{}, err
}
