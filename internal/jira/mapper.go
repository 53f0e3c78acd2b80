package jira

import (
	"slices"
	"strings"
	"time"

	"jira-dashboard/internal/workflow"
)

// MapWorkItem transforms a Jira DTO into the current-state WorkItem.
func MapWorkItem(item IssueDTO, fields FieldMap, tax *workflow.Taxonomy) WorkItem {
	w := WorkItem{
		Key:        item.Key,
		Summary:    item.Fields.Summary,
		Status:     item.Fields.Status.Name,
		Health:     item.Fields.Custom(fields.HealthID),
		Assignee:   UnassignedName,
		Complexity: tax.ComplexityOf(item.Fields.Custom(fields.ComplexityID)),
	}

	if a := item.Fields.Assignee; a != nil {
		if a.DisplayName != "" {
			w.Assignee = a.DisplayName
		} else if a.Name != "" {
			w.Assignee = a.Name
		}
	}

	if t, err := ParseTime(item.Fields.Created); err == nil {
		w.Created = t.UTC()
	}
	if t, err := ParseTime(item.Fields.Updated); err == nil {
		w.Updated = t.UTC()
	}

	w.Archived, w.ArchivedAt = archiveState(item, fields)
	return w
}

func archiveState(item IssueDTO, fields FieldMap) (bool, *time.Time) {
	var archivedAt *time.Time
	if v := item.Fields.Custom(fields.ArchivedDateID); v != "" {
		if t, err := ParseTime(v); err == nil {
			t = t.UTC()
			archivedAt = &t
		}
	}

	if truthy(item.Fields.Custom(fields.ArchivedID)) {
		return true, archivedAt
	}

	if !isArchivedStatus(item.Fields.Status.Name, fields.ArchivedStatusNames) {
		return archivedAt != nil, archivedAt
	}

	// Status-based archiving: the last move into the archive status is the archive date.
	if archivedAt == nil && item.Changelog != nil {
		for _, h := range item.Changelog.Histories {
			for _, itm := range h.Items {
				if itm.Field != "status" || !isArchivedStatus(itm.ToString, fields.ArchivedStatusNames) {
					continue
				}
				if t, err := ParseTime(h.Created); err == nil {
					t = t.UTC()
					if archivedAt == nil || t.After(*archivedAt) {
						archivedAt = &t
					}
				}
			}
		}
	}
	return true, archivedAt
}

func isArchivedStatus(status string, names []string) bool {
	return slices.ContainsFunc(names, func(n string) bool {
		return strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(status))
	})
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "no", "0", "none":
		return false
	}
	return true
}
