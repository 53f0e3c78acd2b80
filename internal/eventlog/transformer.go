package eventlog

import (
	"slices"
	"strings"

	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"
)

// TransformIssue converts a Jira Issue DTO and its changelog into the current-state item
// and its ascending event log (status, health and assignee changes plus a Created anchor).
func TransformIssue(dto jira.IssueDTO, fields jira.FieldMap, tax *workflow.Taxonomy) (jira.WorkItem, []IssueEvent) {
	item := jira.MapWorkItem(dto, fields, tax)

	var events []IssueEvent
	initialStatus := item.Status
	sawStatus := false

	if dto.Changelog != nil {
		histories := slices.Clone(dto.Changelog.Histories)
		// Jira often returns histories newest first.
		slices.SortStableFunc(histories, func(a, b jira.HistoryDTO) int {
			t1, _ := jira.ParseTime(a.Created)
			t2, _ := jira.ParseTime(b.Created)
			return t1.Compare(t2)
		})

		for _, history := range histories {
			ts, err := jira.ParseTime(history.Created)
			if err != nil {
				continue
			}
			ts = ts.UTC()

			for _, itm := range history.Items {
				field, ok := classifyItem(itm, fields)
				if !ok {
					continue
				}
				if field == FieldStatus && !sawStatus {
					initialStatus = itm.FromString
					sawStatus = true
				}
				events = append(events, IssueEvent{
					IssueKey:  dto.Key,
					EventType: Change,
					Field:     field,
					FromValue: itm.FromString,
					ToValue:   itm.ToString,
					Timestamp: ts,
				})
			}
		}
	}

	// Anchor the clock at creation with the status the item was born in.
	if !item.Created.IsZero() {
		events = append(events, IssueEvent{
			IssueKey:  dto.Key,
			EventType: Created,
			Field:     FieldStatus,
			ToValue:   initialStatus,
			Timestamp: item.Created,
		})
	}

	slices.SortStableFunc(events, func(a, b IssueEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if a.EventType == Created && b.EventType != Created {
			return -1
		}
		if b.EventType == Created && a.EventType != Created {
			return 1
		}
		return 0
	})

	return item, events
}

func classifyItem(itm jira.ItemDTO, fields jira.FieldMap) (Field, bool) {
	switch {
	case strings.EqualFold(itm.Field, "status"):
		return FieldStatus, true
	case strings.EqualFold(itm.Field, "assignee"):
		return FieldAssignee, true
	case fields.HealthID != "" && itm.FieldID == fields.HealthID:
		return FieldHealth, true
	case fields.HealthName != "" && strings.EqualFold(itm.Field, fields.HealthName):
		return FieldHealth, true
	}
	return "", false
}
