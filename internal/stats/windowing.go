package stats

import (
	"fmt"
	"time"
)

// AnalysisWindow is a date range normalised to whole buckets.
type AnalysisWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Bucket string    `json:"bucket"` // "day", "week", "month"
}

// NewAnalysisWindow creates a new window with boundaries snapped to the bucket.
func NewAnalysisWindow(start, end time.Time, bucket string) AnalysisWindow {
	if bucket == "" {
		bucket = "day"
	}
	return AnalysisWindow{
		Start:  SnapToStart(start, bucket),
		End:    SnapToEnd(end, bucket),
		Bucket: bucket,
	}
}

// SnapToStart normalizes a timestamp to the beginning of its bucket (0:00:00).
func SnapToStart(t time.Time, bucket string) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case "week":
		// Snap to Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday -> 7
		}
		daysToSubtract := weekday - 1
		return time.Date(t.Year(), t.Month(), t.Day()-daysToSubtract, 0, 0, 0, 0, t.Location())
	default: // day
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// SnapToEnd normalizes a timestamp to the very end of its bucket (23:59:59.999...).
func SnapToEnd(t time.Time, bucket string) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case "month":
		nextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
		return nextMonth.Add(-time.Nanosecond)
	case "week":
		// Last nanosecond of Sunday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		daysToAdd := 7 - weekday
		return time.Date(t.Year(), t.Month(), t.Day()+daysToAdd, 23, 59, 59, 999999999, t.Location())
	default: // day
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
	}
}

// Subdivide returns a list of bucket start times within the window.
func (w AnalysisWindow) Subdivide() []time.Time {
	var buckets []time.Time
	current := w.Start

	for current.Before(w.End) {
		buckets = append(buckets, current)
		switch w.Bucket {
		case "month":
			current = current.AddDate(0, 1, 0)
		case "week":
			current = current.AddDate(0, 0, 7)
		default: // day
			current = current.AddDate(0, 0, 1)
		}
	}
	return buckets
}

// GenerateLabel returns a human-readable label for a bucket (e.g., "Jan 2024" or "2024-W01").
func (w AnalysisWindow) GenerateLabel(t time.Time) string {
	switch w.Bucket {
	case "month":
		return t.Format("Jan 2006")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default: // day
		return t.Format("2006-01-02")
	}
}

// Quarter identifies a calendar quarter.
type Quarter struct {
	Year int
	Num  int
}

// ParseQuarter reads a "Q{n}_{year}" label.
func ParseQuarter(label string) (Quarter, error) {
	var q Quarter
	if _, err := fmt.Sscanf(label, "Q%d_%d", &q.Num, &q.Year); err != nil {
		return Quarter{}, fmt.Errorf("invalid quarter %q: %w", label, err)
	}
	if q.Num < 1 || q.Num > 4 {
		return Quarter{}, fmt.Errorf("invalid quarter %q: number out of range", label)
	}
	// Sscanf stops at the last verb, so trailing input must be rejected explicitly.
	if q.String() != label {
		return Quarter{}, fmt.Errorf("invalid quarter %q: expected form Q<n>_<year>", label)
	}
	return q, nil
}

func (q Quarter) String() string {
	return fmt.Sprintf("Q%d_%d", q.Num, q.Year)
}

// Before reports whether q precedes o.
func (q Quarter) Before(o Quarter) bool {
	if q.Year != o.Year {
		return q.Year < o.Year
	}
	return q.Num < o.Num
}

// Next returns the following quarter.
func (q Quarter) Next() Quarter {
	if q.Num == 4 {
		return Quarter{Year: q.Year + 1, Num: 1}
	}
	return Quarter{Year: q.Year, Num: q.Num + 1}
}

// QuarterRange lists every quarter from first to last inclusive.
func QuarterRange(first, last Quarter) []Quarter {
	var out []Quarter
	for q := first; !last.Before(q); q = q.Next() {
		out = append(out, q)
	}
	return out
}
