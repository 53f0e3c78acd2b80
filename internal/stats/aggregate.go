package stats

import (
	"fmt"

	"jira-dashboard/internal/stats/discovery"
	"jira-dashboard/internal/workflow"
)

// TimeType selects which cycle-time metric is aggregated.
type TimeType string

const (
	CalendarDays TimeType = "calendar"
	ActiveDays   TimeType = "active"
)

// ParseTimeType accepts "calendar" or "active"; empty means calendar.
func ParseTimeType(s string) (TimeType, error) {
	switch TimeType(s) {
	case "", CalendarDays:
		return CalendarDays, nil
	case ActiveDays:
		return ActiveDays, nil
	}
	return "", fmt.Errorf("unknown time type %q (want calendar or active)", s)
}

// Bucket is the distribution of one quarter or complexity cohort.
type Bucket struct {
	Key      string  `json:"key"`
	Stats    Summary `json:"stats"`
	Inliers  []int   `json:"inliers"`
	Outliers []int   `json:"outliers"`
}

func newBucket(key string, values []int) Bucket {
	s := Summarize(values)
	in, out := SplitOutliers(values, s)
	return Bucket{Key: key, Stats: s, Inliers: in, Outliers: out}
}

// QuarterDistribution holds one bucket per quarter, contiguous from the earliest to the latest.
type QuarterDistribution struct {
	TimeType           TimeType `json:"time_type"`
	Quarters           []Bucket `json:"quarters"`
	Completed          int      `json:"completed"`
	Excluded           int      `json:"excluded"`
	DataQualityDropped int      `json:"data_quality_dropped"`
}

// ComplexityCohorts holds one bucket per complexity; every bucket is always present.
type ComplexityCohorts struct {
	TimeType           TimeType `json:"time_type"`
	Simple             Bucket   `json:"simple"`
	Standard           Bucket   `json:"standard"`
	Complex            Bucket   `json:"complex"`
	NotSet             Bucket   `json:"not_set"`
	Completed          int      `json:"completed"`
	Excluded           int      `json:"excluded"`
	DataQualityDropped int      `json:"data_quality_dropped"`
}

// Buckets returns the cohorts in complexity order.
func (c ComplexityCohorts) Buckets() []Bucket {
	return []Bucket{c.Simple, c.Standard, c.Complex, c.NotSet}
}

// completed drops excluded keys and keeps finished cycles with both dates.
func completed(records []discovery.Record, excluded map[string]bool) ([]discovery.Record, int) {
	var kept []discovery.Record
	skipped := 0
	for _, r := range records {
		if excluded[r.IssueKey] {
			skipped++
			continue
		}
		if !r.HasDates() || !r.EndDateLogic.Completed() {
			continue
		}
		kept = append(kept, r)
	}
	return kept, skipped
}

// metric returns the selected day count, rejecting non-positive values and active > calendar.
func metric(r discovery.Record, tt TimeType) (int, bool) {
	if r.CalendarDaysInDiscovery == nil || r.ActiveDaysInDiscovery == nil {
		return 0, false
	}
	cal, act := *r.CalendarDaysInDiscovery, *r.ActiveDaysInDiscovery
	if cal <= 0 || act <= 0 || act > cal {
		return 0, false
	}
	if tt == ActiveDays {
		return act, true
	}
	return cal, true
}

// QuarterDistributionOf buckets completed cycles by completion quarter.
func QuarterDistributionOf(records []discovery.Record, excluded map[string]bool, tt TimeType) QuarterDistribution {
	res := QuarterDistribution{TimeType: tt, Quarters: []Bucket{}}

	kept, skipped := completed(records, excluded)
	res.Excluded = skipped
	res.Completed = len(kept)

	values := make(map[Quarter][]int)
	var first, last Quarter
	seen := false

	for _, r := range kept {
		q, err := ParseQuarter(r.CompletionQuarter)
		if err != nil {
			res.DataQualityDropped++
			continue
		}
		if !seen || q.Before(first) {
			first = q
		}
		if !seen || last.Before(q) {
			last = q
		}
		seen = true

		v, ok := metric(r, tt)
		if !ok {
			res.DataQualityDropped++
			continue
		}
		values[q] = append(values[q], v)
	}

	if !seen {
		return res
	}
	for _, q := range QuarterRange(first, last) {
		res.Quarters = append(res.Quarters, newBucket(q.String(), values[q]))
	}
	return res
}

// ComplexityCohortsOf buckets completed cycles by complexity.
func ComplexityCohortsOf(records []discovery.Record, excluded map[string]bool, tt TimeType) ComplexityCohorts {
	res := ComplexityCohorts{TimeType: tt}

	kept, skipped := completed(records, excluded)
	res.Excluded = skipped
	res.Completed = len(kept)

	values := make(map[workflow.Complexity][]int)
	for _, r := range kept {
		v, ok := metric(r, tt)
		if !ok {
			res.DataQualityDropped++
			continue
		}
		c := r.Complexity
		switch c {
		case workflow.ComplexitySimple, workflow.ComplexityStandard, workflow.ComplexityComplex:
		default:
			c = workflow.ComplexityNotSet
		}
		values[c] = append(values[c], v)
	}

	res.Simple = newBucket(string(workflow.ComplexitySimple), values[workflow.ComplexitySimple])
	res.Standard = newBucket(string(workflow.ComplexityStandard), values[workflow.ComplexityStandard])
	res.Complex = newBucket(string(workflow.ComplexityComplex), values[workflow.ComplexityComplex])
	res.NotSet = newBucket(string(workflow.ComplexityNotSet), values[workflow.ComplexityNotSet])
	return res
}
