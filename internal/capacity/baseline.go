package capacity

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type baselineFile struct {
	Weeks []baselineRow `yaml:"weeks"`
}

type baselineRow struct {
	Date    string         `yaml:"date"`
	Members map[string]int `yaml:"members"`
	Total   *int           `yaml:"total"`
}

// LoadBaselineFile reads the static capacity table from a YAML file:
//
//	weeks:
//	  - date: 2024-09-02
//	    members: {Ana: 3, Ben: 2}
//	    total: 5
//
// Dates are normalised to their UTC Monday; an omitted total is the member sum.
func LoadBaselineFile(path string) ([]BaselinePoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline file: %w", err)
	}
	return ParseBaseline(data)
}

// ParseBaseline decodes and validates baseline YAML. The result is ascending by date.
func ParseBaseline(data []byte) ([]BaselinePoint, error) {
	var f baselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse baseline: %w", err)
	}

	points := make([]BaselinePoint, 0, len(f.Weeks))
	seen := make(map[time.Time]bool, len(f.Weeks))
	for i, row := range f.Weeks {
		t, err := time.Parse(time.DateOnly, strings.TrimSpace(row.Date))
		if err != nil {
			return nil, fmt.Errorf("baseline row %d: invalid date %q: %w", i, row.Date, err)
		}
		monday := Monday(t)
		if seen[monday] {
			return nil, fmt.Errorf("baseline row %d: duplicate week %s", i, monday.Format(time.DateOnly))
		}
		seen[monday] = true

		sum := 0
		members := make(map[string]int, len(row.Members))
		for name, n := range row.Members {
			if n < 0 {
				return nil, fmt.Errorf("baseline week %s: negative count for %s", monday.Format(time.DateOnly), name)
			}
			members[strings.TrimSpace(name)] = n
			sum += n
		}
		total := sum
		if row.Total != nil {
			total = *row.Total
		}
		if total != sum {
			return nil, fmt.Errorf("baseline week %s: total %d, members %d: %w",
				monday.Format(time.DateOnly), total, sum, ErrTotalMismatch)
		}
		points = append(points, BaselinePoint{Date: monday, Members: members, Total: total})
	}

	slices.SortFunc(points, func(a, b BaselinePoint) int { return a.Date.Compare(b.Date) })
	return points, nil
}
