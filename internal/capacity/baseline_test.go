package capacity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBaselineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	content := `weeks:
  - date: 2024-09-11
    members: {Ana: 1}
  - date: 2024-09-01
    members:
      Ana: 2
      " Ben ": 3
    total: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	points, err := LoadBaselineFile(path)
	if err != nil {
		t.Fatalf("LoadBaselineFile() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	// 1 Sep 2024 is a Sunday and snaps back to 26 Aug.
	if got := points[0].Date.Format("2006-01-02"); got != "2024-08-26" {
		t.Errorf("Expected first point on 2024-08-26, got %s", got)
	}
	if points[0].Members["Ben"] != 3 {
		t.Errorf("Expected trimmed member name, got %v", points[0].Members)
	}
	if got := points[1].Date.Format("2006-01-02"); got != "2024-09-09" {
		t.Errorf("Expected second point on 2024-09-09, got %s", got)
	}
	if points[1].Total != 1 {
		t.Errorf("Expected omitted total to default to member sum, got %d", points[1].Total)
	}
}

func TestParseBaselineErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		mismatch bool
	}{
		{"bad date", "weeks:\n  - date: nope\n    members: {Ana: 1}\n", false},
		{"total mismatch", "weeks:\n  - date: 2024-09-02\n    members: {Ana: 1}\n    total: 4\n", true},
		{"duplicate week", "weeks:\n  - date: 2024-09-02\n  - date: 2024-09-04\n", false},
		{"negative count", "weeks:\n  - date: 2024-09-02\n    members: {Ana: -1}\n", false},
		{"malformed yaml", "weeks: [", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBaseline([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.mismatch && !errors.Is(err, ErrTotalMismatch) {
				t.Errorf("Expected ErrTotalMismatch, got %v", err)
			}
		})
	}
}

func TestLoadBaselineFileMissing(t *testing.T) {
	if _, err := LoadBaselineFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
