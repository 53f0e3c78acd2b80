package workflow

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Phase is a normalised workflow stage a status name maps to.
type Phase string

const (
	PhaseInbox               Phase = "Inbox"
	PhaseGenerativeDiscovery Phase = "Generative Discovery"
	PhaseProblemDiscovery    Phase = "Problem Discovery"
	PhaseSolutionDiscovery   Phase = "Solution Discovery"
	PhaseBuild               Phase = "Build"
	PhaseBeta                Phase = "Beta"
	PhaseLive                Phase = "Live"
	PhaseWontDo              Phase = "Won't Do"
	PhaseUnknown             Phase = "Unknown"
)

// Phases lists every known phase in workflow order.
var Phases = []Phase{
	PhaseInbox,
	PhaseGenerativeDiscovery,
	PhaseProblemDiscovery,
	PhaseSolutionDiscovery,
	PhaseBuild,
	PhaseBeta,
	PhaseLive,
	PhaseWontDo,
}

// Tier groups phases into coarse stages.
type Tier string

const (
	TierPreDiscovery Tier = "pre-discovery"
	TierDiscovery    Tier = "discovery"
	TierBuild        Tier = "build"
	TierBeta         Tier = "beta"
	TierLive         Tier = "live"
	TierClosed       Tier = "closed"
	TierUnknown      Tier = "unknown"
)

// Tier returns the stage a phase belongs to.
func (p Phase) Tier() Tier {
	switch p {
	case PhaseInbox:
		return TierPreDiscovery
	case PhaseGenerativeDiscovery, PhaseProblemDiscovery, PhaseSolutionDiscovery:
		return TierDiscovery
	case PhaseBuild:
		return TierBuild
	case PhaseBeta:
		return TierBeta
	case PhaseLive:
		return TierLive
	case PhaseWontDo:
		return TierClosed
	default:
		return TierUnknown
	}
}

// IsDiscovery reports whether the phase is one of the discovery stages.
func (p Phase) IsDiscovery() bool {
	return p.Tier() == TierDiscovery
}

// Health is the health flag carried by a work item.
type Health string

const (
	HealthOnTrack  Health = "On Track"
	HealthAtRisk   Health = "At Risk"
	HealthOffTrack Health = "Off Track"
	HealthOnHold   Health = "On Hold"
	HealthMystery  Health = "Mystery"
	HealthComplete Health = "Complete"
	HealthUnknown  Health = "Unknown"
)

// Complexity is the sizing classification of a work item.
type Complexity string

const (
	ComplexitySimple   Complexity = "Simple"
	ComplexityStandard Complexity = "Standard"
	ComplexityComplex  Complexity = "Complex"
	ComplexityNotSet   Complexity = "Not Set"
)

// Complexities lists every complexity bucket, NotSet last.
var Complexities = []Complexity{
	ComplexitySimple,
	ComplexityStandard,
	ComplexityComplex,
	ComplexityNotSet,
}

// Taxonomy maps raw Jira values onto phases, health values and complexities.
// Keys are matched case-insensitively after stripping ordering prefixes like "02 ".
type Taxonomy struct {
	Statuses     map[string]Phase      `toml:"statuses"`
	Health       map[string]Health     `toml:"health"`
	Complexity   map[string]Complexity `toml:"complexity"`
	PausedHealth []Health              `toml:"paused_health"`
}

var orderingPrefix = regexp.MustCompile(`^\s*\d+[\s.\-_]+`)

func normalize(name string) string {
	name = orderingPrefix.ReplaceAllString(name, "")
	return strings.ToLower(strings.TrimSpace(name))
}

// Default returns the built-in vocabulary.
func Default() *Taxonomy {
	t := &Taxonomy{
		Statuses:   make(map[string]Phase),
		Health:     make(map[string]Health),
		Complexity: make(map[string]Complexity),
		PausedHealth: []Health{
			HealthOnHold,
		},
	}
	for _, p := range Phases {
		t.Statuses[string(p)] = p
	}
	t.Statuses["Wont Do"] = PhaseWontDo
	t.Statuses["Done"] = PhaseLive
	t.Statuses["Released"] = PhaseLive
	t.Statuses["Backlog"] = PhaseInbox
	t.Statuses["Discovery"] = PhaseGenerativeDiscovery

	for _, h := range []Health{HealthOnTrack, HealthAtRisk, HealthOffTrack, HealthOnHold, HealthMystery, HealthComplete} {
		t.Health[string(h)] = h
	}
	t.Health["Paused"] = HealthOnHold
	t.Health["Needs Help"] = HealthOffTrack

	for _, c := range []Complexity{ComplexitySimple, ComplexityStandard, ComplexityComplex} {
		t.Complexity[string(c)] = c
	}
	t.Complexity["Small"] = ComplexitySimple
	t.Complexity["Medium"] = ComplexityStandard
	t.Complexity["Large"] = ComplexityComplex

	t.reindex()
	return t
}

// LoadTaxonomy reads TOML overrides from path and layers them onto Default().
// An empty path returns the defaults.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var overrides Taxonomy
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	for k, v := range overrides.Statuses {
		t.Statuses[k] = v
	}
	for k, v := range overrides.Health {
		t.Health[k] = v
	}
	for k, v := range overrides.Complexity {
		t.Complexity[k] = v
	}
	if len(overrides.PausedHealth) > 0 {
		t.PausedHealth = overrides.PausedHealth
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.reindex()
	return t, nil
}

// Validate rejects aliases that point at values outside the known vocabulary.
func (t *Taxonomy) Validate() error {
	for name, p := range t.Statuses {
		if !slices.Contains(Phases, p) {
			return fmt.Errorf("status %q maps to unknown phase %q", name, p)
		}
	}
	for name, h := range t.Health {
		if !knownHealth(h) {
			return fmt.Errorf("health %q maps to unknown value %q", name, h)
		}
	}
	for name, c := range t.Complexity {
		if !slices.Contains(Complexities, c) || c == ComplexityNotSet {
			return fmt.Errorf("complexity %q maps to unknown value %q", name, c)
		}
	}
	for _, h := range t.PausedHealth {
		if !knownHealth(h) {
			return fmt.Errorf("paused health %q is not a known value", h)
		}
	}
	return nil
}

func knownHealth(h Health) bool {
	switch h {
	case HealthOnTrack, HealthAtRisk, HealthOffTrack, HealthOnHold, HealthMystery, HealthComplete:
		return true
	}
	return false
}

func (t *Taxonomy) reindex() {
	t.Statuses = normalizeKeys(t.Statuses)
	t.Health = normalizeKeys(t.Health)
	t.Complexity = normalizeKeys(t.Complexity)
}

func normalizeKeys[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[normalize(k)] = v
	}
	return out
}

// PhaseOf maps a raw status name to its phase.
func (t *Taxonomy) PhaseOf(status string) Phase {
	if p, ok := t.Statuses[normalize(status)]; ok {
		return p
	}
	return PhaseUnknown
}

// HealthOf maps a raw health value. Empty input means the flag was never set.
func (t *Taxonomy) HealthOf(value string) Health {
	if h, ok := t.Health[normalize(value)]; ok {
		return h
	}
	return HealthUnknown
}

// ComplexityOf maps a raw complexity value, defaulting to NotSet.
func (t *Taxonomy) ComplexityOf(value string) Complexity {
	if c, ok := t.Complexity[normalize(value)]; ok {
		return c
	}
	return ComplexityNotSet
}

// IsPaused reports whether time spent in this raw health value is excluded from active days.
func (t *Taxonomy) IsPaused(value string) bool {
	return slices.Contains(t.PausedHealth, t.HealthOf(value))
}
