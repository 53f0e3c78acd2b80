package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Members      []string
	Now          time.Time
	Seed         int64
}

// Dataset is a generated population with its transition logs.
type Dataset struct {
	Items  []jira.WorkItem
	Events map[string][]eventlog.IssueEvent
}

var defaultMembers = []string{"Ana Silva", "Ben Okafor", "Chloe Martin", "Dev Patel"}

var complexities = []workflow.Complexity{
	workflow.ComplexitySimple,
	workflow.ComplexityStandard,
	workflow.ComplexityComplex,
	"",
}

var healthValues = []workflow.Health{
	workflow.HealthOnTrack,
	workflow.HealthOnTrack,
	workflow.HealthAtRisk,
	workflow.HealthOffTrack,
	workflow.HealthOnHold,
}

// Generate builds cfg.Count items arriving one per day up to cfg.Now. Each item moves
// Inbox -> discovery phases -> Build -> Live on a sampled schedule; a share is archived
// or closed as Won't Do along the way.
func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if len(cfg.Members) == 0 {
		cfg.Members = defaultMembers
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	ds := Dataset{Events: make(map[string][]eventlog.IssueEvent)}
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("DISC-%d", i+1)
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		k, lambda := 2.5, 30.0 // Mild: discovery lasts about a month
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 40.0
			}
		case "drift":
			ratio := float64(i) / float64(cfg.Count)
			k = 2.5 - (1.7 * ratio)
			lambda = 30.0 + (15.0 * ratio)
		}

		var discoveryDays float64
		if cfg.Distribution == "weibull" {
			discoveryDays = weibullSample(rng, k, lambda)
		} else {
			discoveryDays = 14.0 + rng.Float64()*30.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				discoveryDays += 30 + rng.Float64()*60
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				discoveryDays *= 2.0
			}
		}

		b := &itemBuilder{key: key, now: cfg.Now}
		b.created(arrival, "Inbox")

		assignee := cfg.Members[rng.Intn(len(cfg.Members))]
		b.change(eventlog.FieldAssignee, "", assignee, arrival)

		health := workflow.HealthOnTrack
		b.change(eventlog.FieldHealth, "", string(health), arrival)

		// Triage takes up to a week before discovery starts.
		start := arrival.Add(time.Duration(rng.Float64()*7*24) * time.Hour)
		first := workflow.PhaseProblemDiscovery
		if rng.Float64() < 0.3 {
			first = workflow.PhaseGenerativeDiscovery
		}
		status := "Inbox"
		if b.change(eventlog.FieldStatus, status, string(first), start) {
			status = string(first)
		}

		// Health drifts once midway through discovery.
		mid := start.Add(time.Duration(discoveryDays*0.4*24) * time.Hour)
		next := healthValues[rng.Intn(len(healthValues))]
		if next != health && b.change(eventlog.FieldHealth, string(health), string(next), mid) {
			health = next
		}

		solution := start.Add(time.Duration(discoveryDays*0.6*24) * time.Hour)
		if b.change(eventlog.FieldStatus, status, string(workflow.PhaseSolutionDiscovery), solution) {
			status = string(workflow.PhaseSolutionDiscovery)
		}

		end := start.Add(time.Duration(discoveryDays*24) * time.Hour)
		var archivedAt *time.Time
		switch roll := rng.Float64(); {
		case roll < 0.08:
			if end.Before(cfg.Now) {
				archivedAt = &end
			}
		case roll < 0.15:
			if b.change(eventlog.FieldStatus, status, string(workflow.PhaseWontDo), end) {
				status = string(workflow.PhaseWontDo)
			}
		default:
			if b.change(eventlog.FieldStatus, status, string(workflow.PhaseBuild), end) {
				status = string(workflow.PhaseBuild)
			}
			live := end.Add(time.Duration((10+rng.Float64()*20)*24) * time.Hour)
			if b.change(eventlog.FieldStatus, status, string(workflow.PhaseLive), live) {
				status = string(workflow.PhaseLive)
				if b.change(eventlog.FieldHealth, string(health), string(workflow.HealthComplete), live) {
					health = workflow.HealthComplete
				}
			}
		}

		item := jira.WorkItem{
			Key:        key,
			Summary:    fmt.Sprintf("Generated discovery item %d", i+1),
			Status:     status,
			Health:     string(health),
			Assignee:   assignee,
			Complexity: complexities[rng.Intn(len(complexities))],
			Archived:   archivedAt != nil,
			ArchivedAt: archivedAt,
			Created:    arrival,
			Updated:    b.last,
		}
		if item.Complexity == "" {
			item.Complexity = workflow.ComplexityNotSet
		}
		ds.Items = append(ds.Items, item)
		ds.Events[key] = b.events
	}

	return ds
}

type itemBuilder struct {
	key    string
	now    time.Time
	events []eventlog.IssueEvent
	last   time.Time
}

func (b *itemBuilder) created(at time.Time, status string) {
	b.events = append(b.events, eventlog.IssueEvent{
		IssueKey: b.key, EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: status, Timestamp: at,
	})
	b.last = at
}

// change records a transition if it happens before now; it reports whether it did.
func (b *itemBuilder) change(field eventlog.Field, from, to string, at time.Time) bool {
	if !at.Before(b.now) {
		return false
	}
	if at.Before(b.last) {
		at = b.last
	}
	b.events = append(b.events, eventlog.IssueEvent{
		IssueKey: b.key, EventType: eventlog.Change, Field: field, FromValue: from, ToValue: to, Timestamp: at,
	})
	b.last = at
	return true
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the dataset as a JSONL history file readable by eventlog.FileProvider.
func Save(path string, ds Dataset) error {
	es := eventlog.NewEventStore()
	es.PutItems(ds.Items...)
	for key, events := range ds.Events {
		es.Append(key, events)
	}
	return es.Save(path)
}
