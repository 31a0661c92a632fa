// Package generator creates synthetic subscriber and alert change records for
// exercising the fan-out service end to end. Seeded generators are
// reproducible apart from record IDs.
package generator

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

// Change is one row change in log-based change-capture form.
type Change struct {
	Table    string
	Op       string
	Key      string
	Sequence int64
	After    map[string]any
	Time     time.Time
}

// Config controls what the generator emits.
type Config struct {
	Seed int64
	// ClassDist weights alert classes, e.g. "Common:80,Emergency:20".
	ClassDist       string
	SubscriberTable string
	AlertTable      string
}

type weightedValue struct {
	value  string
	weight int
}

// Generator creates change records according to a class distribution.
type Generator struct {
	rng             *rand.Rand
	classDist       []weightedValue
	subscriberTable string
	alertTable      string
	seq             int64
	now             func() time.Time
}

var alertTemplates = []struct {
	title string
	body  string
}{
	{"Flood warning", "River levels rising, avoid low-lying roads"},
	{"Heat advisory", "Temperatures above 38C expected this afternoon"},
	{"Power outage", "Scheduled maintenance from 22:00 to 02:00"},
	{"Road closure", "Main street closed for repairs"},
	{"Evacuation order", "Leave the marked zone immediately"},
	{"Water notice", "Boil water before drinking until further notice"},
}

// New creates a generator. A zero seed uses the current time.
func New(cfg Config) (*Generator, error) {
	if cfg.SubscriberTable == "" || cfg.AlertTable == "" {
		return nil, fmt.Errorf("table names cannot be empty")
	}

	dist, err := ParseDistribution(cfg.ClassDist)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g := &Generator{
		rng:             rand.New(rand.NewSource(seed)),
		subscriberTable: cfg.SubscriberTable,
		alertTable:      cfg.AlertTable,
		now:             time.Now,
	}
	for value, weight := range dist {
		g.classDist = append(g.classDist, weightedValue{value: value, weight: weight})
	}
	// Map order is random; sort so a seed always yields the same sequence.
	sort.Slice(g.classDist, func(i, j int) bool {
		return g.classDist[i].value < g.classDist[j].value
	})
	return g, nil
}

// ParseDistribution parses "KEY:PERCENT,..." where every key is an alert
// class and the percentages sum to 100.
func ParseDistribution(distStr string) (map[string]int, error) {
	if strings.TrimSpace(distStr) == "" {
		return nil, fmt.Errorf("distribution string cannot be empty")
	}

	result := make(map[string]int)
	total := 0
	for _, part := range strings.Split(distStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.Split(part, ":")
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid distribution format: %s (expected KEY:PERCENT)", part)
		}

		key := strings.TrimSpace(kv[0])
		if _, ok := events.ParseAlertClass(key); !ok {
			return nil, fmt.Errorf("unknown alert class %q in %s", key, part)
		}

		var percent int
		if _, err := fmt.Sscanf(strings.TrimSpace(kv[1]), "%d", &percent); err != nil {
			return nil, fmt.Errorf("invalid percentage in %s: %w", part, err)
		}
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("percentage must be 0-100, got %d in %s", percent, part)
		}

		result[key] += percent
		total += percent
	}

	if total != 100 {
		return nil, fmt.Errorf("distribution percentages must sum to 100, got %d", total)
	}
	return result, nil
}

// Subscriber returns a Created change for a new subscriber.
func (g *Generator) Subscriber() Change {
	id := uuid.NewString()
	mobile := fmt.Sprintf("+1555%07d", g.rng.Intn(10_000_000))
	return g.created(g.subscriberTable, id, map[string]any{
		"userId": id,
		"mobile": mobile,
		"type":   g.selectClass(),
	})
}

// Alert returns a Created change for a new alert.
func (g *Generator) Alert() Change {
	id := uuid.NewString()
	tmpl := alertTemplates[g.rng.Intn(len(alertTemplates))]
	return g.created(g.alertTable, id, map[string]any{
		"id":          id,
		"type":        g.selectClass(),
		"title":       tmpl.title,
		"description": tmpl.body,
		"status":      "active",
	})
}

func (g *Generator) created(table, key string, after map[string]any) Change {
	g.seq++
	now := g.now()
	after["createdAt"] = now.UnixMilli()
	return Change{
		Table:    table,
		Op:       "c",
		Key:      key,
		Sequence: g.seq,
		After:    after,
		Time:     now,
	}
}

func (g *Generator) selectClass() string {
	total := 0
	for _, c := range g.classDist {
		total += c.weight
	}

	r := g.rng.Intn(total)
	cumulative := 0
	for _, c := range g.classDist {
		cumulative += c.weight
		if r < cumulative {
			return c.value
		}
	}
	return g.classDist[len(g.classDist)-1].value
}
