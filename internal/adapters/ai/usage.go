package ai

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"geminilab/internal/adapters/gemini"
)

// ModelUsage captures accumulated usage for one model.
type ModelUsage struct {
	Model          string
	Requests       int64
	PromptTokens   int64
	OutputTokens   int64
	ThoughtsTokens int64
	CostUSD        decimal.Decimal
}

// TotalTokens is prompt + output + thoughts
func (u ModelUsage) TotalTokens() int64 {
	return u.PromptTokens + u.OutputTokens + u.ThoughtsTokens
}

// UsageSnapshot is a point-in-time copy of the tracker
type UsageSnapshot struct {
	Since     time.Time
	Models    []ModelUsage
	Requests  int64
	Tokens    int64
	TotalCost decimal.Decimal
}

// UsageTracker tracks token and cost usage per model.
// Models missing from the catalog are counted without cost.
type UsageTracker struct {
	mu      sync.Mutex
	catalog *Catalog
	usage   map[string]*ModelUsage
	since   time.Time
}

// NewUsageTracker creates a new tracker instance.
func NewUsageTracker(catalog *Catalog) *UsageTracker {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &UsageTracker{
		catalog: catalog,
		usage:   make(map[string]*ModelUsage),
		since:   time.Now(),
	}
}

// Record calculates cost based on model pricing, records the usage and
// returns the cost of this call.
func (t *UsageTracker) Record(model string, usage gemini.Usage) decimal.Decimal {
	cost := decimal.Zero
	key := normalizeModel(model)
	if info, err := t.catalog.Get(model); err == nil {
		key = info.Name
		cost = info.Cost(int64(usage.PromptTokens), int64(usage.OutputTokens)+int64(usage.ThoughtsTokens))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.usage[key]
	if !ok {
		entry = &ModelUsage{Model: key, CostUSD: decimal.Zero}
		t.usage[key] = entry
	}

	entry.Requests++
	entry.PromptTokens += int64(usage.PromptTokens)
	entry.OutputTokens += int64(usage.OutputTokens)
	entry.ThoughtsTokens += int64(usage.ThoughtsTokens)
	entry.CostUSD = entry.CostUSD.Add(cost)

	return cost
}

// Snapshot returns a copy of the current usage, models sorted by name.
func (t *UsageTracker) Snapshot() UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := UsageSnapshot{Since: t.since, TotalCost: decimal.Zero}
	for _, u := range t.usage {
		snap.Models = append(snap.Models, *u)
		snap.Requests += u.Requests
		snap.Tokens += u.TotalTokens()
		snap.TotalCost = snap.TotalCost.Add(u.CostUSD)
	}
	sort.Slice(snap.Models, func(i, j int) bool { return snap.Models[i].Model < snap.Models[j].Model })

	return snap
}
