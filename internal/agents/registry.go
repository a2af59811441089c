// Package agents maintains the catalog of remote analyst agents the
// planner can route work to.
package agents

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Card describes one remote agent: what it does and how to reach it.
type Card struct {
	// Name is the unique agent identifier used in plans and tasks.
	Name string `yaml:"name"`
	// DisplayName is the human-facing label.
	DisplayName string `yaml:"display_name"`
	// Description tells the planner what the agent can do.
	Description string `yaml:"description"`
	// URL is the agent's streaming endpoint.
	URL string `yaml:"url"`
	// Capabilities lists short capability tags for prompt assembly.
	Capabilities []string `yaml:"capabilities,omitempty"`
	// Enabled gates the agent out of planning without removing its card.
	Enabled bool `yaml:"enabled"`
}

// Registry holds agent cards and serves lookups for planning and
// execution. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	cards map[string]Card

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry creates a registry seeded with the built-in analyst cards.
func NewRegistry() *Registry {
	r := &Registry{
		cards: make(map[string]Card),
		done:  make(chan struct{}),
	}
	for _, c := range builtinCards() {
		r.cards[c.Name] = c
	}
	return r
}

// builtinCards returns the analyst lineup available out of the box.
// A manifest file can override or extend these.
func builtinCards() []Card {
	return []Card{
		{
			Name:         "valuation_agent",
			DisplayName:  "Valuation Analyst",
			Description:  "Estimates intrinsic value of equities using DCF, comparables, and earnings models.",
			URL:          "ws://localhost:8101/stream",
			Capabilities: []string{"dcf", "comparables", "earnings_analysis"},
			Enabled:      true,
		},
		{
			Name:         "risk_agent",
			DisplayName:  "Risk Analyst",
			Description:  "Assesses portfolio and single-name risk: volatility, drawdown, concentration, and factor exposure.",
			URL:          "ws://localhost:8102/stream",
			Capabilities: []string{"volatility", "drawdown", "factor_exposure"},
			Enabled:      true,
		},
		{
			Name:         "portfolio_agent",
			DisplayName:  "Portfolio Analyst",
			Description:  "Reviews holdings, allocation, and rebalancing opportunities across a portfolio.",
			URL:          "ws://localhost:8103/stream",
			Capabilities: []string{"allocation", "rebalancing", "performance_attribution"},
			Enabled:      true,
		},
		{
			Name:         "filings_agent",
			DisplayName:  "SEC Filings Analyst",
			Description:  "Reads 10-K, 10-Q, and 8-K filings and summarizes material disclosures.",
			URL:          "ws://localhost:8104/stream",
			Capabilities: []string{"10-K", "10-Q", "8-K", "disclosure_summary"},
			Enabled:      true,
		},
		{
			Name:         "signals_agent",
			DisplayName:  "Trading Signals Analyst",
			Description:  "Generates technical and momentum signals for watchlist tickers.",
			URL:          "ws://localhost:8105/stream",
			Capabilities: []string{"momentum", "technical_indicators", "watchlist_alerts"},
			Enabled:      true,
		},
	}
}

// Get returns the card for the named agent.
func (r *Registry) Get(name string) (Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cards[name]
	if !ok {
		return Card{}, fmt.Errorf("unknown agent: %s", name)
	}
	return c, nil
}

// Has returns true if the named agent exists and is enabled.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[name]
	return ok && c.Enabled
}

// List returns all enabled cards sorted by name.
func (r *Registry) List() []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cards := make([]Card, 0, len(r.cards))
	for _, c := range r.cards {
		if c.Enabled {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards
}

// Describe renders the enabled cards as a block of text for inclusion
// in planning prompts.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, c := range r.List() {
		fmt.Fprintf(&b, "- %s: %s", c.Name, c.Description)
		if len(c.Capabilities) > 0 {
			fmt.Fprintf(&b, " (capabilities: %s)", strings.Join(c.Capabilities, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// upsert installs or replaces cards under the lock.
func (r *Registry) upsert(cards []Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cards {
		r.cards[c.Name] = c
	}
}

// Close stops the manifest watcher if one is running.
func (r *Registry) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// logf goes through log so callers see registry events alongside the
// rest of the component logs.
func logf(format string, args ...any) {
	log.Printf("[agents] "+format, args...)
}
