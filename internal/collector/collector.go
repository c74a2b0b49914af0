// Package collector defines the capability agents use to gather hardware
// metrics.
//
// Each hardware source (IPMI, NVMe, GPU, PSU, BMC fans) implements
// Collector; a registry maps configuration keys to constructors so an
// agent's enabled-collector list composes its pipeline. The actual
// hardware-facing implementations live with the agent; this package owns
// the contract and the composition machinery.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xtxerr/dcmon/internal/logging"
	"github.com/xtxerr/dcmon/internal/model"
)

var log = logging.Component("collector")

// Collector gathers metrics from one hardware source.
type Collector interface {
	// Name identifies the collector in logs and configuration.
	Name() string

	// IsAvailable reports whether the underlying hardware or tooling is
	// present on this node. Unavailable collectors are skipped, not
	// errors: most fleets mix machine generations.
	IsAvailable() bool

	// Collect gathers one round of metrics.
	Collect() ([]model.Record, error)
}

// Constructor builds a collector from its configuration section.
type Constructor func(cfg map[string]string) (Collector, error)

// =============================================================================
// Registry
// =============================================================================

// Registry maps configuration keys to collector constructors.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a constructor under a configuration key. Registering the
// same key twice is a programming error.
func (r *Registry) Register(key string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[key]; exists {
		return fmt.Errorf("collector %q already registered", key)
	}
	r.constructors[key] = ctor
	return nil
}

// New builds a collector for a configuration key.
func (r *Registry) New(key string, cfg map[string]string) (Collector, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown collector %q", key)
	}
	return ctor(cfg)
}

// Keys returns the registered configuration keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Runner
// =============================================================================

// Runner executes a set of collectors and assembles their output into one
// WriteBatch-ready record set.
type Runner struct {
	collectors []Collector
}

// NewRunner creates a runner over the given collectors.
func NewRunner(collectors ...Collector) *Runner {
	return &Runner{collectors: collectors}
}

// Gather runs every available collector and concatenates their records.
// A failing collector is logged and skipped; one broken sensor must not
// cost the node its whole reporting cycle.
func (r *Runner) Gather(ctx context.Context) []model.Record {
	var records []model.Record

	for _, c := range r.collectors {
		if err := ctx.Err(); err != nil {
			log.Warn("gather aborted", "error", err)
			return records
		}

		if !c.IsAvailable() {
			log.Debug("collector unavailable", "collector", c.Name())
			continue
		}

		recs, err := c.Collect()
		if err != nil {
			log.Warn("collector failed", "collector", c.Name(), "error", err)
			continue
		}
		records = append(records, recs...)
	}

	return records
}
