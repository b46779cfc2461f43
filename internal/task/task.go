// Package task defines the unit of scraping work and the runner that
// drives named tasks against the parliament site.
package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/record"
)

// Task is one scraping job. Scrape gathers remote content and returns
// an in-memory result; Persist transforms that result into record
// writes. Persist runs at most once per successful Scrape and never
// when Scrape fails.
type Task interface {
	Name() string
	Scrape(ctx context.Context, c *crawler.Crawler) (any, error)
	Persist(ctx context.Context, store record.Store, result any) error
}

// Factory builds a fresh Task instance per run.
type Factory func() Task

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a task factory under a name. Duplicate names panic at
// init time, which is when registration happens.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("task: duplicate registration of %q", name))
	}
	registry[name] = factory
}

// Lookup resolves a registered task by name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	return factory, ok
}

// Names lists every registered task, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Error wraps a task failure with the task's name and the phase it
// failed in.
type Error struct {
	Task  string
	Phase string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %s: %s phase: %v", e.Task, e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
