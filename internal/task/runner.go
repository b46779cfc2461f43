package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/metrics"
	"github.com/openpatata/scrapers/internal/record"
)

// Outcome is one task's result within a run.
type Outcome struct {
	Task     string
	Err      error
	Duration time.Duration
}

// Summary aggregates a whole run.
type Summary struct {
	RunID    string
	Outcomes []Outcome
}

// Failed counts the tasks that did not complete.
func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Runner resolves tasks by name and drives them sequentially. A crash
// in one task is contained and reported; sibling tasks still run.
type Runner struct {
	crawler *crawler.Crawler
	store   record.Store
	log     *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(c *crawler.Crawler, store record.Store, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{crawler: c, store: store, log: log}
}

// Run executes the named tasks in order and returns a per-task
// summary. The returned error is non-nil only when every task failed
// or no names were given.
func (r *Runner) Run(ctx context.Context, names ...string) (Summary, error) {
	if len(names) == 0 {
		return Summary{}, fmt.Errorf("task: no tasks named; known tasks: %v", Names())
	}

	summary := Summary{RunID: uuid.NewString()}
	log := r.log.With(zap.String("run_id", summary.RunID))

	for _, name := range names {
		start := time.Now()
		err := r.runOne(ctx, log, name)
		outcome := Outcome{Task: name, Err: err, Duration: time.Since(start)}
		summary.Outcomes = append(summary.Outcomes, outcome)

		if err != nil {
			log.Error("task failed",
				zap.String("task", name),
				zap.Duration("duration", outcome.Duration),
				zap.Error(err))
			metrics.ObserveTask(name, "error", outcome.Duration)
			continue
		}
		log.Info("task completed",
			zap.String("task", name),
			zap.Duration("duration", outcome.Duration))
		metrics.ObserveTask(name, "ok", outcome.Duration)
	}

	if summary.Failed() == len(names) {
		return summary, fmt.Errorf("task: all %d tasks failed", len(names))
	}
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, log *zap.Logger, name string) error {
	factory, ok := Lookup(name)
	if !ok {
		return &Error{Task: name, Phase: "resolve",
			Err: fmt.Errorf("unknown task; known tasks: %v", Names())}
	}
	t := factory()
	log.Info("task starting", zap.String("task", name))

	result, err := r.scrape(ctx, t, r.crawler.Clone())
	if err != nil {
		return err
	}
	return r.persist(ctx, t, result)
}

// scrape runs the gathering phase, containing panics from malformed
// pages so one task's crash cannot take down the whole invocation.
func (r *Runner) scrape(ctx context.Context, t Task, c *crawler.Crawler) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &Error{Task: t.Name(), Phase: "scrape", Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	result, err = t.Scrape(ctx, c)
	if err != nil {
		return nil, &Error{Task: t.Name(), Phase: "scrape", Err: err}
	}
	return result, nil
}

func (r *Runner) persist(ctx context.Context, t Task, result any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &Error{Task: t.Name(), Phase: "persist", Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if err := t.Persist(ctx, r.store, result); err != nil {
		return &Error{Task: t.Name(), Phase: "persist", Err: err}
	}
	return nil
}
