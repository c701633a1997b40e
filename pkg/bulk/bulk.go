// Package bulk fans a mutation out over a list of entity ids and collects
// per-item results.
package bulk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
)

// DefaultLimit is the worker ceiling of Concurrent when Limit is unset.
const DefaultLimit = 20

// Func mutates one entity.
type Func func(ctx context.Context, id string) error

// Runner applies a Func to every id.
type Runner interface {
	Run(ctx context.Context, ids []string, fn Func) *Report
}

// Result is the outcome of one item.
type Result struct {
	ID       string
	Err      error
	Duration time.Duration
	// Skipped is set for items never dispatched because the context was
	// canceled first.
	Skipped bool
}

// Report holds one Result per input id, in input order.
type Report struct {
	Results  []Result
	Duration time.Duration
}

func newReport(ids []string) *Report {
	r := &Report{Results: make([]Result, len(ids))}
	for i, id := range ids {
		r.Results[i].ID = id
	}
	return r
}

// Total returns the number of items.
func (r *Report) Total() int {
	return len(r.Results)
}

// Succeeded returns the ids that completed without error.
func (r *Report) Succeeded() []string {
	var ids []string
	for _, res := range r.Results {
		if !res.Skipped && res.Err == nil {
			ids = append(ids, res.ID)
		}
	}
	return ids
}

// Failed returns the results that were dispatched and failed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Skipped && res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Skipped returns how many items were never dispatched.
func (r *Report) Skipped() int {
	n := 0
	for _, res := range r.Results {
		if res.Skipped {
			n++
		}
	}
	return n
}

// Err aggregates every failure into one error, or nil when all items
// succeeded.
func (r *Report) Err() error {
	var errs *multierror.Error
	for _, res := range r.Failed() {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", res.ID, res.Err))
	}
	if skipped := r.Skipped(); skipped > 0 {
		cause := context.Canceled
		for _, res := range r.Results {
			if res.Skipped && res.Err != nil {
				cause = res.Err
				break
			}
		}
		errs = multierror.Append(errs, fmt.Errorf("%d items not dispatched: %w", skipped, cause))
	}
	if errs == nil {
		return nil
	}
	total := r.Total()
	errs.ErrorFormat = func(list []error) string {
		lines := make([]string, len(list))
		for i, err := range list {
			lines[i] = "  * " + err.Error()
		}
		return fmt.Sprintf("%d of %d items failed:\n%s", len(r.Failed()), total, strings.Join(lines, "\n"))
	}
	return errs
}

// Summary renders "n/total succeeded" for log lines.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d/%d succeeded", len(r.Succeeded()), r.Total())
	if failed := len(r.Failed()); failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	if skipped := r.Skipped(); skipped > 0 {
		s += fmt.Sprintf(", %d skipped", skipped)
	}
	return s
}

func runOne(ctx context.Context, res *Result, fn Func) {
	start := time.Now()
	res.Err = fn(ctx, res.ID)
	res.Duration = time.Since(start)
}

func skip(res *Result, err error) {
	res.Skipped = true
	res.Err = err
}

// Sequential runs one item at a time, sleeping Delay between calls.
type Sequential struct {
	Delay time.Duration
}

// Run implements Runner.
func (s Sequential) Run(ctx context.Context, ids []string, fn Func) *Report {
	start := time.Now()
	report := newReport(ids)
	for i := range report.Results {
		if i > 0 && s.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			for j := i; j < len(report.Results); j++ {
				skip(&report.Results[j], err)
			}
			break
		}
		runOne(ctx, &report.Results[i], fn)
	}
	report.Duration = time.Since(start)
	return report
}

// Concurrent runs items on a bounded goroutine pool of Limit workers.
type Concurrent struct {
	Limit int
}

// Run implements Runner.
func (c Concurrent) Run(ctx context.Context, ids []string, fn Func) *Report {
	start := time.Now()
	report := newReport(ids)
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	pool, err := ants.NewPool(limit)
	if err != nil {
		for i := range report.Results {
			report.Results[i].Err = fmt.Errorf("creating worker pool: %w", err)
		}
		report.Duration = time.Since(start)
		return report
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range report.Results {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(report.Results); j++ {
				skip(&report.Results[j], err)
			}
			break
		}
		res := &report.Results[i]
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			runOne(ctx, res, fn)
		}); err != nil {
			wg.Done()
			res.Err = fmt.Errorf("submitting task: %w", err)
		}
	}
	wg.Wait()
	report.Duration = time.Since(start)
	return report
}

// New picks Concurrent when limit > 1 and Sequential otherwise.
func New(limit int, delay time.Duration) Runner {
	if limit > 1 {
		return Concurrent{Limit: limit}
	}
	return Sequential{Delay: delay}
}
