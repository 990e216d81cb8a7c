package parallel

import (
	"context"
	"sync"
	"time"

	"github.com/smilemakc/retecore/internal/rule"
)

// Options configures one FireAll run (spec §4.K config block).
type Options struct {
	MaxThreads         int
	MinRulesPerThread  int
	DependencyAnalysis bool
}

// BatchReport captures one batch's outcome.
type BatchReport struct {
	RuleCount int
	Elapsed   time.Duration
	Errors    []error
}

// Report is FireAll's outcome (spec §4.K: "speedup estimate and
// per-thread counts").
type Report struct {
	Batches         []BatchReport
	SequentialEst   time.Duration
	ParallelElapsed time.Duration
	SpeedupEstimate float64
	ThreadsPerBatch []int
}

// Executor runs rule batches with bounded worker concurrency, grounded
// on _examples/smilemakc-mbflow's dag_executor.go wave loop: waves
// (here, batches) run sequentially, nodes (here, rules) within a wave
// run on goroutines bounded by a semaphore, joined by a WaitGroup.
type Executor struct {
	Opts Options
}

// NewExecutor builds an Executor with the given options, defaulting
// MaxThreads to a usable value if unset.
func NewExecutor(opts Options) *Executor {
	if opts.MaxThreads <= 0 {
		opts.MaxThreads = 4
	}
	return &Executor{Opts: opts}
}

// FireAll fires every rule in batches, running rules within a batch
// concurrently on a bounded worker pool and placing a barrier between
// batches (spec §4.K).
func (e *Executor) FireAll(ctx context.Context, batches []Batch, fire func(*rule.Rule) error) (Report, error) {
	var report Report
	start := time.Now()
	var sequentialEst time.Duration

	for _, batch := range batches {
		batchStart := time.Now()

		threads := e.Opts.MaxThreads
		if e.Opts.MinRulesPerThread > 0 {
			want := (len(batch) + e.Opts.MinRulesPerThread - 1) / e.Opts.MinRulesPerThread
			if want < threads {
				threads = want
			}
		}
		if threads < 1 {
			threads = 1
		}
		if threads > len(batch) {
			threads = len(batch)
		}

		sem := make(chan struct{}, threads)
		var wg sync.WaitGroup
		var mu sync.Mutex
		var errs []error

		for _, r := range batch {
			select {
			case <-ctx.Done():
				mu.Lock()
				errs = append(errs, ctx.Err())
				mu.Unlock()
				continue
			default:
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(rl *rule.Rule) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := fire(rl); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(r)
		}
		wg.Wait()

		report.Batches = append(report.Batches, BatchReport{
			RuleCount: len(batch),
			Elapsed:   time.Since(batchStart),
			Errors:    errs,
		})
		report.ThreadsPerBatch = append(report.ThreadsPerBatch, threads)
		sequentialEst += time.Since(batchStart) * time.Duration(len(batch))
	}

	report.ParallelElapsed = time.Since(start)
	report.SequentialEst = sequentialEst
	if report.ParallelElapsed > 0 {
		report.SpeedupEstimate = float64(report.SequentialEst) / float64(report.ParallelElapsed)
	}
	return report, nil
}
