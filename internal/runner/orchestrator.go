package runner

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stepsync-dev/stepsync/internal/account"
)

// maxWorkers caps the concurrent pool regardless of account count; excess
// accounts queue on the jobs channel.
const maxWorkers = 5

// Orchestrator fans a batch of accounts out to the Runner and aggregates
// one Result per account into a Summary.
type Orchestrator struct {
	runner     *Runner
	sleepGap   time.Duration
	concurrent bool
	logger     *logrus.Logger

	// onResult streams results as they complete (display). Optional.
	onResult func(Result)

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

type OrchestratorConfig struct {
	SleepGap   time.Duration // pause between accounts in sequential mode
	Concurrent bool
	OnResult   func(Result)
	Logger     *logrus.Logger
}

func NewOrchestrator(r *Runner, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Orchestrator{
		runner:     r,
		sleepGap:   cfg.SleepGap,
		concurrent: cfg.Concurrent,
		logger:     cfg.Logger,
		onResult:   cfg.OnResult,
		sleep:      time.Sleep,
	}
}

// RunBatch processes every account exactly once. Sequential mode preserves
// input order and pauses between accounts; concurrent mode uses the bounded
// pool and gives no ordering guarantee. A cancelled context stops the
// dispatch of new accounts; accounts never dispatched still get a failed
// Result so the invariant of one Result per account holds.
func (o *Orchestrator) RunBatch(ctx context.Context, accounts []account.Account) Summary {
	var results []Result
	if o.concurrent {
		results = o.runConcurrent(ctx, accounts)
	} else {
		results = o.runSequential(ctx, accounts)
	}

	s := Summary{Total: len(accounts), Results: results}
	for _, res := range results {
		if res.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

func (o *Orchestrator) runSequential(ctx context.Context, accounts []account.Account) []Result {
	results := make([]Result, 0, len(accounts))
	for i, acct := range accounts {
		if ctx.Err() != nil {
			results = append(results, cancelledResult(acct))
			continue
		}

		o.logger.Infof("account %d/%d", i+1, len(accounts))
		res := o.runner.Run(ctx, acct)
		o.emit(res)
		results = append(results, res)

		if i < len(accounts)-1 && o.sleepGap > 0 && ctx.Err() == nil {
			o.logger.Infof("sleeping %s before next account", o.sleepGap)
			o.sleep(o.sleepGap)
		}
	}
	return results
}

func (o *Orchestrator) runConcurrent(ctx context.Context, accounts []account.Account) []Result {
	type job struct {
		idx  int
		acct account.Account
	}
	type indexed struct {
		idx int
		res Result
	}

	workers := maxWorkers
	if len(accounts) < workers {
		workers = len(accounts)
	}
	if workers == 0 {
		return nil
	}
	o.logger.Infof("concurrent mode, %d worker(s)", workers)

	jobs := make(chan job)
	out := make(chan indexed, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				out <- indexed{idx: j.idx, res: o.runner.Run(ctx, j.acct)}
			}
		}()
	}

	go func() {
		defer close(out)
		wg.Wait()
	}()

	go func() {
		defer close(jobs)
		for i, acct := range accounts {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{idx: i, acct: acct}:
			}
		}
	}()

	results := make([]Result, 0, len(accounts))
	seen := make([]bool, len(accounts))
	for ir := range out {
		seen[ir.idx] = true
		o.emit(ir.res)
		results = append(results, ir.res)
	}

	// Accounts the cancelled dispatch never handed to a worker.
	for i, done := range seen {
		if !done {
			results = append(results, cancelledResult(accounts[i]))
		}
	}
	return results
}

func (o *Orchestrator) emit(res Result) {
	if o.onResult != nil {
		o.onResult(res)
	}
}

func cancelledResult(acct account.Account) Result {
	return Result{
		Identifier: acct.Redacted(),
		Success:    false,
		Message:    "run cancelled before this account was processed",
	}
}
