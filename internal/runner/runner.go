// Package runner drives accounts through value generation and submission,
// one result per account, sequentially or through a bounded worker pool.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stepsync-dev/stepsync/internal/account"
	"github.com/stepsync-dev/stepsync/internal/steps"
	"github.com/stepsync-dev/stepsync/internal/submit"
)

// Result is the single record an account produces in a run.
type Result struct {
	Identifier string // redacted form
	Success    bool
	Message    string
	Outcome    *submit.Outcome // nil when the attempt never reached submission
}

// Summary aggregates a whole run. Built once, never mutated afterwards.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []Result
}

func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// Submitter is the retry-wrapped submission chain for one account.
type Submitter interface {
	Submit(ctx context.Context, acct account.Account, value int) (bool, string, submit.Outcome)
}

// maxDiagLen caps diagnostic messages recovered from panics.
const maxDiagLen = 200

// Runner executes a single account. Each account gets its own submitter
// (and with it its own HTTP session) from the factory; nothing is shared
// between accounts.
type Runner struct {
	gen          *steps.Generator
	newSubmitter func() Submitter
	now          func() time.Time
	logger       *logrus.Logger
}

func New(gen *steps.Generator, newSubmitter func() Submitter, now func() time.Time, logger *logrus.Logger) *Runner {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{gen: gen, newSubmitter: newSubmitter, now: now, logger: logger}
}

// Run produces exactly one Result, no matter what happens inside: any panic
// below this point is converted into a failed result with a truncated
// diagnostic. Nothing propagates past this boundary.
func (r *Runner) Run(ctx context.Context, acct account.Account) (res Result) {
	res = Result{Identifier: acct.Redacted(), Message: "not executed"}

	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Message = truncate(fmt.Sprintf("internal error: %v", p), maxDiagLen)
			r.logger.WithField("account", res.Identifier).Error(res.Message)
		}
	}()

	value := r.gen.Generate(r.now().Hour())

	ok, msg, out := r.newSubmitter().Submit(ctx, acct, value)
	res.Success = ok
	res.Message = msg
	res.Outcome = &out
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
