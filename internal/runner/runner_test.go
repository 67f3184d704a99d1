package runner

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepsync-dev/stepsync/internal/account"
	"github.com/stepsync-dev/stepsync/internal/steps"
	"github.com/stepsync-dev/stepsync/internal/submit"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testGenerator() *steps.Generator {
	return steps.NewGenerator(steps.RampAnchors(), rand.New(rand.NewSource(1)))
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

// funcSubmitter adapts a function to the Submitter interface.
type funcSubmitter func(ctx context.Context, acct account.Account, value int) (bool, string, submit.Outcome)

func (f funcSubmitter) Submit(ctx context.Context, acct account.Account, value int) (bool, string, submit.Outcome) {
	return f(ctx, acct, value)
}

func newRunnerWith(sub Submitter) *Runner {
	return New(testGenerator(), func() Submitter { return sub }, fixedClock, quietLogger())
}

func TestRunnerProducesResult(t *testing.T) {
	sub := funcSubmitter(func(_ context.Context, _ account.Account, value int) (bool, string, submit.Outcome) {
		assert.GreaterOrEqual(t, value, 8000) // noon anchor
		assert.LessOrEqual(t, value, 14000)
		return true, "submitted", submit.Outcome{Status: submit.StatusConfirmed}
	})

	res := newRunnerWith(sub).Run(context.Background(), account.Account{Identifier: "13800138000", Secret: "x"})

	assert.True(t, res.Success)
	assert.Equal(t, "submitted", res.Message)
	assert.Equal(t, "138****8000", res.Identifier)
	require.NotNil(t, res.Outcome)
}

func TestRunnerRecoversPanics(t *testing.T) {
	sub := funcSubmitter(func(context.Context, account.Account, int) (bool, string, submit.Outcome) {
		panic("submitter exploded: " + strings.Repeat("x", 400))
	})

	res := newRunnerWith(sub).Run(context.Background(), account.Account{Identifier: "13800138000", Secret: "x"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "internal error")
	assert.LessOrEqual(t, len(res.Message), 200)
}

func TestRunBatchSequentialKeepsOrderAndSleeps(t *testing.T) {
	accounts := []account.Account{
		{Identifier: "13800138001", Secret: "x"},
		{Identifier: "13800138002", Secret: "x"},
		{Identifier: "13800138003", Secret: "x"},
	}

	sub := funcSubmitter(func(_ context.Context, acct account.Account, _ int) (bool, string, submit.Outcome) {
		return true, acct.Identifier, submit.Outcome{Status: submit.StatusConfirmed}
	})

	o := NewOrchestrator(newRunnerWith(sub), OrchestratorConfig{
		SleepGap: 3 * time.Second,
		Logger:   quietLogger(),
	})
	var sleeps []time.Duration
	o.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	s := o.RunBatch(context.Background(), accounts)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.Succeeded)
	require.Len(t, s.Results, 3)
	for i, acct := range accounts {
		assert.Equal(t, acct.Identifier, s.Results[i].Message, "input order must be preserved")
	}
	// A pause after each non-final account only.
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeps)
}

func TestRunBatchMixedValidity(t *testing.T) {
	// Real submission chain in dry-run mode: validation runs, network does
	// not.
	newSubmitter := func() Submitter {
		client := submit.NewClient(nil, submit.ClientConfig{DryRun: true, Logger: quietLogger()})
		r := submit.NewRetrier(client, 0, 2, quietLogger())
		return r
	}
	run := New(testGenerator(), newSubmitter, fixedClock, quietLogger())
	o := NewOrchestrator(run, OrchestratorConfig{Logger: quietLogger()})

	s := o.RunBatch(context.Background(), []account.Account{
		{Identifier: "13800138000", Secret: "hunter2"},
		{Identifier: "user@example.com", Secret: ""},
		{Identifier: "other@example.com", Secret: "hunter2"},
	})

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate(), 1e-9)

	require.Len(t, s.Results, 3)
	assert.False(t, s.Results[1].Success)
	assert.Contains(t, s.Results[1].Message, "validation")
}

func TestRunBatchConcurrentRunsEveryAccountOnce(t *testing.T) {
	const n = 23 // larger than the pool cap

	accounts := make([]account.Account, n)
	for i := range accounts {
		accounts[i] = account.Account{Identifier: fmt.Sprintf("138001380%02d", i), Secret: "x"}
	}

	var mu sync.Mutex
	counts := make(map[string]int)

	sub := funcSubmitter(func(_ context.Context, acct account.Account, _ int) (bool, string, submit.Outcome) {
		mu.Lock()
		counts[acct.Identifier]++
		mu.Unlock()
		return true, "ok", submit.Outcome{Status: submit.StatusConfirmed}
	})

	o := NewOrchestrator(newRunnerWith(sub), OrchestratorConfig{
		Concurrent: true,
		Logger:     quietLogger(),
	})

	s := o.RunBatch(context.Background(), accounts)

	assert.Equal(t, n, s.Total)
	assert.Equal(t, n, s.Succeeded)
	assert.Len(t, s.Results, n)

	assert.Len(t, counts, n)
	for id, c := range counts {
		assert.Equal(t, 1, c, "account %s", id)
	}
}

func TestRunBatchCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub := funcSubmitter(func(context.Context, account.Account, int) (bool, string, submit.Outcome) {
		t.Fatal("no account should run after cancellation")
		return false, "", submit.Outcome{}
	})

	o := NewOrchestrator(newRunnerWith(sub), OrchestratorConfig{Logger: quietLogger()})
	s := o.RunBatch(ctx, []account.Account{
		{Identifier: "13800138001", Secret: "x"},
		{Identifier: "13800138002", Secret: "x"},
	})

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Failed)
	require.Len(t, s.Results, 2)
	for _, res := range s.Results {
		assert.Contains(t, res.Message, "cancelled")
	}
}

func TestRunBatchStreamsResults(t *testing.T) {
	var streamed []Result
	sub := funcSubmitter(func(context.Context, account.Account, int) (bool, string, submit.Outcome) {
		return true, "ok", submit.Outcome{}
	})

	o := NewOrchestrator(newRunnerWith(sub), OrchestratorConfig{
		OnResult: func(r Result) { streamed = append(streamed, r) },
		Logger:   quietLogger(),
	})

	s := o.RunBatch(context.Background(), []account.Account{
		{Identifier: "13800138001", Secret: "x"},
		{Identifier: "13800138002", Secret: "x"},
	})

	assert.Len(t, streamed, s.Total)
}
