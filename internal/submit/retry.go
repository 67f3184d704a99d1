package submit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stepsync-dev/stepsync/internal/account"
)

// Single performs one submission attempt. Satisfied by *Client and by test
// stubs.
type Single interface {
	SubmitOnce(ctx context.Context, acct account.Account, value int) Outcome
}

// Retrier wraps a Single with an exponential-backoff retry loop that
// distinguishes "transport succeeded" from "operation plausibly succeeded".
// A confirmed attempt stops the loop immediately; a suspicious one is
// reclassified through successIndicator before being treated as a failure.
type Retrier struct {
	client      Single
	maxRetries  int
	backoffBase float64
	logger      *logrus.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewRetrier(client Single, maxRetries int, backoffBase float64, logger *logrus.Logger) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffBase < 1 {
		backoffBase = 2
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Retrier{
		client:      client,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// Submit runs attempts 0..maxRetries inclusive. It returns whether the
// submission is considered successful, a human-readable message and the
// last attempt's outcome.
func (r *Retrier) Submit(ctx context.Context, acct account.Account, value int) (bool, string, Outcome) {
	log := r.logger.WithField("account", acct.Redacted())

	var last Outcome
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		last = r.client.SubmitOnce(ctx, acct, value)

		switch last.Status {
		case StatusConfirmed:
			return true, last.Message, last

		case StatusSuspicious:
			if ok, why := successIndicator(last); ok {
				// Plausible success; nothing independently verifies it.
				msg := fmt.Sprintf("%s (%s, unverified)", last.Message, why)
				return true, msg, last
			}
			log.WithField("attempt", attempt+1).Warnf("ambiguous response: %s", last.Message)

		default:
			log.WithField("attempt", attempt+1).Warnf("attempt failed: %s", last.Message)
		}

		if attempt == r.maxRetries || ctx.Err() != nil {
			break
		}
		delay := r.backoff(attempt + 1)
		log.Infof("retrying in %s", delay)
		r.sleep(delay)
	}

	return false, fmt.Sprintf("giving up after %d attempt(s): %s", r.maxRetries+1, last.Message), last
}

// backoff computes base^attempt seconds for attempt numbers starting at 1.
func (r *Retrier) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(r.backoffBase, float64(attempt)) * float64(time.Second))
}

// successIndicator inspects a suspicious outcome for an explicit success
// signal. Predicates run in a fixed priority order:
//
//  1. the decoded status code field equals the endpoint's success value
//  2. an explicit boolean success field is true
//  3. the raw body carries a recognizable success token
//
// Anything else stays a failed attempt.
func successIndicator(out Outcome) (bool, string) {
	if out.Reply != nil && out.Reply.Code == replyOKCode {
		return true, "status code reports success"
	}
	if out.Reply != nil && out.Reply.Success != nil && *out.Reply.Success {
		return true, "success flag is set"
	}
	if bodyHasSuccessToken(out.Body) {
		return true, "body mentions success"
	}
	return false, ""
}

var successTokens = []string{"success", "成功"}

func bodyHasSuccessToken(body string) bool {
	lower := strings.ToLower(body)
	for _, tok := range successTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
