package submit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stepsync-dev/stepsync/internal/account"
	"github.com/stepsync-dev/stepsync/internal/httpx"
)

// DefaultEndpoint is the third-party submission API.
const DefaultEndpoint = "https://wzz.wangzouzou.com/motion/api/motion/Xiaomi"

// The endpoint rejects requests that do not look like its own web client,
// so the header set mimics a browser session on the expected origin.
const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.7339.128 Safari/537.36"
	origin    = "https://m.cqzz.top"
	referer   = "https://m.cqzz.top/"
)

// maxBodyBytes caps how much of a response body is read for classification.
const maxBodyBytes = 1 << 20

// replyOKCode is the endpoint's "accepted" status code.
const replyOKCode = 200

// Client performs one submission attempt and classifies the outcome.
type Client struct {
	doer     httpx.Doer
	endpoint string
	dryRun   bool
	sink     Sink
	logger   *logrus.Logger
	now      func() time.Time
}

type ClientConfig struct {
	Endpoint string // DefaultEndpoint when empty
	DryRun   bool
	Sink     Sink // NopSink when nil
	Logger   *logrus.Logger
}

func NewClient(doer httpx.Doer, cfg ClientConfig) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		doer:     doer,
		endpoint: cfg.Endpoint,
		dryRun:   cfg.DryRun,
		sink:     cfg.Sink,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// SubmitOnce validates the credentials, then performs a single form-encoded
// POST and classifies the response. In dry-run mode no network call is made
// and the attempt is reported as confirmed with a synthetic payload.
func (c *Client) SubmitOnce(ctx context.Context, acct account.Account, value int) Outcome {
	if err := account.Validate(acct.Identifier, acct.Secret); err != nil {
		return failedf("credential validation failed: %v", err)
	}

	if c.dryRun {
		body := `{"code":200,"data":"dry-run"}`
		reply := &Reply{Code: replyOKCode, Data: json.RawMessage(`"dry-run"`)}
		return Outcome{
			Status:  StatusConfirmed,
			Body:    body,
			Reply:   reply,
			Message: "dry run: " + strconv.Itoa(value) + " steps not submitted",
		}
	}

	form := url.Values{
		"phone": {acct.Identifier},
		"pwd":   {acct.Secret},
		"num":   {strconv.Itoa(value)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failedf("build request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", referer)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	c.logger.WithFields(logrus.Fields{
		"account": acct.Redacted(),
		"steps":   value,
	}).Info("submitting")

	resp, err := c.doer.Do(req)
	if err != nil {
		return failedf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	body := string(raw)

	out := c.classify(resp.StatusCode, body, readErr, value)
	c.record(acct, out)
	return out
}

func (c *Client) classify(status int, body string, readErr error, value int) Outcome {
	out := Outcome{HTTPStatus: status, Body: body}

	if readErr != nil {
		out.Status = StatusFailed
		out.Message = "read response: " + readErr.Error()
		return out
	}

	if status < 200 || status > 299 {
		out.Status = StatusFailed
		out.Message = "endpoint returned HTTP " + strconv.Itoa(status)
		return out
	}

	var reply Reply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		out.Status = StatusSuspicious
		out.Message = "response is not in the expected format: " + snippet(body, 100)
		return out
	}
	out.Reply = &reply

	if reply.Code == replyOKCode {
		out.Status = StatusConfirmed
		msg := reply.DataText()
		if msg == "" {
			msg = "success"
		}
		out.Message = "submitted " + strconv.Itoa(value) + " steps, endpoint replied: " + msg
		return out
	}

	reason := reply.DataText()
	if reason == "" {
		reason = reply.Msg
	}
	if reason == "" {
		reason = "unknown error"
	}
	out.Status = StatusFailed
	if isRateLimited(reason) {
		out.Message = "endpoint rejected: " + reason + " (rate limited, try again in about an hour)"
	} else {
		out.Message = "endpoint rejected: " + reason
	}
	return out
}

func (c *Client) record(acct account.Account, out Outcome) {
	snap := Snapshot{
		Identifier: acct.Redacted(),
		HTTPStatus: out.HTTPStatus,
		Body:       out.Body,
		Reply:      out.Reply,
		Timestamp:  c.now(),
	}
	if err := c.sink.Write(acct.Identifier, snap); err != nil {
		c.logger.WithError(err).WithField("account", acct.Redacted()).
			Warn("failed to persist response snapshot")
	}
}

// rateLimitTokens mark rejection messages that mean "slow down" rather than
// a real failure; the endpoint mixes languages.
var rateLimitTokens = []string{
	"频繁",
	"请求太多",
	"rate limit",
	"too many requests",
}

func isRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	for _, tok := range rateLimitTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
