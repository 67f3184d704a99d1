// Package notify posts run summaries to the PushPlus webhook.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stepsync-dev/stepsync/internal/config"
	"github.com/stepsync-dev/stepsync/internal/httpx"
	"github.com/stepsync-dev/stepsync/internal/runner"
)

// DefaultWebhook is the PushPlus send endpoint.
const DefaultWebhook = "http://www.pushplus.plus/send"

// Notifier delivers title/HTML-body messages over the PushPlus channel.
// It is an external collaborator: failures are logged, never fatal.
type Notifier struct {
	doer     httpx.Doer
	webhook  string
	settings config.Push
	now      func() time.Time
	logger   *logrus.Logger
}

func New(doer httpx.Doer, settings config.Push, now func() time.Time, logger *logrus.Logger) *Notifier {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Notifier{
		doer:     doer,
		webhook:  DefaultWebhook,
		settings: settings,
		now:      now,
		logger:   logger,
	}
}

// NotifySummary posts the aggregated run result. It is skipped when no
// token is configured, or when an hour filter is set and the current hour
// does not match.
func (n *Notifier) NotifySummary(ctx context.Context, s runner.Summary) error {
	if !n.settings.Enabled() {
		n.logger.Info("no PushPlus token configured, skipping notification")
		return nil
	}
	if h := n.settings.Hour; h >= 0 && n.now().Hour() != h {
		n.logger.Infof("current hour %d != notification hour %d, skipping", n.now().Hour(), h)
		return nil
	}

	title := fmt.Sprintf("[%s] step submission report", n.now().Format("2006-01-02 15:04:05"))
	return n.send(ctx, title, summaryHTML(s, n.settings.MaxAccounts))
}

// NotifyFailure reports a fatal startup error, so a silently broken
// configuration does not go unnoticed until someone reads the logs.
func (n *Notifier) NotifyFailure(ctx context.Context, runErr error) error {
	if !n.settings.Enabled() {
		return nil
	}
	title := fmt.Sprintf("[%s] step submission failed to start", n.now().Format("2006-01-02 15:04:05"))
	body := fmt.Sprintf("<p>Reason: %s</p><p>Check the CONFIG variable and the logs.</p>", runErr)
	return n.send(ctx, title, body)
}

func (n *Notifier) send(ctx context.Context, title, content string) error {
	form := url.Values{
		"token":    {n.settings.Token},
		"title":    {title},
		"content":  {content},
		"template": {"html"},
		"channel":  {"wechat"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build notification request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.doer.Do(req)
	if err != nil {
		return errors.Wrap(err, "post notification")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var reply struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return errors.Errorf("unexpected notification response: %s", string(raw))
	}
	if reply.Code != 200 {
		return errors.Errorf("notification rejected: %s", reply.Msg)
	}
	n.logger.Infof("notification delivered: %s", reply.Msg)
	return nil
}

// summaryHTML renders the aggregate counts plus a per-account line list,
// capped at maxAccounts entries to keep the message deliverable.
func summaryHTML(s runner.Summary, maxAccounts int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<h4>Run summary</h4><p>accounts: %d, succeeded: %d, failed: %d (%.1f%% success rate)</p>",
		s.Total, s.Succeeded, s.Failed, s.SuccessRate()*100)

	results := s.Results
	if maxAccounts > 0 && len(results) > maxAccounts {
		fmt.Fprintf(&b, "<p>showing the first %d of %d accounts</p>", maxAccounts, len(results))
		results = results[:maxAccounts]
	}

	b.WriteString("<h4>Accounts</h4><ul>")
	for _, res := range results {
		status := "FAILED"
		if res.Success {
			status = "OK"
		}
		fmt.Fprintf(&b, "<li>%s - %s - %s</li>", status, res.Identifier, res.Message)
	}
	b.WriteString("</ul>")

	return b.String()
}
