package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/stepsync-dev/stepsync/internal/cli"
	"github.com/stepsync-dev/stepsync/internal/config"
	"github.com/stepsync-dev/stepsync/internal/httpx"
	"github.com/stepsync-dev/stepsync/internal/notify"
	"github.com/stepsync-dev/stepsync/internal/output"
	"github.com/stepsync-dev/stepsync/internal/runner"
	"github.com/stepsync-dev/stepsync/internal/steps"
	"github.com/stepsync-dev/stepsync/internal/submit"
)

// notifyTimeout bounds the PushPlus call independently of the submission
// timeout.
const notifyTimeout = 15 * time.Second

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "stepsync - scheduled step submission for Mi Motion accounts.")

	opts, err := cli.Parse(args, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	color.NoColor = opts.NoColor

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if opts.CheckUpdate {
		httpClient, err := httpx.NewClient(httpx.ClientConfig{Timeout: opts.Timeout})
		if err != nil {
			fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
			return 1
		}
		if err := checkUpdate(ctx, httpClient, stdout, opts.NoColor); err != nil {
			fmt.Fprintf(stderr, "update check failed: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("configuration error: %v", err)
		// A broken configuration should not fail silently when a
		// notification channel is available.
		notifyStartupFailure(cfg.Push, err, logger)
		return 1
	}
	logger.Infof("loaded %d account(s), concurrent=%t, sleep gap=%s",
		len(cfg.Accounts), cfg.Concurrent, cfg.SleepGap)

	var anchors []steps.Anchor
	if cfg.StepMode == config.StepModeFixed {
		anchors = steps.FixedBand(cfg.MinStep, cfg.MaxStep)
	} else {
		anchors = steps.RampAnchors()
	}
	gen := steps.NewGenerator(anchors, nil)

	var sink submit.Sink = submit.NopSink{}
	if opts.DebugDir != "" {
		sink = submit.NewDirSink(opts.DebugDir)
	}

	// Each account runs over its own HTTP session and retry state; the
	// factory builds a fresh chain per account.
	newSubmitter := func() runner.Submitter {
		httpClient, cerr := httpx.NewClient(httpx.ClientConfig{
			Timeout:  opts.Timeout,
			ProxyURL: opts.Proxy,
		})
		if cerr != nil {
			// Validated below before the run starts; unreachable here.
			panic(cerr)
		}
		client := submit.NewClient(httpClient, submit.ClientConfig{
			Endpoint: cfg.Endpoint,
			DryRun:   opts.DryRun,
			Sink:     sink,
			Logger:   logger,
		})
		return submit.NewRetrier(client, cfg.MaxRetries, cfg.BackoffBase, logger)
	}

	// Surface a bad proxy URL before any account is touched.
	if _, err := httpx.NewClient(httpx.ClientConfig{Timeout: opts.Timeout, ProxyURL: opts.Proxy}); err != nil {
		logger.Errorf("configuration error: %v", err)
		return 1
	}

	if opts.DryRun {
		logger.Info("dry run: nothing will be submitted")
	}

	// With a debug directory, a plain copy of the result lines lands next
	// to the response snapshots.
	var buf strings.Builder
	var stream *strings.Builder
	if opts.DebugDir != "" {
		stream = &buf
	}
	printer := output.NewPrinter(stdout, opts.NoColor, opts.Verbose, stream)

	run := runner.New(gen, newSubmitter, Now, logger)
	orch := runner.NewOrchestrator(run, runner.OrchestratorConfig{
		SleepGap:   cfg.SleepGap,
		Concurrent: cfg.Concurrent,
		OnResult:   printer.Result,
		Logger:     logger,
	})

	summary := orch.RunBatch(ctx, cfg.Accounts)
	printer.Summary(summary)

	if stream != nil {
		logPath := filepath.Join(opts.DebugDir, "run.txt")
		if werr := os.MkdirAll(opts.DebugDir, 0o755); werr != nil {
			logger.WithError(werr).Warnf("failed to create %q", opts.DebugDir)
		} else if werr := os.WriteFile(logPath, []byte(buf.String()), 0o600); werr != nil {
			logger.WithError(werr).Warnf("failed to write %q", logPath)
		}
	}

	sendSummary(cfg.Push, summary, logger)

	// Individual account failures do not fail the process; only
	// configuration problems do.
	return 0
}

func sendSummary(push config.Push, summary runner.Summary, logger *logrus.Logger) {
	notifier, err := newNotifier(push, logger)
	if err != nil {
		logger.WithError(err).Warn("notification client unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := notifier.NotifySummary(ctx, summary); err != nil {
		logger.WithError(err).Warn("failed to deliver summary notification")
	}
}

func notifyStartupFailure(push config.Push, runErr error, logger *logrus.Logger) {
	notifier, err := newNotifier(push, logger)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := notifier.NotifyFailure(ctx, runErr); err != nil {
		logger.WithError(err).Warn("failed to deliver startup failure notification")
	}
}

func newNotifier(push config.Push, logger *logrus.Logger) (*notify.Notifier, error) {
	httpClient, err := httpx.NewClient(httpx.ClientConfig{Timeout: notifyTimeout})
	if err != nil {
		return nil, err
	}
	return notify.New(httpClient, push, Now, logger), nil
}
