package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stepsync-dev/stepsync/internal/runner"
	"github.com/stepsync-dev/stepsync/internal/submit"
)

func TestPrinterResultLines(t *testing.T) {
	var stdout, buf strings.Builder
	p := NewPrinter(&stdout, true, false, &buf)

	p.Result(runner.Result{Identifier: "138****8000", Success: true, Message: "submitted"})
	p.Result(runner.Result{Identifier: "use****.com", Success: false, Message: "endpoint rejected"})

	assert.Contains(t, stdout.String(), "[+] 138****8000: submitted")
	assert.Contains(t, stdout.String(), "[-] use****.com: endpoint rejected")
	// The buffer mirror carries the same plain lines.
	assert.Contains(t, buf.String(), "[+] 138****8000: submitted")
}

func TestPrinterVerboseAddsHTTPStatus(t *testing.T) {
	var stdout strings.Builder
	p := NewPrinter(&stdout, true, true, nil)

	p.Result(runner.Result{
		Identifier: "138****8000",
		Success:    false,
		Message:    "endpoint rejected",
		Outcome:    &submit.Outcome{HTTPStatus: 503},
	})

	assert.Contains(t, stdout.String(), "(HTTP 503)")
}

func TestPrinterSummary(t *testing.T) {
	var stdout strings.Builder
	p := NewPrinter(&stdout, true, false, nil)

	p.Summary(runner.Summary{Total: 4, Succeeded: 3, Failed: 1})

	assert.Contains(t, stdout.String(), "accounts: 4, succeeded: 3, failed: 1")
	assert.Contains(t, stdout.String(), "75.0% success rate")
}
