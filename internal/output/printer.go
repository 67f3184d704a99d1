package output

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/fatih/color"

	"github.com/stepsync-dev/stepsync/internal/runner"
)

// Printer writes per-account result lines and the run summary to stdout,
// optionally mirroring a plain-text copy into a buffer (used for
// debugging artifacts).
type Printer struct {
	noColor bool
	verbose bool

	logger *log.Logger
	stream *log.Logger // optional (writes to buffer)
}

func NewPrinter(stdout io.Writer, noColor, verbose bool, buf *strings.Builder) *Printer {
	p := &Printer{
		noColor: noColor,
		verbose: verbose,
		logger:  log.New(stdout, "", 0),
	}
	if buf != nil {
		p.stream = log.New(buf, "", 0)
	}
	return p
}

// Result prints one pass/fail line with the reason. Verbose mode adds the
// HTTP status of the last attempt when one exists.
func (p *Printer) Result(res runner.Result) {
	detail := ""
	if p.verbose && res.Outcome != nil && res.Outcome.HTTPStatus != 0 {
		detail = fmt.Sprintf(" (HTTP %d)", res.Outcome.HTTPStatus)
	}

	// Buffer output is always plain.
	mark := "-"
	if res.Success {
		mark = "+"
	}
	if p.stream != nil {
		p.stream.Printf("[%s] %s: %s%s", mark, res.Identifier, res.Message, detail)
	}

	if res.Success {
		if p.noColor {
			p.logger.Printf("[%s] %s: %s%s", "+", res.Identifier, res.Message, detail)
		} else {
			p.logger.Printf("[%s] %s: %s%s", color.HiGreenString("+"), color.HiWhiteString(res.Identifier), res.Message, detail)
		}
		return
	}

	if p.noColor {
		p.logger.Printf("[%s] %s: %s%s", "-", res.Identifier, res.Message, detail)
	} else {
		p.logger.Printf("[%s] %s: %s%s", color.HiRedString("-"), res.Identifier, color.HiYellowString(res.Message), detail)
	}
}

// Summary prints the aggregate block after all accounts finished.
func (p *Printer) Summary(s runner.Summary) {
	line := fmt.Sprintf("accounts: %d, succeeded: %d, failed: %d (%.1f%% success rate)",
		s.Total, s.Succeeded, s.Failed, s.SuccessRate()*100)

	if p.stream != nil {
		p.stream.Printf("%s", line)
	}

	p.logger.Printf("%s", strings.Repeat("=", 50))
	switch {
	case p.noColor:
		p.logger.Printf("%s", line)
	case s.Failed == 0:
		p.logger.Printf("%s", color.HiGreenString(line))
	default:
		p.logger.Printf("%s", color.HiYellowString(line))
	}
	p.logger.Printf("%s", strings.Repeat("=", 50))
}
