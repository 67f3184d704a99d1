package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

var ErrHelp = errors.New("help requested")

type Options struct {
	NoColor     bool
	Verbose     bool
	DryRun      bool
	CheckUpdate bool

	Timeout  time.Duration
	Proxy    string
	DebugDir string
}

const usageText = `
usage:
  stepsync [flags]

Accounts and submission parameters come from the CONFIG environment
variable (a JSON object), optionally loaded from a .env file.

flags:
  -h, --help            show this help message and exit
  --no-color            disable colored stdout output
  -v, --verbose         verbose output
  -n, --dry-run         validate and generate but do not submit anything
  --check-update        check for a newer release and exit

options:
  --timeout SECONDS     HTTP request timeout (default: 30)
  --proxy URL           socks5:// egress proxy for submissions
  --debug-dir DIR       write the latest raw response per account here
`

func Parse(args []string, stdout, stderr io.Writer) (Options, error) {
	var opts Options
	var (
		help     bool
		timeoutS int
	)

	fs := flag.NewFlagSet("stepsync", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Usage = func() {
		_, _ = fmt.Fprint(stdout, usageText)
	}

	// Help
	fs.BoolVar(&help, "h", false, "show help")
	fs.BoolVar(&help, "help", false, "show help")

	// Behavior flags
	fs.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	fs.BoolVar(&opts.Verbose, "v", false, "verbose output")
	fs.BoolVar(&opts.Verbose, "verbose", false, "verbose output")
	fs.BoolVar(&opts.DryRun, "n", false, "dry run")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "dry run")
	fs.BoolVar(&opts.CheckUpdate, "check-update", false, "check for a newer release")

	// Options
	fs.IntVar(&timeoutS, "timeout", 30, "request timeout in seconds")
	fs.StringVar(&opts.Proxy, "proxy", "", "socks5 proxy url")
	fs.StringVar(&opts.DebugDir, "debug-dir", "", "directory for raw response artifacts")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if help {
		fs.Usage()
		return Options{}, ErrHelp
	}

	if timeoutS <= 0 {
		// Don't allow zero or negative timeouts; reset to default.
		timeoutS = 30
		if opts.NoColor {
			fmt.Fprintf(stdout, "[!] Invalid timeout value; using default of 30 seconds.\n")
		} else {
			fmt.Fprintf(color.Output, "[%s] Invalid timeout value; using default of %s.\n",
				color.HiRedString("!"),
				color.HiYellowString("30 seconds"),
			)
		}
	}
	opts.Timeout = time.Duration(timeoutS) * time.Second

	if extra := fs.Args(); len(extra) > 0 {
		return Options{}, fmt.Errorf("unexpected arguments: %v", extra)
	}

	return opts, nil
}
