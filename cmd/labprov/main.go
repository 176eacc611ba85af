// labprov provisions routing protocols onto a containerlab router lab.
//
// Usage:
//
//	labprov [flags] discover
//	labprov [flags] deploy
//	labprov [flags] run
//	labprov [flags] inventory export|import <file>
//
// discover learns hostname and loopback from every running node and records
// them in the inventory. deploy renders each protocol template for every
// stored device and pushes it. run does both.
//
// Exit status is 0 when the run completed, 1 on setup errors, and 2 when
// --strict is set and any device failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		var coded *exitError
		if errors.As(err, &coded) {
			fmt.Fprintf(os.Stderr, "error: %v\n", coded.err)
			os.Exit(coded.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitError carries a non-default exit status
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

// options are the command line flags
type options struct {
	configPath string
	dbPath     string
	templates  []string
	strict     bool
	logLevel   string
	format     string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("labprov", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "config file (default: search $LABPROV_CONFIG, ./labprov.yaml, ~/.config/labprov)")
	flagSet.StringVar(&opts.dbPath, "db", "", "SQLite inventory path (overrides database.path)")
	flagSet.StringSliceVar(&opts.templates, "templates", nil, "protocol templates to deploy, in order (default: templates.protocols)")
	flagSet.BoolVar(&opts.strict, "strict", false, "exit 2 when any device failed")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&opts.format, "format", "ansible", "inventory file format: ansible, json")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: labprov [flags] discover|deploy|run|inventory export|import <file>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return fmt.Errorf("no command given")
	}

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	switch rest[0] {
	case "discover":
		return a.discover(ctx, stdout)
	case "deploy":
		return a.deploy(ctx, stdout, false)
	case "run":
		return a.deploy(ctx, stdout, true)
	case "inventory":
		if len(rest) != 3 {
			return fmt.Errorf("usage: labprov inventory export|import <file>")
		}
		switch rest[1] {
		case "export":
			return a.exportInventory(ctx, rest[2], stdout)
		case "import":
			return a.importInventory(ctx, rest[2], stdout)
		default:
			return fmt.Errorf("unknown inventory command %q", rest[1])
		}
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}
