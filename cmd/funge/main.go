// funge CLI - runs Befunge-93 programs and hosts the funge tooling
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/funge/server"

	_ "github.com/tliron/commonlog/simple"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

var log = commonlog.GetLogger("funge")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches to a subcommand, or runs a program when the first
// argument is not one.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "random":
			return randomCommand(args[1:], stdout, stderr)
		case "history":
			return historyCommand(args[1:], stdout, stderr)
		case "lsp":
			return lspCommand(args[1:], stderr)
		}
	}
	return runCommand(args, stdin, stdout, stderr)
}

// configureLogging points commonlog at path, or stderr when path is empty.
func configureLogging(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
	} else {
		commonlog.Configure(verbosity, &path)
	}
}

// parseFlags parses args, reporting whether the caller should exit and
// with which code.
func parseFlags(fs *flag.FlagSet, args []string) (exit bool, code int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, exitOK
		}
		return true, exitUsage
	}
	return false, exitOK
}

func lspCommand(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("funge lsp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", 0, "Log verbosity (0 = notices, 1 = info, 2+ = debug)")
	logFile := fs.String("log", "", "Write logs to this file instead of stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: funge lsp [options]\n\n")
		fmt.Fprintf(stderr, "Starts the language server on stdio.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if exit, code := parseFlags(fs, args); exit {
		return code
	}

	configureLogging(*verbosity, *logFile)

	if err := server.NewLSP().Run(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	return exitOK
}
