package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chazu/funge/history"
	"github.com/chazu/funge/manifest"
)

func historyCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("funge history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "History database (default: from funge.toml, else "+manifest.DefaultHistoryPath+")")
	limit := fs.Int("n", 20, "Number of runs to show (0 = all)")
	program := fs.String("program", "", "Only show runs of this program ID")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: funge history [options]\n\n")
		fmt.Fprintf(stderr, "Lists recorded runs, most recent first.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if exit, code := parseFlags(fs, args); exit {
		return code
	}

	path := *dbPath
	if path == "" {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFatal
		}
		if m == nil {
			m = manifest.Default()
		}
		path = m.HistoryPath()
	}

	// Listing must not create an empty database.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "No runs recorded.")
		return exitOK
	}

	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	defer store.Close()

	ctx := context.Background()
	var runs []history.Run
	if *program != "" {
		runs, err = store.ListProgram(ctx, *program, *limit)
	} else {
		runs, err = store.List(ctx, *limit)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return exitOK
	}

	printRuns(stdout, runs)
	return exitOK
}

func printRuns(w io.Writer, runs []history.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPROGRAM\tSOURCE\tSTEPS\tOUTPUT\tTIME\tSTATUS")
	for _, r := range runs {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shorten(r.ID, 8),
			humanize.Time(r.StartedAt),
			shorten(r.ProgramID, 10),
			r.Source,
			humanize.Comma(int64(r.Steps)),
			humanize.Bytes(uint64(r.OutputBytes)),
			r.Duration.Round(time.Microsecond),
			status,
		)
	}
	tw.Flush()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
