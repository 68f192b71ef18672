package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/chazu/funge/history"
	"github.com/chazu/funge/manifest"
	"github.com/chazu/funge/vm"
	"github.com/chazu/funge/vm/image"
)

// runOptions is the merged manifest and command line configuration of a run.
type runOptions struct {
	program   string
	startX    int
	startY    int
	direction vm.Direction
	debug     bool
	seed      uint64
	imageOut  string
	historyDB string // empty disables recording
	verbosity int
	logFile   string
}

// runFlags holds the raw command line values of a run.
type runFlags struct {
	debug     bool
	x, y      int
	dir       string
	seed      uint64
	saveImage string
	history   string
	verbosity int
	logFile   string

	set map[string]bool // flags given explicitly
}

func runCommand(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("funge", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f runFlags
	fs.BoolVar(&f.debug, "debug", false, "Print a snapshot before every step and wait for a line on stdin")
	fs.IntVar(&f.x, "x", 0, "Start column")
	fs.IntVar(&f.y, "y", 0, "Start row")
	fs.StringVar(&f.dir, "dir", "", "Start direction: right, down, left, up (or > v < ^)")
	fs.Uint64Var(&f.seed, "seed", 0, "Seed for '?' (0 = nondeterministic)")
	fs.StringVar(&f.saveImage, "save-image", "", "Write the final grid as an image to this path")
	fs.StringVar(&f.history, "history", "", "Record the run in this history database")
	fs.IntVar(&f.verbosity, "v", 0, "Log verbosity (0 = notices, 1 = info, 2+ = debug)")
	fs.StringVar(&f.logFile, "log", "", "Write logs to this file instead of stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: funge [options] <program | image%s>\n", image.Extension)
		fmt.Fprintf(stderr, "       funge random [-size WxH] [-seed N] [-o image]\n")
		fmt.Fprintf(stderr, "       funge history [-db path] [-n N] [-program id]\n")
		fmt.Fprintf(stderr, "       funge lsp\n\n")
		fmt.Fprintf(stderr, "Runs a Befunge-93 program. With no program, the entry of the nearest\n")
		fmt.Fprintf(stderr, "funge.toml is run.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  funge hello.bf                      # Run a program\n")
		fmt.Fprintf(stderr, "  funge -debug fact.bf                # Step through a program\n")
		fmt.Fprintf(stderr, "  funge -save-image out.fimg quine.bf # Keep the grid after self-modification\n")
		fmt.Fprintf(stderr, "  funge out.fimg                      # Run a saved image\n")
	}
	if exit, code := parseFlags(fs, args); exit {
		return code
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return exitUsage
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	program := fs.Arg(0)
	searchDir := "."
	if program != "" {
		searchDir = filepath.Dir(program)
	}
	m, err := manifest.FindAndLoad(searchDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if m == nil {
		m = manifest.Default()
	}

	opts, err := resolveOptions(m, program, &f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if opts.program == "" {
		fs.Usage()
		return exitUsage
	}

	configureLogging(opts.verbosity, opts.logFile)

	if err := execute(context.Background(), opts, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	return exitOK
}

// resolveOptions merges the manifest with the command line. Explicit
// flags win; a program argument replaces the manifest entry.
func resolveOptions(m *manifest.Manifest, program string, f *runFlags) (*runOptions, error) {
	opts := &runOptions{
		program:   m.EntryPath(),
		startX:    m.Run.StartX,
		startY:    m.Run.StartY,
		debug:     m.Run.Debug,
		seed:      m.Run.Seed,
		imageOut:  m.ImageOutputPath(),
		verbosity: m.Log.Verbosity,
		logFile:   m.Log.File,
	}
	if m.History.Enabled {
		opts.historyDB = m.HistoryPath()
	}

	dir, err := m.StartDirection()
	if err != nil {
		return nil, err
	}
	opts.direction = dir

	if program != "" {
		opts.program = program
	}
	if f.set["x"] {
		opts.startX = f.x
	}
	if f.set["y"] {
		opts.startY = f.y
	}
	if f.set["dir"] {
		if opts.direction, err = vm.ParseDirection(f.dir); err != nil {
			return nil, fmt.Errorf("-dir: %w", err)
		}
	}
	if f.set["debug"] {
		opts.debug = f.debug
	}
	if f.set["seed"] {
		opts.seed = f.seed
	}
	if f.set["save-image"] {
		opts.imageOut = f.saveImage
	}
	if f.set["history"] {
		opts.historyDB = f.history
	}
	if f.set["v"] {
		opts.verbosity = f.verbosity
	}
	if f.set["log"] {
		opts.logFile = f.logFile
	}
	return opts, nil
}

// execute loads and runs one program, then saves its image and history
// record as configured. The returned error is the run's fatal error, if
// any.
func execute(ctx context.Context, opts *runOptions, stdin io.Reader, stdout io.Writer) error {
	grid, err := loadProgram(opts.program)
	if err != nil {
		return err
	}
	programID := image.ID(grid)
	log.Infof("running %s (%s, %dx%d)", opts.program, programID, grid.Width(), grid.Height())

	if opts.debug {
		if f, ok := stdin.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
			log.Warning("debug gate reads from non-terminal stdin: every step consumes one input line")
		}
	}

	out := &countingWriter{w: stdout}
	interp := vm.NewInterpreter(grid, opts.startX, opts.startY, opts.direction, stdin, out, opts.debug,
		vm.WithDirectionSource(vm.NewRandomDirections(opts.seed)))

	rec := history.NewRun(programID, opts.program)
	runErr := interp.Run()
	rec.Finish(interp.Steps(), out.n, runErr)

	x, y := interp.Position()
	log.Infof("halted at (%d, %d) after %d steps", x, y, interp.Steps())

	if opts.imageOut != "" {
		if err := saveImage(grid, opts.imageOut); err != nil {
			if runErr == nil {
				return err
			}
			log.Errorf("%v", err)
		} else {
			log.Infof("saved image %s (%s)", opts.imageOut, image.ID(grid))
		}
	}

	if opts.historyDB != "" {
		if err := recordRun(ctx, opts.historyDB, rec); err != nil {
			log.Warningf("history: %v", err)
		}
	}

	return runErr
}

// loadProgram reads a program file, accepting either source text or an
// image.
func loadProgram(path string) (*vm.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read program: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(image.MagicSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot read program: %w", err)
	}

	if image.IsImage(head) {
		grid, err := image.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return grid, nil
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("cannot read program: %w", err)
	}
	grid, err := vm.FromSource(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return grid, nil
}

func saveImage(grid *vm.Grid, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("saving image: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	if err := image.Encode(f, grid); err != nil {
		f.Close()
		return fmt.Errorf("saving image: %w", err)
	}
	return f.Close()
}

func recordRun(ctx context.Context, dbPath string, rec history.Run) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, rec)
}

// countingWriter tracks how many bytes a program wrote.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
