package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chazu/funge/manifest"
	"github.com/chazu/funge/vm"
	"github.com/chazu/funge/vm/image"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const helloWorld = ">              v\nv  ,,,,,\"Hello\"<\n>48*,          v\nv,,,,,,\"World!\"<\n>25*,@"

// writeProgram writes a program file into dir and returns its path.
func writeProgram(t *testing.T, dir, name, source string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(source), 0644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

// runCLI invokes the CLI with the given stdin and returns the exit code and
// both output streams.
func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// ---------------------------------------------------------------------------
// Running programs
// ---------------------------------------------------------------------------

func TestRun_HelloWorld(t *testing.T) {
	prog := writeProgram(t, t.TempDir(), "hello.bf", helloWorld)
	code, out, errOut := runCLI(t, "", prog)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "Hello World!\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_ReadsStdin(t *testing.T) {
	prog := writeProgram(t, t.TempDir(), "add.bf", "&&+.@")
	code, out, _ := runCLI(t, "3\n4\n", prog)
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if out != "7 " {
		t.Errorf("output = %q, want %q", out, "7 ")
	}
}

func TestRun_FatalErrorExitsOne(t *testing.T) {
	prog := writeProgram(t, t.TempDir(), "bad.bf", "&.@")
	code, _, errOut := runCLI(t, "twelve\n", prog)
	if code != exitFatal {
		t.Errorf("exit = %d, want %d", code, exitFatal)
	}
	if !strings.HasPrefix(errOut, "Error: ") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_MissingFile(t *testing.T) {
	code, _, errOut := runCLI(t, "", filepath.Join(t.TempDir(), "nope.bf"))
	if code != exitFatal {
		t.Errorf("exit = %d, want %d", code, exitFatal)
	}
	if !strings.Contains(errOut, "cannot read program") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_StartFlags(t *testing.T) {
	// Starting on the 3 heading left prints it and then reaches '@'.
	prog := writeProgram(t, t.TempDir(), "start.bf", "@.3 ")
	code, out, errOut := runCLI(t, "", "-x", "2", "-dir", "<", prog)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "3 " {
		t.Errorf("output = %q, want %q", out, "3 ")
	}
}

func TestRun_UsageErrors(t *testing.T) {
	dir := t.TempDir()
	prog := writeProgram(t, dir, "p.bf", "@")

	tests := []struct {
		name string
		args []string
	}{
		{"two programs", []string{prog, prog}},
		{"unknown flag", []string{"-frobnicate", prog}},
		{"bad direction", []string{"-dir", "diagonal", prog}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, "", tt.args...); code != exitUsage {
				t.Errorf("exit = %d, want %d", code, exitUsage)
			}
		})
	}
}

func TestRun_NoProgramNoManifest(t *testing.T) {
	t.Chdir(t.TempDir())
	if code, _, _ := runCLI(t, ""); code != exitUsage {
		t.Errorf("exit = %d, want %d", code, exitUsage)
	}
}

func TestRun_ManifestEntry(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "prog.bf", "@.9")
	writeProgram(t, dir, "funge.toml", `
[project]
name = "wrapping"
entry = "prog.bf"

[run]
start-x = 2
direction = "left"
`)
	t.Chdir(dir)

	code, out, errOut := runCLI(t, "")
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "9 " {
		t.Errorf("output = %q, want %q", out, "9 ")
	}
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

func TestRun_SaveImageKeepsModifiedGrid(t *testing.T) {
	dir := t.TempDir()
	prog := writeProgram(t, dir, "self.bf", "77*1 0p@")
	img := filepath.Join(dir, "out", "self"+image.Extension)

	code, _, errOut := runCLI(t, "", "-save-image", img, prog)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}

	data, err := os.ReadFile(img)
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	grid, err := image.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := string(grid.Row(0)); got != "71*1 0p@" {
		t.Errorf("saved row = %q, want %q", got, "71*1 0p@")
	}

	// The image itself is a runnable program.
	if code, _, errOut := runCLI(t, "", img); code != exitOK {
		t.Errorf("running image: exit = %d, stderr = %q", code, errOut)
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()

	hello, err := vm.FromSource(helloWorld)
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}
	data, err := image.Marshal(hello)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	img := filepath.Join(dir, "hello"+image.Extension)
	if err := os.WriteFile(img, data, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		wantID string
	}{
		{"image", img, image.ID(hello)},
		{"source", writeProgram(t, dir, "hello.bf", helloWorld), image.ID(hello)},
		{"source shorter than magic", writeProgram(t, dir, "halt.bf", "@"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := loadProgram(tt.path)
			if err != nil {
				t.Fatalf("loadProgram: %v", err)
			}
			if tt.wantID != "" && image.ID(grid) != tt.wantID {
				t.Errorf("ID = %s, want %s", image.ID(grid), tt.wantID)
			}
		})
	}

	// Magic bytes followed by garbage are reported as a bad image.
	bad := filepath.Join(dir, "bad"+image.Extension)
	if err := os.WriteFile(bad, append(data[:4:4], "garbage"...), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadProgram(bad); err == nil || !strings.Contains(err.Error(), bad) {
		t.Errorf("loadProgram(bad) error = %v, want one naming %s", err, bad)
	}
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistory_RecordAndList(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	good := writeProgram(t, dir, "good.bf", "12+.@")
	bad := writeProgram(t, dir, "bad.bf", "&@")

	if code, _, _ := runCLI(t, "", "-history", db, good); code != exitOK {
		t.Fatalf("good run exit = %d", code)
	}
	if code, _, _ := runCLI(t, "", "-history", db, bad); code != exitFatal {
		t.Fatalf("bad run exit = %d", code)
	}

	code, out, errOut := runCLI(t, "", "history", "-db", db)
	if code != exitOK {
		t.Fatalf("history exit = %d, stderr = %q", code, errOut)
	}
	for _, want := range []string{"RUN", "good.bf", "bad.bf", "halted", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}

	g, err := vm.FromSource("12+.@")
	if err != nil {
		t.Fatal(err)
	}
	code, out, _ = runCLI(t, "", "history", "-db", db, "-program", image.ID(g))
	if code != exitOK {
		t.Fatalf("history -program exit = %d", code)
	}
	if !strings.Contains(out, "good.bf") || strings.Contains(out, "bad.bf") {
		t.Errorf("filtered history:\n%s", out)
	}
}

func TestHistory_NoDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")
	code, out, _ := runCLI(t, "", "history", "-db", db)
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	if strings.TrimSpace(out) != "No runs recorded." {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Error("listing created the database")
	}
}

// ---------------------------------------------------------------------------
// Random grids
// ---------------------------------------------------------------------------

func TestRandom_Deterministic(t *testing.T) {
	code, first, _ := runCLI(t, "", "random", "-size", "5x3", "-seed", "7")
	if code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	_, second, _ := runCLI(t, "", "random", "-size", "5x3", "-seed", "7")
	if first != second {
		t.Error("same seed produced different grids")
	}

	lines := strings.Split(strings.TrimSuffix(first, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	for i, line := range lines {
		if n := utf8.RuneCountInString(line); n != 5 {
			t.Errorf("line %d has %d cells, want 5", i, n)
		}
	}
}

func TestRandom_SavesImage(t *testing.T) {
	img := filepath.Join(t.TempDir(), "r.fimg")
	if code, _, _ := runCLI(t, "", "random", "-size", "4x4", "-seed", "1", "-o", img); code != exitOK {
		t.Fatalf("exit = %d", code)
	}
	data, err := os.ReadFile(img)
	if err != nil {
		t.Fatal(err)
	}
	grid, err := image.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if grid.Width() != 4 || grid.Height() != 4 {
		t.Errorf("size = %dx%d, want 4x4", grid.Width(), grid.Height())
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"16x8", 16, 8, false},
		{"1x1", 1, 1, false},
		{"0x5", 0, 0, true},
		{"5x-1", 0, 0, true},
		{"5", 0, 0, true},
		{"5x", 0, 0, true},
		{"4x4x4", 0, 0, true},
		{"wide", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseSize(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}
}

// ---------------------------------------------------------------------------
// Option merging
// ---------------------------------------------------------------------------

func TestResolveOptions(t *testing.T) {
	m := manifest.Default()
	m.Dir = "/proj"
	m.Project.Entry = "main.bf"
	m.Run.StartX = 4
	m.Run.Seed = 9
	m.History.Enabled = true
	m.Image.Output = "out.fimg"

	t.Run("manifest only", func(t *testing.T) {
		opts, err := resolveOptions(m, "", &runFlags{set: map[string]bool{}})
		if err != nil {
			t.Fatal(err)
		}
		if opts.program != filepath.Join("/proj", "main.bf") {
			t.Errorf("program = %q", opts.program)
		}
		if opts.startX != 4 || opts.seed != 9 || opts.direction != vm.Right {
			t.Errorf("opts = %+v", opts)
		}
		if opts.historyDB != filepath.Join("/proj", manifest.DefaultHistoryPath) {
			t.Errorf("historyDB = %q", opts.historyDB)
		}
		if opts.imageOut != filepath.Join("/proj", "out.fimg") {
			t.Errorf("imageOut = %q", opts.imageOut)
		}
	})

	t.Run("flags override", func(t *testing.T) {
		f := &runFlags{
			x: 1, dir: "up", seed: 3, saveImage: "", history: "h.db",
			set: map[string]bool{"x": true, "dir": true, "seed": true, "save-image": true, "history": true},
		}
		opts, err := resolveOptions(m, "other.bf", f)
		if err != nil {
			t.Fatal(err)
		}
		if opts.program != "other.bf" {
			t.Errorf("program = %q", opts.program)
		}
		if opts.startX != 1 || opts.seed != 3 || opts.direction != vm.Up {
			t.Errorf("opts = %+v", opts)
		}
		if opts.imageOut != "" {
			t.Errorf("explicit empty -save-image should disable output, got %q", opts.imageOut)
		}
		if opts.historyDB != "h.db" {
			t.Errorf("historyDB = %q", opts.historyDB)
		}
	})

	t.Run("unset flags keep manifest", func(t *testing.T) {
		f := &runFlags{x: 99, set: map[string]bool{}}
		opts, err := resolveOptions(m, "", f)
		if err != nil {
			t.Fatal(err)
		}
		if opts.startX != 4 {
			t.Errorf("startX = %d, want manifest value 4", opts.startX)
		}
	})
}
