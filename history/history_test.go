package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Record / Get
// ---------------------------------------------------------------------------

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := NewRun("prog1", "hello.bf")
	r.Finish(42, 13, nil)
	if err := s.Record(ctx, r); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ProgramID != "prog1" || got.Source != "hello.bf" {
		t.Errorf("got %+v", got)
	}
	if got.Steps != 42 || got.OutputBytes != 13 {
		t.Errorf("steps/output = %d/%d, want 42/13", got.Steps, got.OutputBytes)
	}
	if got.Status != StatusHalted || got.Error != "" {
		t.Errorf("status = %q error = %q", got.Status, got.Error)
	}
	if !got.StartedAt.Equal(r.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, r.StartedAt)
	}
	if got.Duration != r.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, r.Duration)
	}
}

func TestRecordFailedRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := NewRun("prog2", "bad.bf")
	r.Finish(3, 0, errors.New("bad input"))
	if err := s.Record(ctx, r); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "bad input" {
		t.Errorf("status = %q error = %q", got.Status, got.Error)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestRecordRejectsEmptyID(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(context.Background(), Run{}); err == nil {
		t.Error("expected error for run without id")
	}
}

func TestNewRunUniqueIDs(t *testing.T) {
	a, b := NewRun("p", "s"), NewRun("p", "s")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q", a.ID, b.ID)
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, prog := range []string{"a", "b", "c"} {
		r := NewRun(prog, prog+".bf")
		r.StartedAt = base.Add(time.Duration(i) * time.Minute)
		r.Status = StatusHalted
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	want := []string{"c", "b", "a"}
	for i, r := range runs {
		if r.ProgramID != want[i] {
			t.Errorf("runs[%d] = %q, want %q", i, r.ProgramID, want[i])
		}
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 || limited[0].ProgramID != "c" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestListProgram(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, prog := range []string{"x", "y", "x"} {
		r := NewRun(prog, "")
		r.Finish(1, 0, nil)
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := s.ListProgram(ctx, "x", 0)
	if err != nil {
		t.Fatalf("ListProgram: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len = %d, want 2", len(runs))
	}
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t)
	runs, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("len = %d, want 0", len(runs))
	}
}

// ---------------------------------------------------------------------------
// Persistence across reopen
// ---------------------------------------------------------------------------

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r := NewRun("p", "p.bf")
	r.Finish(7, 2, nil)
	if err := s.Record(ctx, r); err != nil {
		t.Fatalf("Record: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Steps != 7 {
		t.Errorf("Steps = %d, want 7", got.Steps)
	}
}
