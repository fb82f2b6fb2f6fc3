package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofrs/flock"

	"github.com/samiralibabic/mcpterm/internal/policy"
	"github.com/samiralibabic/mcpterm/internal/tools"
)

func newService(t *testing.T, maxRead int64) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	pol, err := policy.New([]string{root}, true, nil)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return NewService(pol, root, maxRead, 200*time.Millisecond, t.TempDir()), root
}

func TestWriteThenRead(t *testing.T) {
	s, root := newService(t, 0)
	ctx := context.Background()
	w, err := s.Write(ctx, "notes/hello.txt", []byte("hello\n"), "", true, 0)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !w.Created || w.Path != filepath.Join(root, "notes", "hello.txt") {
		t.Fatalf("unexpected write result: %#v", w)
	}
	if _, err := s.Write(ctx, "notes/hello.txt", []byte("again\n"), "append", false, 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	r, err := s.Read(ctx, "notes/hello.txt", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Content != "hello\nagain\n" || r.Truncated {
		t.Fatalf("unexpected read result: %#v", r)
	}
	if _, err := s.Write(ctx, "notes/hello.txt", []byte("x"), "create", false, 0); err == nil {
		t.Fatal("create mode must fail on an existing file")
	}
	if _, err := s.Write(ctx, "notes/hello.txt", []byte("x"), "", false, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestReadLimits(t *testing.T) {
	s, root := newService(t, 4)
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte("0123456789"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r, err := s.Read(context.Background(), "big.txt", 2, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Content != "2345" || !r.Truncated || r.Size != 10 {
		t.Fatalf("unexpected read result: %#v", r)
	}
	if _, err := s.Write(context.Background(), "big.txt", []byte("too large"), "", false, 0); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestPathsOutsideRootsAreRejected(t *testing.T) {
	s, _ := newService(t, 0)
	if _, err := s.Read(context.Background(), "/etc/hostname", 0, 0); !errors.Is(err, policy.ErrForbiddenPath) {
		t.Fatalf("expected ErrForbiddenPath, got %v", err)
	}
	if _, err := s.List("..", false, 0); !errors.Is(err, policy.ErrForbiddenPath) {
		t.Fatalf("expected ErrForbiddenPath, got %v", err)
	}
}

func TestWriteWaitsForLock(t *testing.T) {
	s, root := newService(t, 0)
	target := filepath.Join(root, "locked.txt")
	held := flock.New(s.lockPath(target))
	if err := held.Lock(); err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	_, err := s.Write(context.Background(), target, []byte("x"), "", false, 0)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	_ = held.Unlock()
	if _, err := s.Write(context.Background(), target, []byte("x"), "", false, 0); err != nil {
		t.Fatalf("write after unlock: %v", err)
	}
}

func TestReadLeavesDirectoryUntouched(t *testing.T) {
	s, root := newService(t, 0)
	dir := filepath.Join(root, "ro")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.txt"), []byte("data"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	r, err := s.Read(context.Background(), filepath.Join(dir, "data.txt"), 0, 0)
	if err != nil {
		t.Fatalf("read in read-only dir: %v", err)
	}
	if r.Content != "data" {
		t.Fatalf("unexpected content %q", r.Content)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("read left files behind: %v", entries)
	}
}

func TestListAndGlob(t *testing.T) {
	s, root := newService(t, 0)
	for _, name := range []string{"a.go", "b.go", "sub/c.go", "readme.md"} {
		if _, err := s.Write(context.Background(), name, []byte("x"), "", true, 0); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	l, err := s.List(root, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	names := []string{}
	for _, e := range l.Entries {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "a.go,b.go,readme.md,sub" {
		t.Fatalf("unexpected entries (lock files must be hidden): %v", names)
	}
	rec, err := s.List(root, true, 0)
	if err != nil {
		t.Fatalf("recursive list: %v", err)
	}
	if len(rec.Entries) != 5 {
		t.Fatalf("expected 5 recursive entries, got %d", len(rec.Entries))
	}
	matches, err := s.Glob("*.go", 0)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("unexpected matches: %v", matches)
	}
	if capped, _ := s.Glob("*.go", 1); len(capped) != 1 {
		t.Fatalf("expected max_matches to cap results, got %v", capped)
	}
}

func TestToolsThroughCoordinator(t *testing.T) {
	s, _ := newService(t, 0)
	c := tools.NewCoordinator(tools.NewRegistry(s.Tools()...))
	if n := c.Registry().Len(); n != 4 {
		t.Fatalf("expected 4 tools, got %d", n)
	}
	ctx := context.Background()
	res := c.Execute(ctx, "write_file", json.RawMessage(`{"path":"out.txt","content":"data"}`))
	if res.Status != tools.StatusSuccess {
		t.Fatalf("write_file: %#v", res)
	}
	res = c.Execute(ctx, "read_file", json.RawMessage(`{"path":"out.txt"}`))
	var r ReadResult
	if err := json.Unmarshal(res.Output, &r); err != nil || r.Content != "data" {
		t.Fatalf("read_file: %#v (%v)", res, err)
	}
	res = c.Execute(ctx, "read_file", json.RawMessage(`{"path":"missing.txt"}`))
	if res.Status != tools.StatusFailure {
		t.Fatalf("expected failure for missing file, got %#v", res)
	}
	res = c.Execute(ctx, "find_files", json.RawMessage(`{"pattern":"*.txt"}`))
	if res.Status != tools.StatusSuccess || !strings.Contains(string(res.Output), "out.txt") {
		t.Fatalf("find_files: %#v", res)
	}
}
