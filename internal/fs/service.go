package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofrs/flock"

	"github.com/samiralibabic/mcpterm/internal/policy"
)

var (
	ErrConflict    = errors.New("expected mtime does not match")
	ErrTooLarge    = errors.New("content exceeds the file size limit")
	ErrLockTimeout = errors.New("timeout acquiring file lock")
)

const lockPollInterval = 10 * time.Millisecond

// DefaultLockDir holds the advisory lock files when none is configured.
func DefaultLockDir() string {
	return filepath.Join(os.TempDir(), "mcpterm-locks")
}

// Service performs file operations inside the policy's allowed roots. Reads
// hold a shared advisory lock and writes an exclusive one. Lock files live in
// lockDir, named by a hash of the target path, so directories that are only
// readable can still be read.
type Service struct {
	policy       *policy.Engine
	workDir      string
	maxReadBytes int64
	lockTimeout  time.Duration
	lockDir      string
}

func NewService(pol *policy.Engine, workDir string, maxReadBytes int64, lockTimeout time.Duration, lockDir string) *Service {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	if lockDir == "" {
		lockDir = DefaultLockDir()
	}
	return &Service{policy: pol, workDir: workDir, maxReadBytes: maxReadBytes, lockTimeout: lockTimeout, lockDir: lockDir}
}

type ReadResult struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	MTime     int64  `json:"mtime"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

type WriteResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
	MTime        int64  `json:"mtime"`
	Created      bool   `json:"created"`
}

type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Type  string `json:"type"`
	Size  *int64 `json:"size,omitempty"`
	MTime int64  `json:"mtime"`
}

type ListResult struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

func (s *Service) resolve(p string) (string, error) {
	return s.policy.ResolvePath(s.workDir, p)
}

func (s *Service) lockPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return filepath.Join(s.lockDir, hex.EncodeToString(sum[:16])+".lock")
}

func (s *Service) lock(ctx context.Context, path string, shared bool) (*flock.Flock, error) {
	if err := os.MkdirAll(s.lockDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create lock dir")
	}
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	fl := flock.New(s.lockPath(path))
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockPollInterval)
	} else {
		ok, err = fl.TryLockContext(ctx, lockPollInterval)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(ErrLockTimeout, path)
		}
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	if !ok {
		return nil, errors.Wrap(ErrLockTimeout, path)
	}
	return fl, nil
}

func (s *Service) Read(ctx context.Context, path string, offset, length int64) (ReadResult, error) {
	path, err := s.resolve(path)
	if err != nil {
		return ReadResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return ReadResult{}, err
	}
	defer f.Close()
	fl, err := s.lock(ctx, path, true)
	if err != nil {
		return ReadResult{}, err
	}
	defer func() { _ = fl.Unlock() }()

	st, err := f.Stat()
	if err != nil {
		return ReadResult{}, err
	}
	if st.IsDir() {
		return ReadResult{}, errors.Errorf("%s is a directory", path)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return ReadResult{}, err
		}
	}
	limit := st.Size() - offset
	if limit < 0 {
		limit = 0
	}
	if length > 0 && length < limit {
		limit = length
	}
	if s.maxReadBytes > 0 && limit > s.maxReadBytes {
		limit = s.maxReadBytes
	}
	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ReadResult{}, err
	}
	return ReadResult{
		Path:      path,
		Size:      st.Size(),
		MTime:     st.ModTime().UnixMilli(),
		Content:   string(buf[:n]),
		Truncated: int64(n) < st.Size()-offset,
	}, nil
}

// Write stores data at path. mode is "replace" (default), "append" or
// "create"; create fails when the file exists. A non-zero expectedMTime must
// match the current modification time.
func (s *Service) Write(ctx context.Context, path string, data []byte, mode string, mkdirParents bool, expectedMTime int64) (WriteResult, error) {
	path, err := s.resolve(path)
	if err != nil {
		return WriteResult{}, err
	}
	if s.maxReadBytes > 0 && int64(len(data)) > s.maxReadBytes {
		return WriteResult{}, ErrTooLarge
	}
	if mkdirParents {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return WriteResult{}, err
		}
	}
	fl, err := s.lock(ctx, path, false)
	if err != nil {
		return WriteResult{}, err
	}
	defer func() { _ = fl.Unlock() }()

	existed := false
	if st, err := os.Stat(path); err == nil {
		existed = true
		if expectedMTime > 0 && st.ModTime().UnixMilli() != expectedMTime {
			return WriteResult{}, ErrConflict
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case "append":
		flags |= os.O_APPEND
	case "create":
		flags |= os.O_EXCL
	case "", "replace":
		flags |= os.O_TRUNC
	default:
		return WriteResult{}, errors.Errorf("unknown write mode %q", mode)
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return WriteResult{}, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return WriteResult{}, err
	}
	if err := f.Close(); err != nil {
		return WriteResult{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{
		Path:         path,
		BytesWritten: len(data),
		MTime:        st.ModTime().UnixMilli(),
		Created:      !existed,
	}, nil
}

func (s *Service) List(path string, recursive bool, maxEntries int) (ListResult, error) {
	path, err := s.resolve(path)
	if err != nil {
		return ListResult{}, err
	}
	entries := []Entry{}
	add := func(fullPath string, d fs.DirEntry) {
		e := Entry{Name: d.Name(), Path: fullPath, Type: entryType(d.Type(), d.IsDir())}
		if info, err := d.Info(); err == nil {
			e.MTime = info.ModTime().UnixMilli()
			if !d.IsDir() {
				size := info.Size()
				e.Size = &size
			}
		}
		entries = append(entries, e)
	}
	full := func() bool { return maxEntries > 0 && len(entries) >= maxEntries }

	if recursive {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == path {
				return nil
			}
			add(p, d)
			if full() {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			return ListResult{}, err
		}
	} else {
		ds, err := os.ReadDir(path)
		if err != nil {
			return ListResult{}, err
		}
		for _, d := range ds {
			add(filepath.Join(path, d.Name()), d)
			if full() {
				break
			}
		}
	}
	return ListResult{Path: path, Entries: entries}, nil
}

// Glob matches pattern relative to the work directory and drops matches
// outside the allowed roots.
func (s *Service) Glob(pattern string, maxMatches int) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(s.workDir, pattern)
	}
	if _, err := s.resolve(filepath.Dir(pattern)); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if s.policy.IsAllowed(m) {
			out = append(out, m)
		}
		if maxMatches > 0 && len(out) >= maxMatches {
			break
		}
	}
	return out, nil
}

func entryType(mode fs.FileMode, dir bool) string {
	switch {
	case mode&os.ModeSymlink != 0:
		return "symlink"
	case dir:
		return "dir"
	case mode.IsRegular():
		return "file"
	default:
		return "other"
	}
}
