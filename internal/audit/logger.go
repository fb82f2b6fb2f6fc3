package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const lockTimeout = 2 * time.Second

// Entry records one tool execution.
type Entry struct {
	Timestamp   string          `json:"timestamp"`
	SessionID   string          `json:"session_id,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	ToolID      string          `json:"tool_id"`
	Fingerprint string          `json:"fingerprint"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// Logger appends entries to a JSONL file. Appends are serialised within the
// process by mu and across processes by an advisory lock next to the file.
type Logger struct {
	enabled bool
	path    string
	lock    *flock.Flock
	log     *zap.Logger
	mu      sync.Mutex
}

func New(enabled bool, path string, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Logger{enabled: enabled && path != "", path: path, log: log}
	if l.enabled {
		l.lock = flock.New(path + ".lock")
	}
	return l
}

func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

func (l *Logger) Write(entry Entry) {
	if !l.Enabled() {
		return
	}
	entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	if len(entry.Params) > 0 && !json.Valid(entry.Params) {
		entry.Params = nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		l.log.Warn("encode audit entry", zap.Error(err))
		return
	}
	if err := l.append(append(raw, '\n')); err != nil {
		l.log.Warn("write audit entry", zap.String("path", l.path), zap.Error(err))
	}
}

func (l *Logger) append(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := l.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return errors.Wrap(err, "lock audit file")
	}
	if !locked {
		return errors.New("audit file lock not acquired")
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open audit file")
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}

type scopeKey struct{}

type scope struct {
	sessionID string
	requestID string
}

// WithScope tags ctx so entries written for work under it carry the ids.
func WithScope(ctx context.Context, sessionID, requestID string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{sessionID: sessionID, requestID: requestID})
}

func ScopeFrom(ctx context.Context) (sessionID, requestID string) {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s.sessionID, s.requestID
}
