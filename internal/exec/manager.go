package exec

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/go-faster/errors"
)

// OutputFunc observes output as it is produced. stream is "stdout" or
// "stderr".
type OutputFunc func(processID, stream string, data []byte)

type RunningProcess struct {
	ID          string
	Cmd         *exec.Cmd
	StartedAt   time.Time
	MaxOutput   int64
	BytesStdout int64
	BytesStderr int64
	TimedOut    bool
	Truncated   bool

	stdout bytes.Buffer
	stderr bytes.Buffer
	notify OutputFunc
	mu     sync.Mutex
}

func (p *RunningProcess) MarkTimedOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TimedOut = true
}

// Kill signals the whole process group so children of the shell die too.
func (p *RunningProcess) Kill() {
	if p.Cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-p.Cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = p.Cmd.Process.Kill()
	}
}

func (p *RunningProcess) Stream(name string) *Stream {
	return &Stream{p: p, name: name}
}

// Stream is an io.Writer that captures one output stream of a process up to
// the process-wide output limit. Exceeding the limit kills the process.
type Stream struct {
	p    *RunningProcess
	name string
}

func (s *Stream) Write(b []byte) (int, error) {
	p := s.p
	p.mu.Lock()
	total := p.BytesStdout + p.BytesStderr
	keep := int64(len(b))
	over := false
	if p.MaxOutput > 0 && total+keep > p.MaxOutput {
		keep = p.MaxOutput - total
		if keep < 0 {
			keep = 0
		}
		over = true
		p.Truncated = true
	}
	chunk := b[:keep]
	if s.name == "stderr" {
		p.stderr.Write(chunk)
		p.BytesStderr += keep
	} else {
		p.stdout.Write(chunk)
		p.BytesStdout += keep
	}
	notify := p.notify
	p.mu.Unlock()

	if notify != nil && len(chunk) > 0 {
		notify(p.ID, s.name, append([]byte(nil), chunk...))
	}
	if over {
		p.Kill()
	}
	return len(b), nil
}

// ProcessState is the final state of a finished process.
type ProcessState struct {
	Status      string  `json:"status"`
	ExitCode    *int    `json:"exit_code"`
	Signal      *string `json:"signal"`
	Stdout      string  `json:"stdout"`
	Stderr      string  `json:"stderr"`
	BytesStdout int64   `json:"bytes_stdout"`
	BytesStderr int64   `json:"bytes_stderr"`
	TimedOut    bool    `json:"timed_out"`
	Truncated   bool    `json:"truncated"`
	DurationMs  int64   `json:"duration_ms"`
}

// Manager tracks the processes started by tools so they can be killed on
// shutdown.
type Manager struct {
	mu        sync.RWMutex
	seq       int64
	processes map[string]*RunningProcess
}

func NewManager() *Manager {
	return &Manager{processes: map[string]*RunningProcess{}}
}

func (m *Manager) Track(cmd *exec.Cmd, maxOutput int64, notify OutputFunc) *RunningProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p := &RunningProcess{
		ID:        fmt.Sprintf("p_%d", m.seq),
		Cmd:       cmd,
		StartedAt: time.Now().UTC(),
		MaxOutput: maxOutput,
		notify:    notify,
	}
	m.processes[p.ID] = p
	return p
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processes, id)
}

func (m *Manager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processes)
}

func (m *Manager) KillAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.processes {
		p.Kill()
	}
}

// State collects the final state of p from the error returned by Wait.
func (m *Manager) State(p *RunningProcess, waitErr error) ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := ProcessState{
		Status:      "exited",
		Stdout:      p.stdout.String(),
		Stderr:      p.stderr.String(),
		BytesStdout: p.BytesStdout,
		BytesStderr: p.BytesStderr,
		TimedOut:    p.TimedOut,
		Truncated:   p.Truncated,
		DurationMs:  time.Since(p.StartedAt).Milliseconds(),
	}
	if waitErr == nil {
		code := 0
		state.ExitCode = &code
		return state
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		state.ExitCode = &code
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			s := ws.Signal().String()
			state.Signal = &s
			state.Status = "killed"
		}
	}
	return state
}
