package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/policy"
	"github.com/samiralibabic/mcpterm/internal/tools"
)

const ShellToolID = "shell"

type ShellParams struct {
	Command   string `json:"command"`
	TimeoutMs int    `json:"timeout,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	TTY       bool   `json:"tty,omitempty"`
}

type ShellOptions struct {
	WorkDir        string
	DefaultTimeout time.Duration
	HardTimeout    time.Duration
	MaxOutputBytes int64
	OnOutput       OutputFunc
}

// ShellTool runs commands through sh -c, subject to the policy engine.
type ShellTool struct {
	policy *policy.Engine
	procs  *Manager
	opts   ShellOptions
	log    *zap.Logger
}

func NewShellTool(pol *policy.Engine, procs *Manager, opts ShellOptions, log *zap.Logger) *ShellTool {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.HardTimeout <= 0 {
		opts.HardTimeout = 5 * time.Minute
	}
	return &ShellTool{policy: pol, procs: procs, opts: opts, log: log}
}

func (t *ShellTool) Metadata() tools.Metadata {
	return tools.Metadata{
		ID:          ShellToolID,
		Name:        "Shell",
		Description: "Run a shell command and return its output. Set tty to run it under a pseudo-terminal.",
		Category:    tools.CategoryShell,
		InputSchema: json.RawMessage(`{"type":"object","required":["command"],"properties":{` +
			`"command":{"type":"string","description":"Command line passed to sh -c"},` +
			`"timeout":{"type":"integer","description":"Timeout in milliseconds"},` +
			`"cwd":{"type":"string","description":"Working directory inside an allowed root"},` +
			`"tty":{"type":"boolean","description":"Run under a pseudo-terminal"}}}`),
		OutputSchema: json.RawMessage(`{"type":"object","properties":{` +
			`"stdout":{"type":"string"},"stderr":{"type":"string"},"exit_code":{"type":"integer"},` +
			`"timed_out":{"type":"boolean"},"truncated":{"type":"boolean"}}}`),
	}
}

func (t *ShellTool) Execute(ctx context.Context, raw json.RawMessage) (tools.Result, error) {
	var p ShellParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return tools.Result{}, errors.Wrap(err, "decode shell params")
	}
	if p.Command == "" {
		return tools.Result{}, errors.New("command is required")
	}
	if err := t.policy.CheckCommand(p.Command); err != nil {
		return tools.Result{}, err
	}
	cwd := t.opts.WorkDir
	if p.Cwd != "" {
		resolved, err := t.policy.ResolvePath(t.opts.WorkDir, p.Cwd)
		if err != nil {
			return tools.Result{}, err
		}
		cwd = resolved
	}
	timeout := t.opts.DefaultTimeout
	if p.TimeoutMs > 0 {
		timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}
	if timeout > t.opts.HardTimeout {
		timeout = t.opts.HardTimeout
	}

	cmd := exec.Command("sh", "-c", p.Command)
	cmd.Dir = cwd
	var (
		state ProcessState
		err   error
	)
	if p.TTY {
		state, err = t.runPTY(ctx, cmd, timeout)
	} else {
		state, err = t.runPiped(ctx, cmd, timeout)
	}
	if err != nil {
		return tools.Result{}, err
	}
	t.log.Debug("shell command finished",
		zap.String("command", p.Command),
		zap.Intp("exit_code", state.ExitCode),
		zap.Bool("timed_out", state.TimedOut),
		zap.Int64("duration_ms", state.DurationMs),
	)

	res, err := tools.Success(ShellToolID, state)
	if err != nil {
		return tools.Result{}, err
	}
	switch {
	case state.TimedOut:
		res.Status = tools.StatusTimeout
		res.Error = fmt.Sprintf("command timed out after %s", timeout)
	case state.ExitCode == nil || *state.ExitCode != 0:
		res.Status = tools.StatusFailure
		res.Error = failureMessage(state)
	}
	return res, nil
}

func (t *ShellTool) runPiped(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (ProcessState, error) {
	p := t.procs.Track(cmd, t.opts.MaxOutputBytes, t.opts.OnOutput)
	defer t.procs.Remove(p.ID)
	cmd.Stdout = p.Stream("stdout")
	cmd.Stderr = p.Stream("stderr")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		return ProcessState{}, errors.Wrap(err, "start command")
	}
	stop := t.watch(ctx, p, timeout)
	waitErr := cmd.Wait()
	stop()
	return t.procs.State(p, waitErr), nil
}

// watch kills p when timeout elapses or ctx is done, whichever is first.
func (t *ShellTool) watch(ctx context.Context, p *RunningProcess, timeout time.Duration) func() {
	expire := func() {
		p.MarkTimedOut()
		p.Kill()
	}
	timer := time.AfterFunc(timeout, expire)
	stopCtx := context.AfterFunc(ctx, expire)
	return func() {
		timer.Stop()
		stopCtx()
	}
}

func failureMessage(state ProcessState) string {
	switch {
	case state.Truncated:
		return "command output exceeded the output limit"
	case state.Signal != nil:
		return fmt.Sprintf("command killed by %s", *state.Signal)
	case state.ExitCode != nil:
		if state.Stderr != "" {
			return fmt.Sprintf("command exited with code %d: %s", *state.ExitCode, lastLine(state.Stderr))
		}
		return fmt.Sprintf("command exited with code %d", *state.ExitCode)
	default:
		return "command failed"
	}
}

func lastLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}
