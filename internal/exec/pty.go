package exec

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/go-faster/errors"
)

const (
	ptyCols = 120
	ptyRows = 32
)

// runPTY runs cmd attached to a pseudo-terminal. Output is merged into
// stdout because a terminal has a single output stream.
func (t *ShellTool) runPTY(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (ProcessState, error) {
	p := t.procs.Track(cmd, t.opts.MaxOutputBytes, t.opts.OnOutput)
	defer t.procs.Remove(p.ID)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: ptyCols, Rows: ptyRows})
	if err != nil {
		return ProcessState{}, errors.Wrap(err, "start pty")
	}
	defer ptmx.Close()

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = io.Copy(p.Stream("stdout"), ptmx)
	}()

	stop := t.watch(ctx, p, timeout)
	waitErr := cmd.Wait()
	stop()

	select {
	case <-copied:
	case <-time.After(time.Second):
		_ = ptmx.Close()
		<-copied
	}
	return t.procs.State(p, waitErr), nil
}
