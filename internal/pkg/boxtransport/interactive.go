package boxtransport

import (
	"context"
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// StdoutIsTerminal reports whether the launcher's own stdout is attached
// to a terminal, grounded on vzokay-apptainer's
// internal/pkg/runtime/launcher/oci/process_linux.go getProcessTerminal,
// which makes the same term.IsTerminal check to decide whether the OCI
// process record should request a terminal.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// AllocatePTY opens a new pseudo-terminal pair for an interactive exec
// session (§9 FIXME in original_source/app.cpp: "if need keep interactive
// shell"). The caller wires ptmx to its own stdio and passes tty's path
// to ExecInteractive.
func AllocatePTY() (ptmx, tty *os.File, err error) {
	ptmx, tty, err = pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("allocating pty: %w", err)
	}
	return ptmx, tty, nil
}

// ExecInteractive is ExecCommand's interactive-mode counterpart: it
// allocates a PTY when the launcher's own stdout is a terminal, and
// injects an exec frame whose cwd is unchanged but whose env carries the
// allocated tty path so the helper can attach the child's stdio to it.
func (s *Session) ExecInteractive(ctx context.Context, cmd, envCSV, cwd string) (ptmx *os.File, err error) {
	if !StdoutIsTerminal() {
		return nil, s.ExecCommand(ctx, cmd, envCSV, cwd)
	}

	ptmx, tty, err := AllocatePTY()
	if err != nil {
		return nil, err
	}
	defer tty.Close()

	args, err := TokenizeCommand(cmd)
	if err != nil {
		ptmx.Close()
		return nil, err
	}

	env := append([]string{"APPBOX_TTY=" + tty.Name()}, splitEnvCSV(envCSV)...)

	if err := s.Exec(ctx, args, env, cwd); err != nil {
		ptmx.Close()
		return nil, err
	}
	return ptmx, nil
}
