// Package boxtransport is C8/C9: the socketpair/fork/exec that hands the
// composed Runtime spec to the ll-box-equivalent helper process, and the
// retained-socket channel used for follow-up exec frames.
//
// There is no direct Go precedent for this in the retrieved pack — no
// _examples/*.go file calls unix.Socketpair or sets Pdeathsig. It is
// grounded instead directly on original_source/app.cpp's App::start()/
// App::exec(), translated idiom-for-idiom into the teacher's style of
// wrapping golang.org/x/sys/unix for low-level OS interaction.
package boxtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"

	"github.com/appbox/launcher/internal/pkg/launcherrors"
	"github.com/appbox/launcher/internal/pkg/sylog"
)

// DefaultHelperPath is the well-known location of the sandbox helper
// binary, matching original_source/app.cpp's hard-coded "/usr/bin/ll-box".
const DefaultHelperPath = "/usr/bin/ll-box"

// Session owns the parent-side half of the socketpair and the helper's
// pid once Start has forked it. All writes to the retained socket go
// through mu, enforcing the single-writer invariant (§5).
type Session struct {
	helperPath string

	mu       sync.Mutex
	sockFile *os.File
	pid      int
	closed   bool
}

// New returns a Session that will exec helperPath (DefaultHelperPath if
// empty) once Start is called.
func New(helperPath string) *Session {
	if helperPath == "" {
		helperPath = DefaultHelperPath
	}
	return &Session{helperPath: helperPath}
}

// Start creates the socket pair, forks the helper, writes the spec as a
// single NUL-terminated JSON frame, and records the helper's pid. It does
// not wait for the helper to exit — callers drive that with Wait, letting
// Exec inject follow-up frames in the meantime.
func (s *Session) Start(spec interface{}) (pid int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: socketpair: %v", launcherrors.ErrSocketSetupFailure, err)
	}
	parentFD, childFD := fds[0], fds[1]

	childFile := os.NewFile(uintptr(childFD), "boxtransport-child")
	defer childFile.Close()

	attr := &syscall.ProcAttr{
		Files: []uintptr{0, 1, 2, childFile.Fd()},
		Sys: &syscall.SysProcAttr{
			Pdeathsig: syscall.SIGKILL,
		},
	}

	helperPid, err := syscall.ForkExec(s.helperPath, []string{s.helperPath, strconv.Itoa(int(childFile.Fd()))}, attr)
	if err != nil {
		unix.Close(parentFD)
		return 0, fmt.Errorf("%w: %v", launcherrors.ErrHelperExecFailure, err)
	}

	s.sockFile = os.NewFile(uintptr(parentFD), "boxtransport-parent")
	s.pid = helperPid

	payload, err := json.Marshal(spec)
	if err != nil {
		return 0, fmt.Errorf("marshaling runtime spec: %w", err)
	}
	if err := s.writeFrame(payload); err != nil {
		return 0, err
	}

	return s.pid, nil
}

// Wait blocks until the helper process exits, mirroring
// original_source/app.cpp's waitpid(boxPid, nullptr, 0). A non-zero exit
// status or a terminating signal is reported as an error; the returned
// *os.ProcessState is always nil.
func (s *Session) Wait() (*os.ProcessState, error) {
	if s.pid == 0 {
		return nil, fmt.Errorf("session not started")
	}
	var ws syscall.WaitStatus
	_, err := syscall.Wait4(s.pid, &ws, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("waitpid: %w", err)
	}
	if ws.Signaled() {
		return nil, fmt.Errorf("helper pid %d killed by signal %v", s.pid, ws.Signal())
	}
	if code := ws.ExitStatus(); code != 0 {
		return nil, fmt.Errorf("helper pid %d exited with status %d", s.pid, code)
	}
	return nil, nil
}

// Signal sends sig to the helper process, used by cancellation to send
// SIGTERM per §5 before waiting on it.
func (s *Session) Signal(sig syscall.Signal) error {
	if s.pid == 0 {
		return fmt.Errorf("session not started")
	}
	return syscall.Kill(s.pid, sig)
}

// ExecProcess is the wire shape for a follow-up exec frame: args, env,
// and cwd, the same field set as sandboxspec.Process.
type ExecProcess struct {
	Args []string `json:"args"`
	Env  []string `json:"env,omitempty"`
	Cwd  string   `json:"cwd,omitempty"`
}

// Exec builds a Process record from already-tokenized args, env and cwd
// (ExecCommand does the shell-style tokenizing), and writes it as a
// NUL-terminated JSON frame on the retained socket (§4.9). The write goes
// through writeFrame's mutex, so concurrent Exec calls and Start's initial
// spec write never interleave.
func (s *Session) Exec(ctx context.Context, args []string, env []string, cwd string) error {
	p := ExecProcess{Args: args, Env: env, Cwd: cwd}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling exec process: %w", err)
	}
	return s.writeFrame(payload)
}

// writeFrame appends the NUL terminator and writes it as one retried,
// mutex-serialized operation (single-writer invariant, §5).
func (s *Session) writeFrame(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.sockFile == nil {
		return launcherrors.ErrSessionClosed
	}

	trimmed := bytes.TrimRight(payload, "\x00")
	frame := make([]byte, len(trimmed)+1)
	copy(frame, trimmed)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		n, err := s.sockFile.Write(frame)
		if err != nil {
			if err == syscall.EINTR {
				return err
			}
			return backoff.Permanent(fmt.Errorf("%w: %v", launcherrors.ErrWriteFailure, err))
		}
		if n != len(frame) {
			frame = frame[n:]
			return fmt.Errorf("%w: partial write, %d bytes remaining", launcherrors.ErrWriteFailure, len(frame))
		}
		return nil
	}, b)
}

// Close releases the parent-side socket descriptor, matching
// App::start()'s close(d->sockets[1]) on the way out.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.sockFile == nil {
		return nil
	}

	sylog.Debugf("closing boxtransport session for helper pid %d", s.pid)
	return s.sockFile.Close()
}
