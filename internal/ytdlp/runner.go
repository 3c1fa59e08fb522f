// SPDX-License-Identifier: MIT

package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dlgram/dlgram/internal/procgroup"
)

const tailSize = 40

// Runner launches the download tool as a supervised subprocess.
type Runner struct {
	Binary  string
	Ceiling time.Duration // hard wall-clock bound per invocation
	Grace   time.Duration // SIGTERM→SIGKILL escalation delay
	Logger  zerolog.Logger
}

// Start spawns the tool with the given arguments in its own process group.
// Stdout and stderr are merged and exposed line by line through the handle
// as they are produced. The run is bounded by the runner's ceiling and by
// ctx; either one triggers group termination.
func (r *Runner) Start(ctx context.Context, args []string) (*Handle, error) {
	cmd := exec.Command(r.Binary, args...)
	procgroup.Set(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("start %s: %w", r.Binary, err)
	}
	// Parent keeps only the read end; EOF arrives when the group exits.
	_ = pw.Close()

	grace := r.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}

	h := &Handle{
		cmd:    cmd,
		lines:  make(chan string, 64),
		done:   make(chan error, 1),
		exited: make(chan struct{}),
		tail:   newTailBuffer(tailSize),
		grace:  grace,
	}
	go h.monitor(pr)
	go h.watch(ctx, r.Ceiling)

	r.Logger.Debug().
		Str("event", "runner.started").
		Int("pid", cmd.Process.Pid).
		Strs("args", args).
		Msg("download subprocess started")
	return h, nil
}

// Handle is the caller's view of one running subprocess.
type Handle struct {
	cmd      *exec.Cmd
	lines    chan string
	done     chan error
	exited   chan struct{}
	tail     *tailBuffer
	grace    time.Duration
	expired  atomic.Bool
	stopOnce sync.Once
}

// Lines returns the merged output stream. The channel is closed once the
// process has terminated, so readers never block indefinitely.
func (h *Handle) Lines() <-chan string {
	return h.lines
}

// Wait blocks until the process terminates and returns its exit status.
// It must be called exactly once.
func (h *Handle) Wait() error {
	return <-h.done
}

// Stop terminates the process group: SIGTERM immediately, SIGKILL after the
// grace period unless the process exits first. The exit is observed via Wait.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		_ = procgroup.Kill(h.cmd, syscall.SIGTERM)
		killTimer := time.AfterFunc(h.grace, func() {
			_ = procgroup.Kill(h.cmd, syscall.SIGKILL)
		})
		go func() {
			<-h.exited
			killTimer.Stop()
		}()
	})
}

// Expired reports whether the run was aborted by the wall-clock ceiling
// rather than by caller cancellation or a natural exit.
func (h *Handle) Expired() bool {
	return h.expired.Load()
}

// Tail returns the most recent output lines for failure diagnostics.
func (h *Handle) Tail() []string {
	return h.tail.all()
}

func (h *Handle) monitor(out *os.File) {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		line := scanner.Text()
		h.tail.add(line)
		h.lines <- line
	}
	_ = out.Close()

	err := h.cmd.Wait()
	close(h.lines)
	h.done <- err
	close(h.exited)
}

func (h *Handle) watch(ctx context.Context, ceiling time.Duration) {
	if ceiling <= 0 {
		ceiling = time.Hour
	}
	timer := time.NewTimer(ceiling)
	defer timer.Stop()

	select {
	case <-h.exited:
		return
	case <-ctx.Done():
	case <-timer.C:
		h.expired.Store(true)
	}
	h.Stop()
}

// scanCRLines splits on \n or bare \r, so carriage-return progress updates
// surface as individual lines without the tool's --newline flag.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// Wait for the byte after \r to decide on \r\n.
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last n output lines.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	pos   int
	full  bool
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{lines: make([]string, n)}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.pos] = line
	t.pos = (t.pos + 1) % len(t.lines)
	if t.pos == 0 {
		t.full = true
	}
}

func (t *tailBuffer) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]string(nil), t.lines[:t.pos]...)
	}
	out := make([]string, len(t.lines))
	copy(out, t.lines[t.pos:])
	copy(out[len(t.lines)-t.pos:], t.lines[:t.pos])
	return out
}
