package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Transport is a line-oriented connection to one running engine.
// Lines is closed when the engine exits.
type Transport interface {
	WriteLine(line string) error
	Lines() <-chan string
	Close() error
}

// Launcher starts a new engine and returns its transport. The context only
// bounds the launch itself, not the lifetime of the engine.
type Launcher func(ctx context.Context) (Transport, error)

// ExecLauncher runs the engine binary at path as a child process speaking
// UCI over stdin/stdout.
func ExecLauncher(path string, args ...string) Launcher {
	return func(ctx context.Context) (Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd := exec.Command(path, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", path, err)
		}

		t := &execTransport{
			cmd:    cmd,
			stdin:  stdin,
			writer: bufio.NewWriter(stdin),
			lines:  make(chan string, 256),
			exited: make(chan struct{}),
		}
		go t.readLoop(stdout)
		return t, nil
	}
}

type execTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *bufio.Writer
	lines  chan string
	exited chan struct{}

	mu     sync.Mutex
	closed bool
}

func (t *execTransport) readLoop(stdout io.Reader) {
	defer close(t.exited)
	defer close(t.lines)

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		line = strings.Trim(line, " \n\t\r")
		if line != "" {
			t.lines <- line
		}
		if err != nil {
			_ = t.cmd.Wait()
			return
		}
	}
}

func (t *execTransport) WriteLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return io.ErrClosedPipe
	}
	if _, err := t.writer.WriteString(line + "\n"); err != nil {
		return err
	}
	return t.writer.Flush()
}

func (t *execTransport) Lines() <-chan string {
	return t.lines
}

// Close closes stdin and kills the process if it has not exited shortly after.
func (t *execTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.stdin.Close()
	select {
	case <-t.exited:
		return nil
	case <-time.After(500 * time.Millisecond):
	}
	if t.cmd.Process != nil {
		return t.cmd.Process.Kill()
	}
	return nil
}
