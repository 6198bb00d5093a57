// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package extractor

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// maxTailLines bounds the captured output per stream. The extractor can
// print one line per page across thousands of pages; only the tail matters
// for diagnostics.
const maxTailLines = 100

// RunSpec describes one extractor invocation.
type RunSpec struct {
	// Command is the resolved extractor invocation.
	Command Command

	// Args are appended after the command's fixed prefix.
	Args []string

	// OnStarted receives the child pid right after a successful spawn.
	OnStarted func(pid int)

	// OnStdout and OnStderr receive each output line as it is produced.
	// Either may be nil.
	OnStdout func(line string)
	OnStderr func(line string)
}

// RunResult captures how an invocation ended.
type RunResult struct {
	// ExitCode is the child's exit status; -1 when it was killed.
	ExitCode int

	// Stdout and Stderr hold the bounded tail of each stream.
	Stdout string
	Stderr string

	// TimedOut is set when the run was killed by its deadline.
	TimedOut bool

	// Cancelled is set when the run was killed by context cancellation
	// other than the deadline.
	Cancelled bool
}

// Runner spawns extractor processes. The interface exists so driver logic
// can be exercised against a scripted fake.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}

// execRunner is the production runner on top of os/exec.
type execRunner struct {
	logger *slog.Logger
}

// NewRunner builds the production subprocess runner.
func NewRunner(logger *slog.Logger) Runner {
	return &execRunner{logger: logger.With(slog.String("component", "extractor"))}
}

// Run spawns the process, streams both pipes line by line, and waits for
// exit or context cancellation. Output lines are mirrored to the debug log.
func (r *execRunner) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	cmd := exec.CommandContext(ctx, spec.Command.Name, spec.Command.Argv(spec.Args...)...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return RunResult{ExitCode: -1}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{ExitCode: -1}, err
	}

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1}, err
	}

	if spec.OnStarted != nil {
		spec.OnStarted(cmd.Process.Pid)
	}

	stdoutTail := newTailBuffer(maxTailLines)
	stderrTail := newTailBuffer(maxTailLines)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stdoutTail.Append(line)
			r.logger.Debug("extractor_stdout", slog.String("line", line))
			if spec.OnStdout != nil {
				spec.OnStdout(line)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stderrTail.Append(line)
			r.logger.Debug("extractor_stderr", slog.String("line", line))
			if spec.OnStderr != nil {
				spec.OnStderr(line)
			}
		}
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	result := RunResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdoutTail.String(),
		Stderr:   stderrTail.String(),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
	case errors.Is(ctx.Err(), context.Canceled):
		result.Cancelled = true
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && ctx.Err() == nil {
		// Not an exit status and not a kill we caused: a real spawn/IO fault.
		return result, waitErr
	}

	return result, nil
}

// tailBuffer keeps the last n appended lines.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = append(b.lines[:0], b.lines[len(b.lines)-b.limit:]...)
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.Join(b.lines, "\n")
}
