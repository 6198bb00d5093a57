// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package extractor drives the external gallery-dl process: locating a usable
installation, generating its configuration file, spawning it for metadata or
download runs, and parsing its stream output into progress callbacks.

The extractor is deliberately out-of-process. It brings its own site support
and release cadence; this package treats it as a black box with three knobs:
arguments, a config file, and stdout/stderr.
*/
package extractor

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
)

// ErrNotInstalled is returned when no gallery-dl installation answers any of
// the probe commands.
var ErrNotInstalled = errors.New("extractor: gallery-dl is not installed")

// Command is a resolved way of invoking the extractor. Args holds the fixed
// prefix (module invocation for the python fallbacks); run arguments are
// appended after it.
type Command struct {
	Name string
	Args []string
}

// Argv builds the full argument vector for one run.
func (c Command) Argv(runArgs ...string) []string {
	argv := make([]string, 0, len(c.Args)+len(runArgs))
	argv = append(argv, c.Args...)
	argv = append(argv, runArgs...)

	return argv
}

// candidates are probed in order: a native install wins over module
// invocations through either python binary name.
var candidates = []Command{
	{Name: "gallery-dl"},
	{Name: "python3", Args: []string{"-m", "gallery_dl"}},
	{Name: "python", Args: []string{"-m", "gallery_dl"}},
}

// Resolver locates the extractor binary once and caches the result for the
// process lifetime. All methods are safe for concurrent use.
type Resolver struct {
	mu       sync.Mutex
	resolved *Command
	failed   bool
	override *Command

	// probe is injected in tests; the default execs "<candidate> --version".
	probe  func(ctx context.Context, candidate Command) error
	logger *slog.Logger
}

// NewResolver builds a resolver that probes the real system.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		probe:  probeVersion,
		logger: logger.With(slog.String("component", "extractor")),
	}
}

// SetPath pins the resolver to an explicit binary path instead of probing
// the default candidates. An empty path is ignored.
func (r *Resolver) SetPath(path string) {
	if path == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.override = &Command{Name: path}
	r.resolved = nil
	r.failed = false
}

// Resolve returns the first candidate that answers a --version probe. The
// outcome, success or failure, is cached; call [Resolver.Invalidate] after
// installing the extractor to re-probe.
func (r *Resolver) Resolve(ctx context.Context) (Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}
	if r.failed {
		return Command{}, ErrNotInstalled
	}

	probeList := candidates
	if r.override != nil {
		probeList = []Command{*r.override}
	}

	for _, candidate := range probeList {
		probeCtx, cancel := context.WithTimeout(ctx, constants.ExtractorProbeTimeout)
		err := r.probe(probeCtx, candidate)
		cancel()

		if err == nil {
			r.logger.Info("extractor_resolved",
				slog.String("command", candidate.Name),
			)
			r.resolved = &candidate
			return candidate, nil
		}

		r.logger.Debug("extractor_probe_failed",
			slog.String("command", candidate.Name),
			slog.String("error", err.Error()),
		)
	}

	r.failed = true
	r.logger.Warn("extractor_not_installed")

	return Command{}, ErrNotInstalled
}

// Installed reports whether an extractor can be resolved right now.
func (r *Resolver) Installed(ctx context.Context) bool {
	_, err := r.Resolve(ctx)
	return err == nil
}

// Invalidate drops the cached probe outcome.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolved = nil
	r.failed = false
}

// probeVersion runs "<candidate> --version" and reports whether it exited
// cleanly.
func probeVersion(ctx context.Context, candidate Command) error {
	cmd := exec.CommandContext(ctx, candidate.Name, candidate.Argv("--version")...)
	return cmd.Run()
}
