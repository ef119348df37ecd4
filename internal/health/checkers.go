// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ManuGH/camsession/internal/camera/model"
)

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewCheckerFunc reports unhealthy whenever fn returns an error.
func NewCheckerFunc(name string, fn func(ctx context.Context) error) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (c *CheckerFunc) Name() string { return c.name }

func (c *CheckerFunc) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SessionChecker grades the capture session state.
type SessionChecker struct {
	state func() model.OptionalState
}

// NewSessionChecker reads the state through fn on every check.
func NewSessionChecker(fn func() model.OptionalState) *SessionChecker {
	return &SessionChecker{state: fn}
}

func (c *SessionChecker) Name() string { return "capture_session" }

func (c *SessionChecker) Check(context.Context) CheckResult {
	st, ok := c.state().Get()
	switch {
	case !ok:
		return CheckResult{Status: StatusDegraded, Message: "session not confirmed yet"}
	case st == model.SessionClosed:
		return CheckResult{Status: StatusUnhealthy, Message: "session closed"}
	}
	return CheckResult{Status: StatusHealthy, Message: string(st)}
}

// DirChecker verifies that a directory exists and accepts new files.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for a writable directory.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}
	f, err := os.CreateTemp(c.path, ".probe-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "not writable", Message: c.path}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}
