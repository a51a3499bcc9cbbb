// ABOUTME: Tests for the install/build runner using shell stubs instead of npm.
// ABOUTME: Covers success, failure output capture, timeouts, and the static no-op.
package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/greenroom/workspace"
)

func componentProject(t *testing.T) *workspace.Project {
	t.Helper()
	return &workspace.Project{AppID: "test", Dir: t.TempDir(), Kind: workspace.KindComponent}
}

func TestInstallAndBuildSuccess(t *testing.T) {
	proj := componentProject(t)
	r := &Runner{
		InstallArgs: []string{"/bin/sh", "-c", "true"},
		BuildArgs:   []string{"/bin/sh", "-c", "mkdir -p dist && echo built"},
	}

	outDir, err := r.InstallAndBuild(context.Background(), proj)
	if err != nil {
		t.Fatalf("InstallAndBuild() error: %v", err)
	}
	if want := filepath.Join(proj.Dir, "dist"); outDir != want {
		t.Errorf("outDir = %q, want %q", outDir, want)
	}
}

func TestInstallAndBuildStaticIsNoop(t *testing.T) {
	proj := &workspace.Project{AppID: "static", Dir: t.TempDir(), Kind: workspace.KindStatic}
	r := &Runner{
		// Would fail loudly if the static path ever ran a step.
		InstallArgs: []string{"/bin/sh", "-c", "exit 1"},
		BuildArgs:   []string{"/bin/sh", "-c", "exit 1"},
	}

	outDir, err := r.InstallAndBuild(context.Background(), proj)
	if err != nil {
		t.Fatalf("InstallAndBuild() error: %v", err)
	}
	if outDir != proj.Dir {
		t.Errorf("outDir = %q, want project dir %q", outDir, proj.Dir)
	}
}

func TestBuildFailureCapturesOutput(t *testing.T) {
	proj := componentProject(t)
	r := &Runner{
		InstallArgs: []string{"/bin/sh", "-c", "true"},
		BuildArgs:   []string{"/bin/sh", "-c", `echo 'Could not resolve "./Widget" from "src/App.jsx"' >&2; exit 1`},
	}

	_, err := r.InstallAndBuild(context.Background(), proj)
	var berr *BuildError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *BuildError", err)
	}
	if berr.Step != "build" {
		t.Errorf("Step = %q, want build", berr.Step)
	}
	if berr.TimedOut {
		t.Error("TimedOut = true for a plain non-zero exit")
	}
	if !strings.Contains(berr.Output, `Could not resolve "./Widget"`) {
		t.Errorf("Output does not carry the build tool's stderr:\n%s", berr.Output)
	}
}

func TestInstallFailureIsBuildError(t *testing.T) {
	proj := componentProject(t)
	r := &Runner{
		InstallArgs: []string{"/bin/sh", "-c", "echo 'network down' >&2; exit 1"},
		BuildArgs:   []string{"/bin/sh", "-c", "true"},
	}

	_, err := r.InstallAndBuild(context.Background(), proj)
	var berr *BuildError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *BuildError", err)
	}
	if berr.Step != "install" {
		t.Errorf("Step = %q, want install", berr.Step)
	}
}

func TestBuildTimeout(t *testing.T) {
	proj := componentProject(t)
	r := &Runner{
		InstallArgs:  []string{"/bin/sh", "-c", "true"},
		BuildArgs:    []string{"/bin/sh", "-c", "sleep 10"},
		BuildTimeout: 100 * time.Millisecond,
	}

	start := time.Now()
	_, err := r.InstallAndBuild(context.Background(), proj)
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout was not enforced")
	}

	var berr *BuildError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *BuildError", err)
	}
	if !berr.TimedOut {
		t.Error("TimedOut = false for a timed-out build")
	}
}

func TestBuildRunsOnlyBuildStep(t *testing.T) {
	proj := componentProject(t)
	r := &Runner{
		InstallArgs: []string{"/bin/sh", "-c", "echo installed > installed.txt"},
		BuildArgs:   []string{"/bin/sh", "-c", "mkdir -p dist"},
	}

	if _, err := r.Build(context.Background(), proj); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(proj.Dir, "installed.txt")); err == nil {
		t.Error("Build() ran the install step")
	}
}
