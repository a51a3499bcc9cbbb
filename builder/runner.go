// ABOUTME: Runs the package-manager install and build steps inside a materialized project.
// ABOUTME: Each step is time-bounded and killed by process group; combined output is captured.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/2389-research/greenroom/workspace"
)

const (
	defaultInstallTimeout = 3 * time.Minute
	defaultBuildTimeout   = 2 * time.Minute
	defaultOutputDir      = "dist"
)

// BuildError reports a non-zero exit or timeout from an install/build step.
// Output carries the failing step's combined stdout+stderr for the healer
// (and ultimately the caller) to inspect. Timeouts are never healable.
type BuildError struct {
	Step     string
	Output   string
	TimedOut bool
}

func (e *BuildError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s step timed out", e.Step)
	}
	return fmt.Sprintf("%s step failed", e.Step)
}

// Runner executes install and build steps as synchronous child processes.
// The zero value uses npm with default timeouts; tests substitute their
// own argv to avoid touching a real toolchain.
type Runner struct {
	// InstallArgs and BuildArgs are the full argv for each step.
	// Defaults: ["npm", "install"] and ["npm", "run", "build"].
	InstallArgs []string
	BuildArgs   []string

	InstallTimeout time.Duration
	BuildTimeout   time.Duration

	// OutputDir is the build artifact directory relative to the project
	// root. Default "dist" (vite's default).
	OutputDir string
}

// InstallAndBuild runs install then build in sequence inside proj.Dir and
// returns the absolute build output directory. Static projects have no
// build step: their output directory is the project root itself.
func (r *Runner) InstallAndBuild(ctx context.Context, proj *workspace.Project) (string, error) {
	if proj.Kind == workspace.KindStatic {
		log.Printf("builder app=%s kind=static skipping install/build", proj.AppID)
		return proj.Dir, nil
	}

	installArgs := r.InstallArgs
	if len(installArgs) == 0 {
		installArgs = []string{"npm", "install"}
	}
	installTimeout := r.InstallTimeout
	if installTimeout <= 0 {
		installTimeout = defaultInstallTimeout
	}

	start := time.Now()
	output, timedOut, err := runStep(ctx, proj.Dir, installArgs, installTimeout)
	if err != nil {
		log.Printf("builder app=%s step=install failed timed_out=%v duration=%s", proj.AppID, timedOut, time.Since(start).Round(time.Millisecond))
		return "", &BuildError{Step: "install", Output: output, TimedOut: timedOut}
	}
	log.Printf("builder app=%s step=install ok duration=%s", proj.AppID, time.Since(start).Round(time.Millisecond))

	return r.Build(ctx, proj)
}

// Build runs only the build step. The supervisor uses this for the single
// post-heal rebuild, where install has already succeeded.
func (r *Runner) Build(ctx context.Context, proj *workspace.Project) (string, error) {
	if proj.Kind == workspace.KindStatic {
		return proj.Dir, nil
	}

	buildArgs := r.BuildArgs
	if len(buildArgs) == 0 {
		buildArgs = []string{"npm", "run", "build"}
	}
	buildTimeout := r.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = defaultBuildTimeout
	}
	outputDir := r.OutputDir
	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	start := time.Now()
	output, timedOut, err := runStep(ctx, proj.Dir, buildArgs, buildTimeout)
	if err != nil {
		log.Printf("builder app=%s step=build failed timed_out=%v duration=%s", proj.AppID, timedOut, time.Since(start).Round(time.Millisecond))
		return "", &BuildError{Step: "build", Output: output, TimedOut: timedOut}
	}
	log.Printf("builder app=%s step=build ok duration=%s", proj.AppID, time.Since(start).Round(time.Millisecond))
	return filepath.Join(proj.Dir, outputDir), nil
}

// runStep executes argv in dir with a deadline. The child runs in its own
// process group so the kill on timeout reaches npm's grandchildren too.
func runStep(ctx context.Context, dir string, argv []string, timeout time.Duration) (output string, timedOut bool, err error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
	cmd.WaitDelay = 3 * time.Second

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err = cmd.Run()
	output = buf.String()
	if stepCtx.Err() == context.DeadlineExceeded {
		return output, true, fmt.Errorf("timed out after %s", timeout)
	}
	return output, false, err
}
