// ABOUTME: Spawns the preview server and monitors its output and exit asynchronously.
// ABOUTME: Stdout is scanned for the server's announced URL to refine port/front-door URL.
package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"syscall"

	"github.com/2389-research/greenroom/events"
)

// announcedURLPattern matches the bind address a static server prints on
// startup, e.g. "Accepting connections at http://localhost:41873". Some
// server tooling picks its own port when the requested one is taken, so
// the announced port wins over the allocated one.
var announcedURLPattern = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::\]):(\d+)`)

// spawnServer starts the server process for app and launches its monitor
// goroutines. Called once per Start, with app still in Starting state.
func (s *Supervisor) spawnServer(app *ManagedApp, outDir string) error {
	cmd := s.spawn(app, outDir)
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	// Own process group, so Stop's signals reach npx's children.
	cmd.SysProcAttr.Setpgid = true

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{AppID: app.AppID, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{AppID: app.AppID, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &SpawnError{AppID: app.AppID, Err: err}
	}

	s.mu.Lock()
	app.cmd = cmd
	app.PID = cmd.Process.Pid
	s.mu.Unlock()

	go s.scanOutput(app, "stdout", stdout)
	go s.scanOutput(app, "stderr", stderr)
	go s.reap(app)
	return nil
}

// scanOutput logs every line the server prints and refines the registry
// entry when a line announces the actual bind URL.
func (s *Supervisor) scanOutput(app *ManagedApp, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		log.Printf("supervisor app=%s seq=%d %s=%s", app.AppID, app.Seq, stream, line)
		if stream != "stdout" {
			continue
		}
		if match := announcedURLPattern.FindStringSubmatch(line); match != nil {
			port, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			s.refinePort(app, port)
		}
	}
}

// refinePort updates the entry's port and front-door URL from the
// server's own announcement. A proxy front door is left untouched.
func (s *Supervisor) refinePort(app *ManagedApp, port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.Port == port {
		return
	}
	direct := fmt.Sprintf("http://localhost:%d", app.Port)
	log.Printf("supervisor app=%s seq=%d server announced port=%d (allocated %d)", app.AppID, app.Seq, port, app.Port)
	app.Port = port
	if app.FrontDoorURL == direct {
		app.FrontDoorURL = fmt.Sprintf("http://localhost:%d", port)
	}
}

// reap blocks until the server process exits, then deregisters it.
// Intentional stops are logged quietly; anything else is a crash.
func (s *Supervisor) reap(app *ManagedApp) {
	err := app.cmd.Wait()
	close(app.done)

	s.mu.Lock()
	intentional := app.stopping
	if current, ok := s.apps[app.AppID]; ok && current == app {
		delete(s.apps, app.AppID)
	}
	s.mu.Unlock()

	if intentional {
		log.Printf("supervisor app=%s seq=%d exited after stop", app.AppID, app.Seq)
		return
	}
	detail := "exit status 0"
	if err != nil {
		detail = err.Error()
	}
	log.Printf("supervisor app=%s seq=%d crashed: %s", app.AppID, app.Seq, detail)
	s.emit(events.TypeAppExited, app.AppID, detail)
}
