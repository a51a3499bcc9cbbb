// ABOUTME: Process supervisor: materialize, build (with one heal retry), spawn, track, stop.
// ABOUTME: Registry is per-instance and mutex-guarded; monitor goroutines report back through it.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/2389-research/greenroom/builder"
	"github.com/2389-research/greenroom/events"
	"github.com/2389-research/greenroom/ports"
	"github.com/2389-research/greenroom/workspace"
)

const (
	defaultStopGrace      = 5 * time.Second
	defaultErrorTailBytes = 4096
)

// SpawnFunc builds the (unstarted) server command for a built project.
// outDir is the build output for component projects and the project root
// for static ones.
type SpawnFunc func(app *ManagedApp, outDir string) *exec.Cmd

// Config wires a Supervisor. Only Root is required.
type Config struct {
	// Root is the temp directory holding one project directory per appID.
	Root string

	// Materializer and Runner default to instances built from Root and
	// the stock npm commands.
	Materializer *workspace.Materializer
	Runner       *builder.Runner

	// Recorder receives completed attempts. Nil disables recording.
	Recorder Recorder

	// Events receives lifecycle events. Nil disables publishing.
	Events events.Handler

	// Spawn overrides how the server process is constructed. Nil uses
	// npx serve.
	Spawn SpawnFunc

	// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
	StopGrace time.Duration

	// ErrorTailBytes bounds the build output recorded per attempt.
	ErrorTailBytes int
}

// Supervisor owns the appID registry and the full start/stop/cleanup
// lifecycle. Construct one per orchestrator; there are no package-level
// registries.
type Supervisor struct {
	root      string
	mat       *workspace.Materializer
	runner    *builder.Runner
	recorder  Recorder
	events    events.Handler
	spawn     SpawnFunc
	stopGrace time.Duration
	tailBytes int

	mu   sync.Mutex
	apps map[string]*ManagedApp
	seq  int64
}

// New builds a Supervisor from cfg, filling defaults.
func New(cfg Config) *Supervisor {
	mat := cfg.Materializer
	if mat == nil {
		mat = &workspace.Materializer{Root: cfg.Root}
	}
	runner := cfg.Runner
	if runner == nil {
		runner = &builder.Runner{}
	}
	grace := cfg.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	tail := cfg.ErrorTailBytes
	if tail <= 0 {
		tail = defaultErrorTailBytes
	}
	spawn := cfg.Spawn
	if spawn == nil {
		spawn = defaultSpawn
	}
	return &Supervisor{
		root:      cfg.Root,
		mat:       mat,
		runner:    runner,
		recorder:  cfg.Recorder,
		events:    cfg.Events,
		spawn:     spawn,
		stopGrace: grace,
		tailBytes: tail,
		apps:      map[string]*ManagedApp{},
	}
}

// Start materializes, builds (healing once on a recognized failure),
// spawns, and registers a preview server for appID. A Start for an
// already-running appID returns the existing connection info unchanged.
func (s *Supervisor) Start(ctx context.Context, appID string, files []workspace.GeneratedFile) (AppInfo, error) {
	s.mu.Lock()
	if existing, ok := s.apps[appID]; ok {
		if existing.state == stateStarting {
			s.mu.Unlock()
			return AppInfo{}, ErrStartInProgress
		}
		info := existing.info()
		s.mu.Unlock()
		log.Printf("supervisor app=%s already running seq=%d port=%d, returning existing instance", appID, info.Seq, info.Port)
		return info, nil
	}
	s.seq++
	app := &ManagedApp{AppID: appID, Seq: s.seq, state: stateStarting, done: make(chan struct{})}
	s.apps[appID] = app
	s.mu.Unlock()

	info, err := s.launch(ctx, app, files)
	if err != nil {
		s.mu.Lock()
		delete(s.apps, appID)
		s.mu.Unlock()
		return AppInfo{}, err
	}
	return info, nil
}

// launch runs the start pipeline for a freshly registered Starting entry.
func (s *Supervisor) launch(ctx context.Context, app *ManagedApp, files []workspace.GeneratedFile) (AppInfo, error) {
	appID := app.AppID
	started := time.Now()
	s.emit(events.TypeAppStarting, appID, fmt.Sprintf("files=%d", len(files)))

	proj, err := s.mat.Materialize(appID, files)
	if err != nil {
		s.record(Attempt{AppID: appID, Status: StatusMaterializeFailed, Duration: time.Since(started), ErrorTail: s.tail(err.Error())})
		return AppInfo{}, err
	}

	healed := 0
	outDir, err := s.runner.InstallAndBuild(ctx, proj)
	if err != nil {
		var berr *builder.BuildError
		if errors.As(err, &berr) && !berr.TimedOut {
			n, herr := builder.Heal(proj.Dir, berr.Output)
			if herr == nil && n > 0 {
				healed = n
				log.Printf("supervisor app=%s healed placeholders=%d, retrying build once", appID, n)
				s.emit(events.TypeAppHealed, appID, fmt.Sprintf("placeholders=%d", n))
				outDir, err = s.runner.Build(ctx, proj)
			}
		}
	}
	if err != nil {
		// The materialized directory stays on disk for diagnosis until
		// the caller invokes Cleanup.
		var berr *builder.BuildError
		tail := s.tail(err.Error())
		if errors.As(err, &berr) {
			tail = s.tail(berr.Output)
		}
		s.emit(events.TypeAppBuildFailed, appID, tail)
		s.record(Attempt{AppID: appID, Kind: string(proj.Kind), Status: StatusBuildFailed, Healed: healed, Duration: time.Since(started), ErrorTail: tail})
		return AppInfo{}, err
	}

	port, err := ports.Allocate()
	if err != nil {
		s.record(Attempt{AppID: appID, Kind: string(proj.Kind), Status: StatusAllocationFailed, Healed: healed, Duration: time.Since(started), ErrorTail: s.tail(err.Error())})
		return AppInfo{}, err
	}

	s.mu.Lock()
	app.Dir = proj.Dir
	app.Kind = proj.Kind
	app.Port = port
	app.FrontDoorURL = fmt.Sprintf("http://localhost:%d", port)
	s.mu.Unlock()

	if err := s.spawnServer(app, outDir); err != nil {
		s.record(Attempt{AppID: appID, Kind: string(proj.Kind), Status: StatusSpawnFailed, Healed: healed, Duration: time.Since(started), Port: port, ErrorTail: s.tail(err.Error())})
		return AppInfo{}, err
	}

	s.mu.Lock()
	app.state = stateRunning
	app.CreatedAt = time.Now()
	info := app.info()
	s.mu.Unlock()

	log.Printf("supervisor app=%s seq=%d started kind=%s port=%d pid=%d healed=%d duration=%s",
		appID, info.Seq, info.Kind, info.Port, info.PID, healed, time.Since(started).Round(time.Millisecond))
	s.emit(events.TypeAppStarted, appID, info.FrontDoorURL)
	s.record(Attempt{AppID: appID, Kind: string(proj.Kind), Status: StatusOK, Healed: healed, Duration: time.Since(started), Port: info.Port})
	return info, nil
}

// Stop terminates appID's server: SIGTERM, bounded grace, then SIGKILL.
// A Stop for an absent appID logs a warning and does nothing. Stop never
// fails; teardown must not be blocked by one misbehaving instance.
func (s *Supervisor) Stop(appID string) {
	s.mu.Lock()
	app, ok := s.apps[appID]
	if !ok || app.state != stateRunning {
		s.mu.Unlock()
		log.Printf("supervisor app=%s stop requested but not running", appID)
		return
	}
	app.stopping = true
	delete(s.apps, appID)
	pid := app.PID
	s.mu.Unlock()

	log.Printf("supervisor app=%s seq=%d stopping pid=%d", appID, app.Seq, pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		log.Printf("supervisor app=%s sigterm failed: %v", appID, err)
	}
	select {
	case <-app.done:
	case <-time.After(s.stopGrace):
		log.Printf("supervisor app=%s did not exit within %s, force killing", appID, s.stopGrace)
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			log.Printf("supervisor app=%s sigkill failed: %v", appID, err)
		}
		select {
		case <-app.done:
		case <-time.After(2 * time.Second):
			log.Printf("supervisor app=%s still not reaped after sigkill", appID)
		}
	}
	s.emit(events.TypeAppStopped, appID, "")
}

// Cleanup stops appID's server (if any) and deletes its working
// directory. Failures are logged and swallowed; cleanup must never block
// a shutdown sequence.
func (s *Supervisor) Cleanup(appID string) {
	s.Stop(appID)
	// The appID becomes a path component here, so it gets the same
	// validation as materialization; otherwise "../x" would delete
	// outside the root.
	if err := workspace.ValidateAppID(appID); err != nil {
		log.Printf("supervisor app=%s cleanup refused: %v", appID, err)
		return
	}
	dir := filepath.Join(s.root, appID)
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("supervisor app=%s cleanup: remove %s failed: %v", appID, dir, err)
		return
	}
	log.Printf("supervisor app=%s cleanup: removed %s", appID, dir)
}

// StopAll stops every running app. Used on orchestrator shutdown.
func (s *Supervisor) StopAll() {
	for _, info := range s.ListRunning() {
		s.Stop(info.AppID)
	}
}

// ListRunning returns a snapshot of the running registry, ordered by
// spawn sequence. The snapshot may be stale the moment it returns.
func (s *Supervisor) ListRunning() []AppInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AppInfo, 0, len(s.apps))
	for _, app := range s.apps {
		if app.state == stateRunning {
			out = append(out, app.info())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// IsRunning reports whether appID has a live registered server.
func (s *Supervisor) IsRunning(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appID]
	return ok && app.state == stateRunning
}

// Get returns the snapshot for a single running appID.
func (s *Supervisor) Get(appID string) (AppInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appID]
	if !ok || app.state != stateRunning {
		return AppInfo{}, false
	}
	return app.info(), true
}

func (s *Supervisor) emit(eventType, key, detail string) {
	if s.events != nil {
		s.events(events.New(eventType, key, detail))
	}
}

func (s *Supervisor) record(a Attempt) {
	if s.recorder != nil {
		s.recorder.RecordAttempt(a)
	}
}

// tail bounds error text to the configured byte limit, keeping the end
// (build tools put the useful part last).
func (s *Supervisor) tail(text string) string {
	if len(text) <= s.tailBytes {
		return text
	}
	return text[len(text)-s.tailBytes:]
}

// defaultSpawn serves component builds with SPA fallback and static
// projects straight from the project root.
func defaultSpawn(app *ManagedApp, outDir string) *exec.Cmd {
	var cmd *exec.Cmd
	if app.Kind == workspace.KindComponent {
		cmd = exec.Command("npx", "serve", "-s", outDir, "-l", strconv.Itoa(app.Port))
	} else {
		cmd = exec.Command("npx", "serve", outDir, "-l", strconv.Itoa(app.Port))
	}
	cmd.Dir = app.Dir
	return cmd
}
