// ABOUTME: Registry entry types for supervised preview servers, plus supervisor errors.
// ABOUTME: ManagedApp is mutated only under the supervisor mutex; AppInfo is the snapshot.
package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/2389-research/greenroom/workspace"
)

// ErrStartInProgress reports a duplicate Start racing a first Start that is
// still materializing or building. Running instances are returned
// idempotently; mid-build duplicates are refused rather than queued.
var ErrStartInProgress = errors.New("start already in progress for this appID")

// SpawnError reports that the server process could not be created. Fatal
// to the Start call; no registry entry is left behind.
type SpawnError struct {
	AppID string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn server for %s: %v", e.AppID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

type appState int

const (
	stateStarting appState = iota
	stateRunning
)

// ManagedApp is one supervised preview server. All fields are written
// under the supervisor mutex; the monitor goroutines go through the
// supervisor to mutate them.
type ManagedApp struct {
	AppID        string
	Dir          string
	Kind         workspace.Kind
	Seq          int64
	Port         int
	FrontDoorURL string
	PID          int
	CreatedAt    time.Time

	state    appState
	stopping bool
	cmd      *exec.Cmd
	done     chan struct{}
}

func (a *ManagedApp) info() AppInfo {
	return AppInfo{
		AppID:        a.AppID,
		Kind:         string(a.Kind),
		Port:         a.Port,
		FrontDoorURL: a.FrontDoorURL,
		Seq:          a.Seq,
		PID:          a.PID,
		CreatedAt:    a.CreatedAt,
	}
}

// AppInfo is the connection info returned by Start and the list queries.
type AppInfo struct {
	AppID        string    `json:"app_id"`
	Kind         string    `json:"kind"`
	Port         int       `json:"port"`
	FrontDoorURL string    `json:"front_door_url"`
	Seq          int64     `json:"seq"`
	PID          int       `json:"pid"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attempt is one build-and-start attempt, recorded for post-mortem
// inspection. The registry stays the only source of lifecycle truth;
// attempts are observational.
type Attempt struct {
	AppID     string
	Kind      string
	Status    string
	Healed    int
	Duration  time.Duration
	Port      int
	ErrorTail string
}

// Attempt statuses.
const (
	StatusOK                = "ok"
	StatusMaterializeFailed = "materialize_failed"
	StatusBuildFailed       = "build_failed"
	StatusSpawnFailed       = "spawn_failed"
	StatusAllocationFailed  = "allocation_failed"
)

// Recorder receives completed attempts. Implementations must tolerate
// being called from concurrent Start goroutines.
type Recorder interface {
	RecordAttempt(a Attempt)
}
