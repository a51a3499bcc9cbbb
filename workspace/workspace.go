// ABOUTME: Core types for materialized preview projects: generated files, project kinds, errors.
// ABOUTME: A Project is the filesystem handle handed from materialization to build and serve.
package workspace

import (
	"fmt"
	"strings"
)

// Kind classifies what toolchain a materialized project needs.
type Kind string

const (
	// KindComponent is a React/Vite project: install + build before serving.
	KindComponent Kind = "component"
	// KindStatic is plain markup: no build step, served directly.
	KindStatic Kind = "static"
)

// GeneratedFile is one caller-supplied source file. The content is treated
// as immutable except for the explicit, logged manifest patch applied to a
// caller-supplied package.json before it reaches disk.
type GeneratedFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// Project is a materialized working directory ready for install/build.
type Project struct {
	AppID string
	Dir   string
	Kind  Kind

	// EntryHTML is the relative path of the HTML entry point. For component
	// projects this is the scaffolded index.html; for static projects it is
	// the first .html generated file, or the synthesized index.html.
	EntryHTML string
}

// ValidateAppID rejects identifiers that cannot serve as a single
// directory name under the temp root. Every filesystem operation keyed
// by appID (materialize and teardown alike) must pass this first.
func ValidateAppID(appID string) error {
	if appID == "" {
		return fmt.Errorf("empty appID")
	}
	if strings.ContainsAny(appID, "/\\") || appID == "." || appID == ".." {
		return fmt.Errorf("appID %q is not a valid directory name", appID)
	}
	return nil
}

// MaterializationError wraps a filesystem failure during materialization.
// Fatal: there is no retry for a disk that refuses writes.
type MaterializationError struct {
	AppID string
	Op    string
	Err   error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize %s: %s: %v", e.AppID, e.Op, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }
