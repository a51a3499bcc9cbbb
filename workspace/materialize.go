// ABOUTME: Materializes generated files into an isolated, buildable project directory.
// ABOUTME: Classifies the project kind, scaffolds the toolchain, writes files verbatim.
package workspace

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Materializer creates throwaway project directories under Root. Each
// appID gets exactly one directory; a second Materialize for a live appID
// fails, so callers must check liveness first.
type Materializer struct {
	// Root is the temp directory that holds one subdirectory per appID.
	Root string

	// Classify decides the project kind. Nil means DefaultClassify.
	Classify Classifier
}

// Materialize creates <Root>/<appID>/, scaffolds the toolchain for the
// classified kind, and writes the generated files. The caller-supplied
// package.json, if any, is patched rather than written verbatim.
func (m *Materializer) Materialize(appID string, files []GeneratedFile) (*Project, error) {
	if err := ValidateAppID(appID); err != nil {
		return nil, &MaterializationError{AppID: appID, Op: "validate", Err: err}
	}

	dir := filepath.Join(m.Root, appID)
	if err := os.MkdirAll(m.Root, 0o755); err != nil {
		return nil, &MaterializationError{AppID: appID, Op: "mkdir root", Err: err}
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, &MaterializationError{AppID: appID, Op: "mkdir", Err: err}
	}

	classify := m.Classify
	if classify == nil {
		classify = DefaultClassify
	}
	kind := classify(files)
	log.Printf("workspace app=%s kind=%s files=%d dir=%s", appID, kind, len(files), dir)

	proj := &Project{AppID: appID, Dir: dir, Kind: kind}

	var scaffoldErr error
	switch kind {
	case KindComponent:
		scaffoldErr = m.scaffoldComponent(proj, files)
	default:
		scaffoldErr = m.scaffoldStatic(proj, files)
	}
	if scaffoldErr != nil {
		os.RemoveAll(dir)
		return nil, scaffoldErr
	}

	if err := m.writeGenerated(proj, files); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return proj, nil
}

// scaffoldComponent writes the Vite toolchain files. The package.json is
// either the default scaffold or the caller's patched manifest.
func (m *Materializer) scaffoldComponent(proj *Project, files []GeneratedFile) error {
	manifestBytes, err := resolveManifest(proj.AppID, files, componentManifest(proj.AppID))
	if err != nil {
		return &MaterializationError{AppID: proj.AppID, Op: "patch manifest", Err: err}
	}

	scaffold := map[string]string{
		"package.json":   string(manifestBytes),
		"vite.config.js": viteConfigJS,
		"index.html":     indexHTML,
	}
	// Only scaffold the mount point when the caller did not generate one.
	if !hasFile(files, "src/main.jsx") && !hasFile(files, "src/main.tsx") {
		scaffold["src/main.jsx"] = mainJSX
	}

	for rel, content := range scaffold {
		// Generated index.html wins over the scaffold template.
		if rel == "index.html" && hasFile(files, "index.html") {
			continue
		}
		if err := writeFile(proj, rel, content); err != nil {
			return err
		}
	}
	proj.EntryHTML = "index.html"
	return nil
}

// scaffoldStatic writes a serve-only manifest and guarantees an HTML entry
// point exists, synthesizing one when the generated set has none. A
// caller-supplied package.json is patched, not replaced.
func (m *Materializer) scaffoldStatic(proj *Project, files []GeneratedFile) error {
	manifestBytes, err := resolveStaticManifest(proj.AppID, files)
	if err != nil {
		return &MaterializationError{AppID: proj.AppID, Op: "patch manifest", Err: err}
	}
	if err := writeFile(proj, "package.json", string(manifestBytes)); err != nil {
		return err
	}

	for _, f := range files {
		if strings.EqualFold(path.Ext(f.Path), ".html") {
			proj.EntryHTML = f.Path
			return nil
		}
	}
	log.Printf("workspace app=%s no html entry point generated, synthesizing index.html", proj.AppID)
	if err := writeFile(proj, "index.html", fallbackHTML); err != nil {
		return err
	}
	proj.EntryHTML = "index.html"
	return nil
}

// writeGenerated writes every generated file verbatim at its declared
// relative path. package.json is skipped: scaffolding already placed the
// patched version.
func (m *Materializer) writeGenerated(proj *Project, files []GeneratedFile) error {
	for _, f := range files {
		rel, err := cleanRelPath(f.Path)
		if err != nil {
			return &MaterializationError{AppID: proj.AppID, Op: "validate path " + f.Path, Err: err}
		}
		if rel == "package.json" {
			continue
		}
		if err := writeFile(proj, rel, f.Content); err != nil {
			return err
		}
	}
	return nil
}

// resolveManifest returns the patched caller manifest when the generated
// set includes a package.json, otherwise the encoded default.
func resolveManifest(appID string, files []GeneratedFile, fallback manifest) ([]byte, error) {
	for _, f := range files {
		if cleaned, err := cleanRelPath(f.Path); err == nil && cleaned == "package.json" {
			return patchCallerManifest(appID, f.Content)
		}
	}
	return fallback.encode()
}

// resolveStaticManifest returns the patched caller manifest when the
// generated set includes a package.json, otherwise the encoded static
// default.
func resolveStaticManifest(appID string, files []GeneratedFile) ([]byte, error) {
	for _, f := range files {
		if cleaned, err := cleanRelPath(f.Path); err == nil && cleaned == "package.json" {
			return patchStaticManifest(appID, f.Content)
		}
	}
	return staticManifest(appID).encode()
}

func hasFile(files []GeneratedFile, rel string) bool {
	for _, f := range files {
		if cleaned, err := cleanRelPath(f.Path); err == nil && cleaned == rel {
			return true
		}
	}
	return false
}

// cleanRelPath normalizes a generated file path and rejects anything that
// would escape the project directory.
func cleanRelPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	cleaned := path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the project directory", p)
	}
	return cleaned, nil
}

func writeFile(proj *Project, rel, content string) error {
	abs := filepath.Join(proj.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return &MaterializationError{AppID: proj.AppID, Op: "mkdir " + rel, Err: err}
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return &MaterializationError{AppID: proj.AppID, Op: "write " + rel, Err: err}
	}
	return nil
}
