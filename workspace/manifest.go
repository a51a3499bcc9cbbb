// ABOUTME: Patches a caller-supplied package.json so it cannot fight the chosen toolchain.
// ABOUTME: Forces the vite build script, strips conflicting bundlers, logs every patch.
package workspace

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
)

// conflictingDeps are toolchains that would shadow or break the vite build
// if the caller's manifest declares them.
var conflictingDeps = []string{
	"react-scripts",
	"webpack",
	"webpack-cli",
	"webpack-dev-server",
	"parcel",
	"next",
	"gatsby",
}

// requiredDeps are merged into the caller's manifest when missing. The
// build cannot run without them regardless of what the caller declared.
var requiredDeps = map[string]string{
	"react":     "^18.3.1",
	"react-dom": "^18.3.1",
}

var requiredDevDeps = map[string]string{
	"@vitejs/plugin-react": "^4.3.1",
	"vite":                 "^5.4.0",
}

// patchCallerManifest rewrites the caller's package.json content so the
// project builds with the scaffolded toolchain. Every change is logged.
// A manifest that is not valid JSON is rejected; the caller's unpatched
// manifest never reaches disk.
func patchCallerManifest(appID string, raw string) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("caller manifest is not valid JSON: %w", err)
	}

	scripts, _ := m["scripts"].(map[string]any)
	if scripts == nil {
		scripts = map[string]any{}
	}
	if got, _ := scripts["build"].(string); got != "vite build" {
		log.Printf("workspace app=%s manifest patch: scripts.build %q -> %q", appID, got, "vite build")
		scripts["build"] = "vite build"
	}
	m["scripts"] = scripts

	for _, section := range []string{"dependencies", "devDependencies"} {
		deps, _ := m[section].(map[string]any)
		if deps == nil {
			continue
		}
		for _, name := range conflictingDeps {
			if _, ok := deps[name]; ok {
				log.Printf("workspace app=%s manifest patch: drop %s.%s (conflicts with vite)", appID, section, name)
				delete(deps, name)
			}
		}
		m[section] = deps
	}

	deps, _ := m["dependencies"].(map[string]any)
	if deps == nil {
		deps = map[string]any{}
	}
	for _, name := range sortedKeys(requiredDeps) {
		if _, ok := deps[name]; !ok {
			log.Printf("workspace app=%s manifest patch: add dependencies.%s %s", appID, name, requiredDeps[name])
			deps[name] = requiredDeps[name]
		}
	}
	m["dependencies"] = deps

	devDeps, _ := m["devDependencies"].(map[string]any)
	if devDeps == nil {
		devDeps = map[string]any{}
	}
	for _, name := range sortedKeys(requiredDevDeps) {
		if _, ok := devDeps[name]; !ok {
			log.Printf("workspace app=%s manifest patch: add devDependencies.%s %s", appID, name, requiredDevDeps[name])
			devDeps[name] = requiredDevDeps[name]
		}
	}
	m["devDependencies"] = devDeps

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// patchStaticManifest rewrites a caller manifest for a static project:
// the start script must invoke the static server, everything else the
// caller declared is preserved. Every change is logged.
func patchStaticManifest(appID string, raw string) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("caller manifest is not valid JSON: %w", err)
	}

	scripts, _ := m["scripts"].(map[string]any)
	if scripts == nil {
		scripts = map[string]any{}
	}
	if got, _ := scripts["start"].(string); got != "npx serve ." {
		log.Printf("workspace app=%s manifest patch: scripts.start %q -> %q", appID, got, "npx serve .")
		scripts["start"] = "npx serve ."
	}
	m["scripts"] = scripts

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
