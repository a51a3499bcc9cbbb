// ABOUTME: Deterministic healing of unresolved local module imports in failed builds.
// ABOUTME: Fixed grammar, one pass over all matches, placeholder components; never loops.
package builder

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ErrNotHealable reports that the build error text matched no recognized
// pattern. The caller must not retry the build.
var ErrNotHealable = errors.New("build failure is not healable")

// The two error shapes this healer recognizes, and nothing else. New
// patterns are added here as deterministic, test-covered cases only:
//
//	Could not resolve "./Widget" from "src/App.jsx"   (rollup)
//	Failed to resolve import "./Widget" from "src/App.jsx"   (vite)
//
// Both single and double quoting are accepted; the verb is matched
// case-insensitively.
var healPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)could not resolve ["']([^"']+)["'] from ["']([^"']+)["']`),
	regexp.MustCompile(`(?i)failed to resolve import ["']([^"']+)["'] from ["']([^"']+)["']`),
}

// sourceExtensions are extensions the bundler resolves directly. A healed
// path without one of these gets ".jsx" appended, since the generated
// ecosystem is component-based.
var sourceExtensions = map[string]bool{
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".mjs":  true,
	".cjs":  true,
	".css":  true,
	".json": true,
	".svg":  true,
}

// Heal scans errText for unresolved local module references and writes a
// placeholder component for each missing target, all in one pass. It
// returns the number of files created. ErrNotHealable means no pattern
// matched at all; a zero count with nil error means every referenced
// target already existed, so a rebuild would fail the same way.
func Heal(root, errText string) (int, error) {
	type ref struct {
		specifier string
		importer  string
	}
	var refs []ref
	for _, pattern := range healPatterns {
		for _, match := range pattern.FindAllStringSubmatch(errText, -1) {
			refs = append(refs, ref{specifier: match[1], importer: match[2]})
		}
	}
	if len(refs) == 0 {
		return 0, ErrNotHealable
	}

	healed := 0
	seen := map[string]bool{}
	for _, r := range refs {
		// Only relative specifiers are healable. Bare package names are
		// missing dependencies, not missing local files.
		if !strings.HasPrefix(r.specifier, "./") && !strings.HasPrefix(r.specifier, "../") {
			log.Printf("builder heal skip specifier=%q (not a relative import)", r.specifier)
			continue
		}

		rel := filepath.Join(filepath.Dir(filepath.FromSlash(r.importer)), filepath.FromSlash(r.specifier))
		if !sourceExtensions[strings.ToLower(filepath.Ext(rel))] {
			rel += ".jsx"
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true

		abs := filepath.Join(root, rel)
		if _, err := os.Stat(abs); err == nil {
			// The file exists, so the resolution failure has another
			// cause. Nothing for this healer to do.
			log.Printf("builder heal skip path=%s (already exists)", rel)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return healed, fmt.Errorf("heal %s: %w", rel, err)
		}
		name := componentName(rel)
		if err := os.WriteFile(abs, []byte(placeholderComponent(name)), 0o644); err != nil {
			return healed, fmt.Errorf("heal %s: %w", rel, err)
		}
		log.Printf("builder heal created=%s component=%s (imported by %s)", rel, name, r.importer)
		healed++
	}
	return healed, nil
}

// placeholderComponent renders a visibly-labeled placeholder block so a
// healed preview shows where the missing module was.
func placeholderComponent(name string) string {
	return fmt.Sprintf(`export default function %s() {
  return (
    <div style={{ padding: '1rem', border: '2px dashed #999', borderRadius: '8px', color: '#666' }}>
      %s placeholder
    </div>
  );
}
`, name, name)
}

// componentName derives a valid JSX component identifier from the healed
// file's base name: "nav-bar.jsx" becomes "NavBar".
func componentName(rel string) string {
	base := filepath.Base(rel)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	upperNext := true
	for _, r := range base {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "Placeholder" + name
	}
	return name
}
