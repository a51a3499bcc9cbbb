// ABOUTME: Toolchain scaffolding templates written into materialized projects.
// ABOUTME: Component projects get a Vite/React setup with dev-session features disabled.
package workspace

import (
	"encoding/json"
	"fmt"
)

// viteConfigJS disables hot reload and file watching. A preview is a
// one-shot build, never a dev session.
const viteConfigJS = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: {
    hmr: false,
    watch: null,
  },
  build: {
    sourcemap: false,
  },
})
`

const indexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Preview</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.jsx"></script>
  </body>
</html>
`

// mainJSX mounts the generated root component. Vite resolves the
// extensionless './App' import against .jsx and .tsx alike.
const mainJSX = `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App'

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`

const fallbackHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <title>Preview</title>
  </head>
  <body>
    <p>No HTML entry point was generated for this preview.</p>
  </body>
</html>
`

// manifest holds the package.json fields the scaffold writes. Caller
// manifests are patched as raw maps instead, so unknown fields survive.
type manifest struct {
	Name            string            `json:"name"`
	Private         bool              `json:"private"`
	Version         string            `json:"version"`
	Type            string            `json:"type,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// componentManifest returns the default Vite/React manifest for appID.
func componentManifest(appID string) manifest {
	return manifest{
		Name:    fmt.Sprintf("preview-%s", appID),
		Private: true,
		Version: "0.0.0",
		Type:    "module",
		Scripts: map[string]string{
			"build": "vite build",
		},
		Dependencies: map[string]string{
			"react":     "^18.3.1",
			"react-dom": "^18.3.1",
		},
		DevDependencies: map[string]string{
			"@vitejs/plugin-react": "^4.3.1",
			"vite":                 "^5.4.0",
		},
	}
}

// staticManifest returns the manifest for a static project. Its only job
// is to document how the project is served; there is no build step.
func staticManifest(appID string) manifest {
	return manifest{
		Name:    fmt.Sprintf("preview-%s", appID),
		Private: true,
		Version: "0.0.0",
		Scripts: map[string]string{
			"start": "npx serve .",
		},
	}
}

func (m manifest) encode() ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
