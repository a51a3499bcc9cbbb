// ABOUTME: Help display for the greenroom CLI with grouped flags and examples.
// ABOUTME: Provides printHelp for usage output in the same shape across all modes.
package main

import (
	"fmt"
	"io"
)

// printHelp writes a formatted help message to w, including usage
// patterns, grouped flags, and examples.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "greenroom %s — ephemeral build & preview orchestrator\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  greenroom <dir>                     Build and preview a directory of generated files")
	fmt.Fprintln(w, "  greenroom -server                   Start the HTTP control API")
	fmt.Fprintln(w, "  greenroom -server -tui              Control API plus live dashboard")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Preview Flags:")
	fmt.Fprintln(w, "  -proxy                Front the preview with a reverse proxy")
	fmt.Fprintln(w, "  -tui                  Show the terminal dashboard")
	fmt.Fprintln(w, "  -root <dir>           Temp root for materialized projects")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server Flags:")
	fmt.Fprintln(w, "  -server               Start HTTP control API mode")
	fmt.Fprintln(w, "  -listen <addr>        Listen address (default: 127.0.0.1:2390)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  -config <file>        YAML config file")
	fmt.Fprintln(w, "  -history <path>       SQLite attempt log ('off' to disable)")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  greenroom ./generated-app")
	fmt.Fprintln(w, "  greenroom -proxy -tui ./generated-app")
	fmt.Fprintln(w, "  greenroom -server -listen 0.0.0.0:2390")
	fmt.Fprintln(w, "  greenroom -server -history off")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  GREENROOM_ROOT        Temp root override")
	fmt.Fprintln(w, "  GREENROOM_LISTEN      Listen address override")
	fmt.Fprintln(w, "  GREENROOM_HISTORY     Attempt-log path override")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Docs: https://github.com/2389-research/greenroom")
}
