// ABOUTME: Project-kind classification from generated file paths and content.
// ABOUTME: The boundary is a heuristic, so the classifier is an injectable function.
package workspace

import (
	"path"
	"strings"
)

// Classifier decides the project kind for a set of generated files.
// DefaultClassify is used when a Materializer has none set; callers with
// better upstream knowledge can substitute their own.
type Classifier func(files []GeneratedFile) Kind

// componentExtensions are source extensions that mark a component project
// on sight, no content inspection needed.
var componentExtensions = map[string]bool{
	".jsx": true,
	".tsx": true,
}

// componentMarkers are content substrings that mark a component project
// even in plain .js files.
var componentMarkers = []string{
	"from 'react'",
	`from "react"`,
	"require('react')",
	`require("react")`,
	"React.createElement",
}

// DefaultClassify returns KindComponent if any file looks like React
// component source, otherwise KindStatic.
func DefaultClassify(files []GeneratedFile) Kind {
	for _, f := range files {
		if componentExtensions[strings.ToLower(path.Ext(f.Path))] {
			return KindComponent
		}
	}
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Path))
		if ext != ".js" && ext != ".ts" {
			continue
		}
		for _, marker := range componentMarkers {
			if strings.Contains(f.Content, marker) {
				return KindComponent
			}
		}
	}
	return KindStatic
}
