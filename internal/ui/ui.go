// Package ui renders CLI output for search results, items, and stats.
// Interactive terminals get a styled rendering, pipes and CI get plain
// text.
package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Config configures the renderer.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// NewConfig builds a config for the given writer, disabling color for
// non-terminals, NO_COLOR, and CI environments.
func NewConfig(output io.Writer) Config {
	return Config{
		Output:  output,
		NoColor: !IsTTY(output) || DetectNoColor() || DetectCI(),
	}
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
