// Package terminal decides whether log output goes to a person at a terminal
// or to a pipe, a file, or a CI job.
package terminal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ciEnvVars contains common CI environment variables
var ciEnvVars = []string{
	"CI",                     // Generic CI indicator
	"CONTINUOUS_INTEGRATION", // Generic CI indicator
	"GITHUB_ACTIONS",         // GitHub Actions
	"TRAVIS",                 // Travis CI
	"CIRCLECI",               // Circle CI
	"JENKINS_URL",            // Jenkins
	"BUILD_NUMBER",           // Jenkins/TeamCity/etc
	"GITLAB_CI",              // GitLab CI
	"APPVEYOR",               // AppVeyor
	"BUILDKITE",              // Buildkite
	"DRONE",                  // Drone CI
	"TF_BUILD",               // Azure DevOps
}

// DetectorOptions contains options for controlling interactive detection
type DetectorOptions struct {
	ForceInteractive    bool // Force interactive mode regardless of environment
	ForceNonInteractive bool // Force non-interactive mode regardless of environment

	// File is the stream the logs are written to. Defaults to os.Stderr.
	// Stdout is never consulted because the invoke server owns it.
	File *os.File
}

// Detector reports whether the log stream is interactive.
type Detector struct {
	options    DetectorOptions
	lookupEnv  func(string) (string, bool)
	isTerminal func(fd int) bool
}

// NewDetector creates a detector reading the process environment.
func NewDetector(options DetectorOptions) *Detector {
	if options.File == nil {
		options.File = os.Stderr
	}
	return &Detector{
		options:    options,
		lookupEnv:  os.LookupEnv,
		isTerminal: term.IsTerminal,
	}
}

// IsInteractive returns true if the log stream should get the compact,
// human-oriented format.
func (d *Detector) IsInteractive() bool {
	if d.options.ForceInteractive {
		return true
	}
	if d.options.ForceNonInteractive {
		return false
	}
	if d.IsCIEnvironment() {
		return false
	}
	if name, _ := d.lookupEnv("TERM"); name == "dumb" {
		return false
	}
	return d.IsTerminal()
}

// IsTerminal checks if the log stream is connected to a terminal
func (d *Detector) IsTerminal() bool {
	return d.isTerminal(int(d.options.File.Fd()))
}

// IsCIEnvironment checks if the current environment is a CI/CD system
func (d *Detector) IsCIEnvironment() bool {
	for _, envVar := range ciEnvVars {
		value, ok := d.lookupEnv(envVar)
		if !ok || value == "" {
			continue
		}
		// CI=false must not count as CI
		if envVar == "CI" {
			return isCITruthy(value)
		}
		return true
	}
	return false
}

// isCITruthy checks if a CI environment variable value should be considered "true"
func isCITruthy(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	return lower != "false" && lower != "0" && lower != "no"
}
