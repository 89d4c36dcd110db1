// Package cliutil collects the small pieces of scaffolding the
// raytrace command line shares: version reporting, a usage banner,
// and a leveled stderr logger. Grounded on the teacher's
// internal/cli/common.go, trimmed of the package manager's
// LoadConfig/SaveConfig JSON persistence, which this tool has no use
// for.
package cliutil

import (
	"fmt"
	"os"
	"runtime"
	"time"

	semver "github.com/Masterminds/semver/v3"
)

// rawVersion is bumped by hand on release; it must parse as valid
// semver so BuildInfo can report a normalized version string.
const rawVersion = "0.1.0"

// version is parsed once at package init rather than per call: a
// malformed rawVersion is a build-time mistake, not a runtime
// condition callers should have to handle.
var version = semver.MustParse(rawVersion)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	GoVersion string
	Platform  string
	Arch      string
	BuildTime string
}

// GetBuildInfo returns the current build's BuildInfo.
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   version.String(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
		BuildTime: buildTime,
	}
}

// buildTime is overridden at link time via -ldflags; left empty it is
// simply omitted from PrintVersion's output.
var buildTime string

// PrintVersion writes tool's version banner to stdout.
func PrintVersion(tool string) {
	info := GetBuildInfo()

	fmt.Printf("%s v%s\n", tool, info.Version)
	fmt.Printf("Go version: %s\n", info.GoVersion)
	fmt.Printf("Platform:   %s/%s\n", info.Platform, info.Arch)

	if info.BuildTime != "" {
		fmt.Printf("Built:      %s\n", info.BuildTime)
	}
}

// PrintUsage writes tool's help banner to stdout.
func PrintUsage(tool string) {
	fmt.Printf("%s - a parallel CPU ray tracer\n\n", tool)
	fmt.Println("USAGE:")
	fmt.Printf("    %s [OPTIONS] < scene.txt > image.ppm\n\n", tool)
	fmt.Println("OPTIONS:")
	fmt.Println("    -j, --jobs N      worker count (default: hardware parallelism)")
	fmt.Println("    --mem N           arena size in kilobytes (default: 640)")
	fmt.Println("    --width N         image width in pixels (default: 800)")
	fmt.Println("    --height N        image height in pixels (default: 600)")
	fmt.Println("    --watch PATH      re-render PATH on every write, until interrupted")
	fmt.Println("    --serve ADDR      serve POST /render over HTTP/3 at ADDR")
	fmt.Println("    -v, --verbose     enable info-level logging on stderr")
	fmt.Println("    --version         print version information and exit")
	fmt.Println("    -h, --help        print this message and exit")
}

// ExitWithError prints a formatted error to stderr and exits with
// status 1.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}

// ExitWithCode prints msg to stderr, unless empty, and exits with
// code.
func ExitWithCode(code int, msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}

	os.Exit(code)
}

// Logger is a minimal leveled logger over stderr. Info is silent
// unless Verbose is set; Error always prints.
type Logger struct {
	Verbose bool
}

// NewLogger returns a Logger with the given verbosity.
func NewLogger(verbose bool) *Logger {
	return &Logger{Verbose: verbose}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05.000")
}

// Info logs at info level; a no-op unless l.Verbose.
func (l *Logger) Info(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}

	fmt.Fprintf(os.Stderr, "[INFO  %s] %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}

// Error logs at error level unconditionally.
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR %s] %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}
