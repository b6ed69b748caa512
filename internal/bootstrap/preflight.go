package bootstrap

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Check is the outcome of one preflight probe.
type Check struct {
	Name   string
	OK     bool
	Detail string
	// Fatal marks checks the pipeline cannot run without.
	Fatal bool
}

const probeTimeout = 5 * time.Second

// Preflight probes the external tools the pipeline depends on. python3 and
// ffmpeg are required; the narration engines are optional because either one
// can stand in for the other.
func Preflight(ctx context.Context) []Check {
	return []Check{
		probeTool(ctx, "python3", "--version", true),
		probeTool(ctx, "ffmpeg", "-version", true),
		probeEspeak(ctx),
		probePiper(ctx),
	}
}

// FatalFailure reports whether any required check failed.
func FatalFailure(checks []Check) bool {
	for _, c := range checks {
		if c.Fatal && !c.OK {
			return true
		}
	}
	return false
}

func probeTool(ctx context.Context, name, versionArg string, required bool) Check {
	path, err := exec.LookPath(name)
	if err != nil {
		return Check{Name: name, OK: false, Fatal: required, Detail: "not found on PATH"}
	}
	return Check{Name: name, OK: true, Fatal: required, Detail: versionOf(ctx, path, versionArg)}
}

func probeEspeak(ctx context.Context) Check {
	path, ok := FindEspeak()
	if !ok {
		return Check{Name: "espeak", OK: false, Detail: "not found (narration falls back to piper)"}
	}
	return Check{Name: "espeak", OK: true, Detail: versionOf(ctx, path, "--version")}
}

func probePiper(ctx context.Context) Check {
	path, ok := FindPiper()
	if !ok {
		return Check{Name: "piper", OK: false, Detail: "not found (optional, best narration quality)"}
	}
	return Check{Name: "piper", OK: true, Detail: path}
}

// versionOf runs a binary's version flag and returns the first output line.
func versionOf(ctx context.Context, path, arg string) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, arg).CombinedOutput()
	if err != nil && len(out) == 0 {
		return path
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return path
	}
	return line
}
