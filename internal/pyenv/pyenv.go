// Package pyenv provisions the Python virtual environment used by the
// moviepy render engine: idempotent venv creation plus dependency
// installation from a pinned requirements file.
package pyenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// requirements is written next to the venv on first setup. moviepy 2.x
// removed ImageClip.set_duration, which the generated render scripts call,
// hence the pin.
const requirements = `# Python toolchain for the moviepy render engine.
moviepy<2
pillow
numpy
`

// Pin is the version constraint protecting the moviepy API surface.
const Pin = "moviepy<2"

const venvDir = "venv"

// Env manages a virtual environment rooted at a working directory.
type Env struct {
	root string
}

// New returns an Env rooted at dir. Nothing is created until Ensure runs.
func New(dir string) *Env {
	return &Env{root: dir}
}

// Root returns the working directory holding the venv.
func (e *Env) Root() string { return e.root }

// Python returns the path to the venv interpreter.
func (e *Env) Python() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.root, venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(e.root, venvDir, "bin", "python")
}

func (e *Env) pip() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.root, venvDir, "Scripts", "pip.exe")
	}
	return filepath.Join(e.root, venvDir, "bin", "pip")
}

// RequirementsPath returns the path of the requirements file Ensure writes.
func (e *Env) RequirementsPath() string {
	return filepath.Join(e.root, "requirements.txt")
}

// Exists reports whether the venv interpreter is present.
func (e *Env) Exists() bool {
	_, err := os.Stat(e.Python())
	return err == nil
}

// Ensure creates the venv if missing, writes the requirements file if
// missing, and installs the pinned dependencies. Safe to re-run; the first
// failing step aborts.
func (e *Env) Ensure(ctx context.Context, out io.Writer) error {
	if err := os.MkdirAll(e.root, 0o755); err != nil {
		return fmt.Errorf("unable to create %s: %w", e.root, err)
	}

	if !e.Exists() {
		python3, err := exec.LookPath("python3")
		if err != nil {
			return fmt.Errorf("python3 not found: %w", err)
		}
		log.Info("creating virtual environment", "dir", filepath.Join(e.root, venvDir))
		cmd := exec.CommandContext(ctx, python3, "-m", "venv", venvDir)
		cmd.Dir = e.root
		cmd.Stdout = out
		cmd.Stderr = out
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("venv creation failed: %w", err)
		}
	}

	if _, err := os.Stat(e.RequirementsPath()); os.IsNotExist(err) {
		if err := os.WriteFile(e.RequirementsPath(), []byte(requirements), 0o644); err != nil {
			return fmt.Errorf("unable to write requirements: %w", err)
		}
	}

	log.Info("installing python dependencies", "requirements", e.RequirementsPath())
	cmd := exec.CommandContext(ctx, e.pip(), "install", "-r", e.RequirementsPath())
	cmd.Dir = e.root
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pip install failed: %w", err)
	}
	return nil
}

// InstalledVersion queries pip for the installed version of a package. An
// empty string with nil error means the package is not installed.
func (e *Env) InstalledVersion(ctx context.Context, pkg string) (string, error) {
	if !e.Exists() {
		return "", fmt.Errorf("virtual environment missing at %s", e.root)
	}
	out, err := exec.CommandContext(ctx, e.pip(), "show", pkg).Output()
	if err != nil {
		// pip show exits non-zero for unknown packages.
		return "", nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", nil
}

// PinSatisfied reports whether a resolved moviepy version satisfies the
// moviepy<2 constraint.
func PinSatisfied(version string) bool {
	version = strings.TrimSpace(version)
	if version == "" {
		return false
	}
	major := version
	if i := strings.IndexByte(version, '.'); i >= 0 {
		major = version[:i]
	}
	n, err := strconv.Atoi(major)
	if err != nil {
		return false
	}
	return n < 2
}

// PinPresent reports whether the requirements file carries the pin.
func (e *Env) PinPresent() bool {
	data, err := os.ReadFile(e.RequirementsPath())
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == Pin {
			return true
		}
	}
	return false
}
