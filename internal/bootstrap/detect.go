package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	homedir "github.com/mitchellh/go-homedir"
)

// piperLocations are checked after PATH lookup fails. Piper's release
// tarballs are commonly unpacked into one of these.
var piperLocations = []string{
	"/usr/local/bin/piper",
	"/usr/bin/piper",
	"/opt/piper/piper",
}

// espeakNames lists the narrator binaries in preference order.
var espeakNames = []string{"espeak-ng", "espeak"}

// FindPiper locates the piper executable via PATH, then well-known install
// locations.
func FindPiper() (string, bool) {
	if path, err := exec.LookPath("piper"); err == nil {
		return path, true
	}
	if home, err := homedir.Dir(); err == nil {
		for _, p := range []string{
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		} {
			if fileExists(p) {
				return p, true
			}
		}
	}
	for _, p := range piperLocations {
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

// FindEspeak returns the first espeak-family binary on PATH.
func FindEspeak() (string, bool) {
	for _, name := range espeakNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// SystemPackages are the OS packages the studio shells out to.
var SystemPackages = []string{"python3", "python3-venv", "python3-pip", "ffmpeg", "espeak-ng"}

// SudoPrefix returns the command prefix for package installation: nothing
// when already root, sudo when available, an error otherwise.
func SudoPrefix() ([]string, error) {
	if os.Geteuid() == 0 {
		return nil, nil
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return []string{"sudo"}, nil
	}
	return nil, errors.New("not running as root and sudo is not installed")
}

// InstallPackages installs SystemPackages through apt-get, escalating with
// sudo when needed. The update and install steps run in order and the first
// failure aborts.
func InstallPackages(ctx context.Context, out io.Writer) error {
	aptGet, err := exec.LookPath("apt-get")
	if err != nil {
		return fmt.Errorf("apt-get not found; install %s with your package manager", strings.Join(SystemPackages, ", "))
	}
	prefix, err := SudoPrefix()
	if err != nil {
		return err
	}

	log.Info("installing system packages", "packages", strings.Join(SystemPackages, " "))

	steps := [][]string{
		append(append([]string{}, prefix...), aptGet, "update"),
		append(append(append([]string{}, prefix...), aptGet, "install", "-y"), SystemPackages...),
	}
	for _, argv := range steps {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdout = out
		cmd.Stderr = out
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s failed: %w", strings.Join(argv, " "), err)
		}
	}
	return nil
}
