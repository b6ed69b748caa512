package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/pyenv"
	"github.com/fablecast/fablecast/internal/voices"
)

var (
	setupInstallPackages bool
	setupDownloadVoice   string
	setupSkipVenv        bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare the machine for rendering",
	Long: paragraph(
		fmt.Sprintf("\n%s the working directories, checks the required tools, optionally installs the system packages, and builds the Python environment for the moviepy render engine.", keyword("Sets up")),
	),
	Example: paragraph("fablecast setup\n" +
		"fablecast setup --install-packages\n" +
		"fablecast setup --download-voice en_US-amy-low"),
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()

	if setupInstallPackages {
		fmt.Fprintf(out, "Installing %s...\n", keyword(strings.Join(bootstrap.SystemPackages, " ")))
		if err := bootstrap.InstallPackages(ctx, out); err != nil {
			return fmt.Errorf("installing system packages: %w", err)
		}
	}

	checks := bootstrap.Preflight(ctx)
	for _, c := range checks {
		fmt.Fprintf(out, "  %s %s", mark(c.OK), c.Name)
		if c.Detail != "" {
			fmt.Fprintf(out, " (%s)", subtleStyle.Render(c.Detail))
		}
		fmt.Fprintln(out)
	}
	if bootstrap.FatalFailure(checks) {
		hint := "rerun with --install-packages"
		if prefix, err := bootstrap.SudoPrefix(); err == nil && len(prefix) > 0 {
			hint += " (will use " + prefix[0] + ")"
		}
		return fmt.Errorf("required tools are missing; %s or install them yourself", hint)
	}

	assets, err := ensureDir(assetsFlag)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s outputs in %s\n", mark(true), keyword(assets))

	vdir, err := ensureDir(voicesDir())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s voices in %s\n", mark(true), keyword(vdir))

	env := bootstrap.ApplyDefaults(vdir)
	for _, v := range env.Vars() {
		if v.Defaulted {
			fmt.Fprintf(out, "  %s %s defaulted to %s\n", mark(true), v.Name, keyword(v.Value))
		}
	}

	if !setupSkipVenv {
		venv := pyenv.New(venvRoot())
		if venv.Exists() && venv.PinPresent() {
			fmt.Fprintf(out, "  %s python environment ready (%s)\n", mark(true), subtleStyle.Render(venv.Root()))
		} else {
			fmt.Fprintf(out, "Building the python environment in %s...\n", keyword(venv.Root()))
			if err := venv.Ensure(ctx, out); err != nil {
				return fmt.Errorf("building python environment: %w", err)
			}
			fmt.Fprintf(out, "  %s python environment ready\n", mark(true))
		}
	}

	if setupDownloadVoice != "" {
		if err := downloadVoice(ctx, out, vdir, setupDownloadVoice); err != nil {
			return err
		}
	}

	if err := ensureConfigFile(); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Fprintf(out, "\n%s Run %s to check the full pipeline.\n", mark(true), keyword("fablecast doctor"))
	return nil
}

func downloadVoice(ctx context.Context, out io.Writer, dir, name string) error {
	if v := voices.ByName(mustScan(dir), name); v != nil {
		fmt.Fprintf(out, "  %s voice %s already present (%s)\n", mark(true), keyword(name), v.DisplaySize())
		return nil
	}
	fmt.Fprintf(out, "Downloading voice %s...\n", keyword(name))
	var last int64
	path, err := voices.Download(ctx, dir, name, func(downloaded, total int64) {
		// One line per ~10 MB keeps plain terminals readable.
		if downloaded-last < 10<<20 && downloaded != total {
			return
		}
		last = downloaded
		if total > 0 {
			fmt.Fprintf(out, "  %s / %s\n", humanize.IBytes(uint64(downloaded)), humanize.IBytes(uint64(total)))
		} else {
			fmt.Fprintf(out, "  %s\n", humanize.IBytes(uint64(downloaded)))
		}
	})
	if err != nil {
		return fmt.Errorf("downloading voice %s: %w", name, err)
	}
	fmt.Fprintf(out, "  %s saved %s\n", mark(true), keyword(path))
	return nil
}

func mustScan(dir string) []voices.Voice {
	catalog, err := voices.Scan(dir)
	if err != nil {
		return nil
	}
	return catalog
}

func init() {
	setupCmd.Flags().BoolVar(&setupInstallPackages, "install-packages", false, "apt-get the required system packages first")
	setupCmd.Flags().StringVar(&setupDownloadVoice, "download-voice", "", "fetch a piper voice by name (e.g. en_US-amy-low)")
	setupCmd.Flags().BoolVar(&setupSkipVenv, "skip-venv", false, "skip the python environment for the moviepy engine")
}
