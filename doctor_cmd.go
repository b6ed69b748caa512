package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/illustrate"
	"github.com/fablecast/fablecast/internal/pyenv"
	"github.com/fablecast/fablecast/internal/render"
	"github.com/fablecast/fablecast/internal/voices"
)

var doctorRenderTest bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the rendering pipeline",
	Long: paragraph(
		fmt.Sprintf("\n%s every stage of the pipeline: tools, environment variables, voices, the story and art backends, the python environment, cache and disk. Exits non-zero when a required piece is missing.", keyword("Checks")),
	),
	Example: paragraph("fablecast doctor\n" +
		"fablecast doctor --render-test"),
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	fatal := false

	fmt.Fprintf(out, "%s\n", keyword("Tools"))
	checks := bootstrap.Preflight(ctx)
	for _, c := range checks {
		fmt.Fprintf(out, "  %s %s", mark(c.OK), c.Name)
		if c.Detail != "" {
			fmt.Fprintf(out, " (%s)", subtleStyle.Render(c.Detail))
		}
		fmt.Fprintln(out)
	}
	fatal = bootstrap.FatalFailure(checks)

	fmt.Fprintf(out, "\n%s\n", keyword("Environment"))
	env := bootstrap.ApplyDefaults(voicesDir())
	for _, v := range env.Vars() {
		switch {
		case !v.Set:
			fmt.Fprintf(out, "  %s %s unset\n", warnStyle.Render("-"), v.Name)
		case v.Defaulted:
			fmt.Fprintf(out, "  %s %s=%s %s\n", mark(true), v.Name, v.Value, subtleStyle.Render("(defaulted)"))
		default:
			fmt.Fprintf(out, "  %s %s=%s\n", mark(true), v.Name, v.Value)
		}
	}

	fmt.Fprintf(out, "\n%s (%s)\n", keyword("Voices"), subtleStyle.Render(voicesDir()))
	catalog, err := voices.Scan(voicesDir())
	switch {
	case err != nil:
		fmt.Fprintf(out, "  %s %v\n", mark(false), err)
	case len(catalog) == 0:
		fmt.Fprintf(out, "  %s none; try %s\n", warnStyle.Render("-"),
			keyword("fablecast voices get "+strings.TrimSuffix(bootstrap.DefaultModelFile, ".onnx")))
	default:
		def := voices.Default(catalog)
		for _, v := range catalog {
			fmt.Fprintf(out, "  %s %s (%s)", mark(v.HasConfig), v.Name, v.DisplaySize())
			if !v.HasConfig {
				fmt.Fprintf(out, " %s", warnStyle.Render("missing .onnx.json"))
			}
			if def != nil && v.Name == def.Name {
				fmt.Fprintf(out, " %s", subtleStyle.Render("default"))
			}
			fmt.Fprintln(out)
		}
	}

	fmt.Fprintf(out, "\n%s\n", keyword("Backends"))
	ollama := buildOllama()
	fmt.Fprintf(out, "  %s ollama %s %s\n", mark(ollama.Available(ctx)),
		subtleStyle.Render(ollama.API()), subtleStyle.Render("model "+ollama.Model()))
	if api := viper.GetString("art.sd.api"); api != "" {
		sd := illustrate.NewSD(illustrate.SDConfig{API: api})
		fmt.Fprintf(out, "  %s stable diffusion %s\n", mark(sd.Available(ctx)), subtleStyle.Render(api))
	} else {
		fmt.Fprintf(out, "  %s stable diffusion not configured, using card art\n", warnStyle.Render("-"))
	}

	fmt.Fprintf(out, "\n%s (%s)\n", keyword("Python"), subtleStyle.Render(venvRoot()))
	doctorPython(ctx, out)

	fmt.Fprintf(out, "\n%s\n", keyword("Cache"))
	doctorCache(out)

	if free, err := bootstrap.DiskFree(assetsFlag); err == nil {
		fmt.Fprintf(out, "\n%s\n", keyword("Disk"))
		ok := free >= 1<<30
		fmt.Fprintf(out, "  %s %s free under %s\n", mark(ok), humanize.IBytes(free), assetsFlag)
	}

	if doctorRenderTest {
		fmt.Fprintf(out, "\n%s\n", keyword("Render test"))
		if err := doctorRender(ctx, out); err != nil {
			fmt.Fprintf(out, "  %s %v\n", mark(false), err)
			fatal = true
		}
	}

	if fatal {
		return errors.New("pipeline is not ready")
	}
	return nil
}

func doctorPython(ctx context.Context, out io.Writer) {
	venv := pyenv.New(venvRoot())
	if !venv.Exists() {
		fmt.Fprintf(out, "  %s no environment; run %s\n", warnStyle.Render("-"), keyword("fablecast setup"))
		return
	}
	fmt.Fprintf(out, "  %s interpreter %s\n", mark(true), subtleStyle.Render(venv.Python()))
	fmt.Fprintf(out, "  %s %s pinned in requirements\n", mark(venv.PinPresent()), pyenv.Pin)
	version, err := venv.InstalledVersion(ctx, "moviepy")
	if err != nil {
		fmt.Fprintf(out, "  %s moviepy not installed\n", mark(false))
		return
	}
	fmt.Fprintf(out, "  %s moviepy %s satisfies %s\n", mark(pyenv.PinSatisfied(version)), version, pyenv.Pin)
}

func doctorCache(out io.Writer) {
	store := openCache()
	if store == nil {
		fmt.Fprintf(out, "  %s unavailable\n", warnStyle.Render("-"))
		return
	}
	defer store.Close() //nolint:errcheck
	memory, disk := store.Stats()
	fmt.Fprintf(out, "  %s memory %s of %s, %d items\n", mark(true),
		humanize.IBytes(uint64(memory.Size)), humanize.IBytes(uint64(memory.Capacity)), memory.Items)
	fmt.Fprintf(out, "  %s disk %s of %s, %d items\n", mark(true),
		humanize.IBytes(uint64(disk.Size)), humanize.IBytes(uint64(disk.Capacity)), disk.Items)
}

// doctorRender runs the engine's smoke clip in a scratch dir.
func doctorRender(ctx context.Context, out io.Writer) error {
	cfg, err := loadRenderConfig()
	if err != nil {
		return err
	}
	engine, err := render.New(cfg, pyenv.New(venvRoot()))
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "fablecast-doctor-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir) //nolint:errcheck
	path, err := engine.Smoke(ctx, dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s %s produced a %s clip\n", mark(true), engine.Name(), humanize.IBytes(uint64(info.Size())))
	return nil
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorRenderTest, "render-test", false, "render a short smoke clip with the configured engine")
}
