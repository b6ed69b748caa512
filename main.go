// Package main provides the entry point for the fablecast CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/render"
	"github.com/fablecast/fablecast/internal/story"
	"github.com/fablecast/fablecast/internal/studio"
	"github.com/fablecast/fablecast/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	styleName     string
	themeFlag     string
	moralFlag     string
	ageFlag       int
	minutesFlag   int
	scenesFlag    int
	storyEngine   string
	ttsEngine     string
	voiceFlag     string
	speedFlag     float64
	platformsFlag string
	assetsFlag    string
	boardOut      string
	boardIn       string
	dryRun        bool
	noTUI         bool
	copyOutput    bool

	rootCmd = &cobra.Command{
		Use:   "fablecast [TITLE]",
		Short: "Turn a story idea into narrated short-form videos",
		Long: paragraph(
			fmt.Sprintf("\nTurn a story idea into %s, fully offline: storyboard, narration, scene art, and video assembly.", keyword("narrated kids videos")),
		),
		Example: paragraph("fablecast \"Mina and the Moon Kite\" --moral kindness\n" +
			"fablecast --from-board board.yaml\n" +
			"cat story.txt | fablecast \"Bedtime Story\""),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	styleName = viper.GetString("style")
	assetsFlag = viper.GetString("assets_dir")
	storyEngine = viper.GetString("story.engine")
	ttsEngine = viper.GetString("tts.engine")
	voiceFlag = viper.GetString("tts.voice")

	if !cmd.Flags().Changed("speed") {
		if v := viper.GetFloat64("tts.speed"); v != 0 {
			speedFlag = v
		}
	}
	if speedFlag < 0.5 || speedFlag > 2.0 {
		return fmt.Errorf("speed must be between 0.5 and 2.0, got %v", speedFlag)
	}
	if _, err := render.ParsePlatforms(commaList(platformsFlag)); err != nil {
		return err
	}
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	var title string
	if len(args) > 0 {
		title = args[0]
	}

	board, err := resolveBoard(cmd.Context(), title)
	if err != nil {
		return err
	}

	if dryRun {
		if board == nil {
			return errors.New("nothing to preview: pass a title, --from-board, or pipe a story")
		}
		if boardOut != "" {
			if err := board.Save(boardOut); err != nil {
				return err
			}
		}
		return printMarkdown(os.Stdout, board.Markdown())
	}

	req := studio.Request{Board: board}
	if board == nil {
		if title == "" {
			return errors.New("story title required (or use --from-board / pipe a story)")
		}
		req.Params = paramsFromFlags(title)
		req.StoryEngine = storyEngine
	}
	req.Platforms, _ = render.ParsePlatforms(commaList(platformsFlag))

	return produce(req)
}

// resolveBoard loads or builds a storyboard when one exists ahead of
// the pipeline: --from-board, piped text, or a --dry-run preview.
func resolveBoard(ctx context.Context, title string) (*story.Board, error) {
	if boardIn != "" {
		return story.Load(expandPath(boardIn))
	}

	if piped, err := stdinIsPipe(); err != nil {
		return nil, err
	} else if piped {
		text, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return story.FromText(title, string(text))
	}

	if dryRun {
		if title == "" {
			return nil, errors.New("story title required for a preview")
		}
		return story.Generate(ctx, paramsFromFlags(title), storyEngine, buildOllama())
	}
	return nil, nil
}

func paramsFromFlags(title string) story.Params {
	params := story.DefaultParams()
	params.Title = title
	if themeFlag != "" {
		params.Theme = themeFlag
	}
	if moralFlag != "" {
		params.Moral = moralFlag
	}
	params.Age = ageFlag
	params.Minutes = minutesFlag
	params.Scenes = scenesFlag
	return params
}

// produce runs the pipeline with either the progress TUI or plain
// stderr lines.
func produce(req studio.Request) error {
	// The launcher environment comes first, exactly like the old start
	// script: LANG/ESPEAK_VOICE defaults, piper and model detection.
	bootstrap.ApplyDefaults(voicesDir())

	producer, cleanup, err := buildProducer(ttsEngine, voiceFlag)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	events := make(chan studio.Event, 128)
	var (
		res  *studio.Result
		perr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		res, perr = producer.Produce(ctx, req, events)
	}()

	title := req.Params.Title
	if req.Board != nil {
		title = req.Board.Title
	}
	if useTUI() {
		prog := ui.NewProgram(ui.Config{Title: title}, events, cancel)
		if _, err := prog.Run(); err != nil {
			cancel()
			<-done
			return fmt.Errorf("progress ui: %w", err)
		}
	} else {
		for ev := range events {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n",
				subtleStyle.Render(fmt.Sprintf("[%3.0f%%]", ev.Frac*100)), ev.Stage, ev.Message)
		}
	}
	<-done

	if perr != nil {
		return perr
	}
	return report(res)
}

// report prints the finished outputs and handles --copy and --board.
func report(res *studio.Result) error {
	fmt.Println()
	fmt.Printf("%s %s\n", okStyle.Render("Done!"), subtleStyle.Render(res.Elapsed.Round(time.Second).String()))
	for _, out := range res.Outputs {
		fmt.Printf("  %s %s\n", keyword(out.Platform), out.Path)
	}

	if boardOut != "" {
		if err := res.Board.Save(boardOut); err != nil {
			return err
		}
		fmt.Println("Storyboard written to", boardOut)
	}
	if copyOutput && len(res.Outputs) > 0 {
		if err := clipboard.WriteAll(res.Outputs[0].Path); err != nil {
			log.Warn("could not copy output path", "err", err)
		} else {
			fmt.Println(subtleStyle.Render("First output path copied to clipboard."))
		}
	}
	return nil
}

func useTUI() bool {
	return !noTUI && term.IsTerminal(int(os.Stdout.Fd()))
}

// printMarkdown renders markdown to the terminal through glamour.
func printMarkdown(w io.Writer, md string) error {
	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
			width = tw
			if width > 120 {
				width = 120
			}
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(defaultGlamourStyle(styleName)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	_, err = fmt.Fprint(w, out)
	return err
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	// .env first so config discovery and AutomaticEnv both see it.
	_ = godotenv.Load()
	tryLoadConfigFromDefaultPlaces()

	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&styleName, "style", "s", "auto", "glamour style for storyboard previews")
	rootCmd.Flags().StringVar(&themeFlag, "theme", "", "story theme, e.g. \"sky adventures\"")
	rootCmd.Flags().StringVar(&moralFlag, "moral", "", "story moral (kindness, honesty, sharing, courage, curiosity, or free text)")
	rootCmd.Flags().IntVar(&ageFlag, "age", story.DefaultParams().Age, "target listener age")
	rootCmd.Flags().IntVar(&minutesFlag, "minutes", story.DefaultParams().Minutes, "approximate video length in minutes")
	rootCmd.Flags().IntVar(&scenesFlag, "scenes", story.DefaultParams().Scenes, "number of scenes")
	rootCmd.Flags().StringVar(&storyEngine, "story-engine", "", "story engine (rules, ollama, auto)")
	rootCmd.PersistentFlags().StringVar(&ttsEngine, "tts", "", "narration engine (piper, espeak, mock, auto)")
	rootCmd.PersistentFlags().StringVar(&voiceFlag, "voice", "", "narration voice (piper model name or espeak voice code)")
	rootCmd.PersistentFlags().Float64Var(&speedFlag, "speed", 1.0, "narration speed multiplier (0.5-2.0)")
	rootCmd.Flags().StringVar(&platformsFlag, "platforms", "", "comma-separated targets: ig, yt (default both)")
	rootCmd.Flags().StringVar(&assetsFlag, "assets-dir", "", "directory for rendered outputs")
	rootCmd.Flags().StringVar(&boardOut, "board", "", "also save the storyboard as YAML")
	rootCmd.Flags().StringVar(&boardIn, "from-board", "", "produce from a saved storyboard instead of generating")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the storyboard and stop")
	rootCmd.Flags().BoolVar(&noTUI, "no-tui", false, "plain progress lines instead of the TUI")
	rootCmd.Flags().BoolVar(&copyOutput, "copy", false, "copy the first output path to the clipboard")

	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("assets_dir", rootCmd.Flags().Lookup("assets-dir"))
	_ = viper.BindPFlag("story.engine", rootCmd.Flags().Lookup("story-engine"))
	_ = viper.BindPFlag("tts.engine", rootCmd.PersistentFlags().Lookup("tts"))
	_ = viper.BindPFlag("tts.voice", rootCmd.PersistentFlags().Lookup("voice"))
	_ = viper.BindPFlag("tts.speed", rootCmd.PersistentFlags().Lookup("speed"))

	viper.SetDefault("style", "auto")
	viper.SetDefault("assets_dir", "outputs")
	viper.SetDefault("voices_dir", "voices")
	viper.SetDefault("venv_dir", ".")
	viper.SetDefault("story.engine", story.EngineAuto)
	viper.SetDefault("story.ollama.api", story.DefaultOllamaAPI)
	viper.SetDefault("story.ollama.model", story.DefaultOllamaModel)
	viper.SetDefault("tts.engine", "auto")
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("art.engine", "auto")
	viper.SetDefault("render.engine", render.EngineFFmpeg)

	rootCmd.AddCommand(speakCmd, serveCmd, setupCmd, doctorCmd, voicesCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "fablecast")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "fablecast")}, dirs...)
	}
	if c := os.Getenv("FABLECAST_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("fablecast")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("fablecast")
	viper.AutomaticEnv()

	// The original launcher's variables keep working without the
	// FABLECAST_ prefix.
	_ = viper.BindEnv("story.ollama.api", "OLLAMA_API")
	_ = viper.BindEnv("story.ollama.model", "OLLAMA_MODEL")
	_ = viper.BindEnv("art.sd.api", "SD_API")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "fablecast.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
