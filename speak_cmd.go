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

	"github.com/spf13/cobra"

	"github.com/fablecast/fablecast/internal/audio"
	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/speech"
)

var speakOutFile string

var speakCmd = &cobra.Command{
	Use:   "speak [TEXT]",
	Short: "Synthesize speech for a piece of text",
	Long: paragraph(
		fmt.Sprintf("\n%s a line of text, a file, or stdin through the configured narration engine. Plays through the speakers unless -o writes a WAV file.", keyword("Speak")),
	),
	Example: paragraph("fablecast speak \"Hello little listener\"\n" +
		"fablecast speak --tts espeak -o hello.wav \"Hello\"\n" +
		"cat story.md | fablecast speak"),
	Args: cobra.MaximumNArgs(1),
	RunE: runSpeak,
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, err := speakInput(args)
	if err != nil {
		return err
	}

	bootstrap.ApplyDefaults(voicesDir())

	synth, err := buildSynthesizer(ttsEngine, voiceFlag, nil)
	if err != nil {
		return err
	}
	defer synth.Close() //nolint:errcheck
	synth.SetSpeed(speedFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Markdown is narrated, not read sign-by-sign.
	narration := speech.NewNarrator().Narration(text)
	if narration == "" {
		return errors.New("no speakable text")
	}

	if speakOutFile != "" {
		out, err := synth.SynthesizeSentences(ctx, narration)
		if err != nil {
			return err
		}
		wav, err := speech.EncodeWAV(out)
		if err != nil {
			return err
		}
		if err := os.WriteFile(expandPath(speakOutFile), wav, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", speakOutFile, err)
		}
		fmt.Printf("Wrote %s (%s)\n", speakOutFile, out.Duration().Round(1e8))
		return nil
	}

	return speakAloud(ctx, synth, narration)
}

// speakAloud plays sentence by sentence so audio starts before the
// whole text is synthesized.
func speakAloud(ctx context.Context, synth *speech.Synthesizer, narration string) error {
	var player *audio.Player
	defer func() {
		if player != nil {
			_ = player.Close()
		}
	}()

	for _, sentence := range speech.SplitSentences(narration) {
		out, err := synth.Synthesize(ctx, sentence)
		if err != nil {
			return err
		}
		if player == nil {
			player, err = audio.NewPlayer(out.SampleRate, out.Channels)
			if err != nil {
				return fmt.Errorf("opening audio device: %w", err)
			}
		}
		if err := player.Play(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func speakInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		// Prefer a file when the argument names one.
		if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			return string(data), nil
		}
		return args[0], nil
	}

	if piped, err := stdinIsPipe(); err != nil {
		return "", err
	} else if piped || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", errors.New("no text on stdin")
		}
		return string(data), nil
	}

	return "", errors.New("nothing to speak: pass text, a file, or pipe stdin")
}

func init() {
	speakCmd.Flags().StringVarP(&speakOutFile, "output", "o", "", "write a WAV file instead of playing")
}
