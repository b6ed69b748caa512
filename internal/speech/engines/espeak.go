package engines

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/speech"
)

// espeak-ng words-per-minute bounds.
const (
	espeakMinRate = 80
	espeakMaxRate = 450
)

func init() {
	Register(speech.EngineEspeak, func(cfg speech.Config) (speech.Engine, error) {
		return NewEspeak(cfg)
	})
}

// Espeak synthesizes through espeak-ng. Quality is robotic next to
// piper, but the binary is a package install away on any distro, so it
// backs up the chain.
type Espeak struct {
	mu     sync.Mutex
	path   string
	voice  string
	rate   int
	speed  float64
	closed bool
}

// NewEspeak builds an espeak engine from configuration.
func NewEspeak(cfg speech.Config) (*Espeak, error) {
	e := &Espeak{
		voice: cfg.Espeak.Voice,
		rate:  cfg.Espeak.Rate,
		speed: speech.ClampSpeed(cfg.Speed),
	}
	if e.voice == "" {
		e.voice = bootstrap.DefaultEspeakVoice
	}
	if e.rate == 0 {
		e.rate = speech.DefaultEspeakConfig().Rate
	}
	if path, ok := bootstrap.FindEspeak(); ok {
		e.path = path
	}
	return e, nil
}

// Name returns "espeak".
func (e *Espeak) Name() string { return speech.EngineEspeak }

// Available reports whether an espeak binary was found.
func (e *Espeak) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && e.path != ""
}

// SetVoice selects the espeak voice, e.g. "en" or "en-us".
func (e *Espeak) SetVoice(voice string) error {
	if voice == "" {
		return speech.ErrVoiceNotFound
	}
	// Piper model paths occasionally reach every engine in the chain;
	// they are not espeak voices.
	if strings.HasSuffix(voice, ".onnx") {
		return fmt.Errorf("%w: %s is a piper model", speech.ErrVoiceNotFound, voice)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voice = voice
	return nil
}

// SetSpeed sets the speaking rate multiplier.
func (e *Espeak) SetSpeed(speed float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speech.ClampSpeed(speed)
	return nil
}

// Synthesize runs espeak-ng with the text on stdin and decodes the WAV
// it streams to stdout.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*speech.Audio, error) {
	e.mu.Lock()
	path, voice, rate := e.path, e.voice, e.effectiveRate()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, speech.ErrEngineClosed
	}
	if path == "" {
		return nil, speech.NewEngineError(speech.EngineEspeak, "synthesize", speech.ErrEngineNotAvailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}

	cmd := exec.CommandContext(ctx, path,
		"--stdout",
		"--stdin",
		"-v", voice,
		"-s", strconv.Itoa(rate),
	)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, speech.NewEngineError(speech.EngineEspeak, "synthesize", ctx.Err())
		}
		return nil, speech.NewEngineError(speech.EngineEspeak, "synthesize",
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	audio, err := speech.DecodeWAV(stdout.Bytes())
	if err != nil {
		return nil, speech.NewEngineError(speech.EngineEspeak, "decode", err)
	}
	return audio, nil
}

// Close marks the engine unusable.
func (e *Espeak) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// effectiveRate folds the speed multiplier into words per minute.
// Caller holds the lock.
func (e *Espeak) effectiveRate() int {
	rate := int(float64(e.rate) * e.speed)
	if rate < espeakMinRate {
		return espeakMinRate
	}
	if rate > espeakMaxRate {
		return espeakMaxRate
	}
	return rate
}
