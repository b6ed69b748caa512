package speech

import (
	"context"
	"fmt"
	"time"
)

// Engine names accepted by Config.Engine and the --tts flag.
const (
	EnginePiper  = "piper"
	EngineEspeak = "espeak"
	EngineMock   = "mock"
	EngineAuto   = "auto"
)

// Speed bounds shared by every engine. Values outside the range are
// clamped, matching what piper itself tolerates.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Engine converts plain text into audio. Implementations live in the
// engines subpackage and are registered by name.
type Engine interface {
	// Name returns the engine identifier used in configuration.
	Name() string

	// Available reports whether the engine can synthesize right now,
	// e.g. whether its binary and voice model are present.
	Available() bool

	// Synthesize converts text to audio. The context bounds the
	// underlying subprocess or network call.
	Synthesize(ctx context.Context, text string) (*Audio, error)

	// SetVoice selects the voice for subsequent synthesis.
	SetVoice(voice string) error

	// SetSpeed sets the speaking rate multiplier (1.0 = normal).
	SetSpeed(speed float64) error

	// Close releases any resources held by the engine.
	Close() error
}

// Audio is synthesized sound, normalized to signed 16-bit little-endian
// PCM regardless of which engine produced it.
type Audio struct {
	Data       []byte // Raw PCM samples (s16le)
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels
}

// Duration returns the playing time of the audio.
func (a *Audio) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	frames := len(a.Data) / (2 * a.Channels)
	return time.Duration(frames) * time.Second / time.Duration(a.SampleRate)
}

// Empty reports whether the audio carries no samples.
func (a *Audio) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// Config is the text-to-speech configuration.
type Config struct {
	Engine  string       `yaml:"engine" env:"FABLECAST_TTS_ENGINE" envDefault:"auto"`
	Speed   float64      `yaml:"speed" env:"FABLECAST_TTS_SPEED" envDefault:"1.0"`
	Volume  float64      `yaml:"volume" env:"FABLECAST_TTS_VOLUME" envDefault:"1.0"`
	Timeout time.Duration `yaml:"timeout" env:"FABLECAST_TTS_TIMEOUT" envDefault:"30s"`
	Piper   PiperConfig  `yaml:"piper"`
	Espeak  EspeakConfig `yaml:"espeak"`
}

// PiperConfig holds piper-specific settings. Path and Model bind the
// environment variables exported by setup.
type PiperConfig struct {
	Path      string `yaml:"path" env:"PIPER_PATH"`
	Model     string `yaml:"model" env:"PIPER_VOICE"`
	VoicesDir string `yaml:"voices_dir" env:"FABLECAST_VOICES_DIR" envDefault:"voices"`
}

// EspeakConfig holds espeak-ng settings.
type EspeakConfig struct {
	Voice string `yaml:"voice" env:"ESPEAK_VOICE" envDefault:"en"`
	// Rate is words per minute; espeak's own default is 175.
	Rate int `yaml:"rate" env:"FABLECAST_ESPEAK_RATE" envDefault:"175"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Engine:  EngineAuto,
		Speed:   1.0,
		Volume:  1.0,
		Timeout: 30 * time.Second,
		Piper:   DefaultPiperConfig(),
		Espeak:  DefaultEspeakConfig(),
	}
}

// DefaultPiperConfig returns piper defaults. Path and Model are left
// empty so engine discovery and the environment can fill them in.
func DefaultPiperConfig() PiperConfig {
	return PiperConfig{
		VoicesDir: "voices",
	}
}

// DefaultEspeakConfig returns espeak defaults.
func DefaultEspeakConfig() EspeakConfig {
	return EspeakConfig{
		Voice: "en",
		Rate:  175,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	switch c.Engine {
	case EnginePiper, EngineEspeak, EngineMock, EngineAuto, "":
	default:
		return fmt.Errorf("unknown tts engine %q", c.Engine)
	}
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("speed must be between %.1f and %.1f", MinSpeed, MaxSpeed)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if err := c.Espeak.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks espeak settings.
func (c EspeakConfig) Validate() error {
	if c.Rate < 80 || c.Rate > 450 {
		return fmt.Errorf("espeak rate must be between 80 and 450 words per minute")
	}
	return nil
}

// ClampSpeed folds a speed multiplier into the supported range.
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}
