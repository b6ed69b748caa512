package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/fablecast/fablecast/internal/pyenv"
)

// Engine names.
const (
	EngineFFmpeg  = "ffmpeg"
	EngineMoviePy = "moviepy"
)

// Errors returned by the render engines.
var (
	// ErrNoClips means a render was requested with an empty storyboard.
	ErrNoClips = errors.New("no scenes to render")
	// ErrFFmpegNotFound means the ffmpeg toolchain is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg toolchain not found")
	// ErrVenvMissing means the Python environment has not been provisioned.
	ErrVenvMissing = errors.New("python environment not provisioned")
	// ErrPinMissing means the requirements file lost the moviepy pin.
	ErrPinMissing = errors.New("requirements file is missing the " + pyenv.Pin + " pin")
)

// Smoke clip parameters, small enough to finish in a breath.
const (
	smokeWidth   = 320
	smokeHeight  = 240
	smokeSeconds = 2
	smokeFPS     = 24
)

// Encoder defaults.
const (
	DefaultFPS     = 30
	DefaultThreads = 4
	DefaultPreset  = "medium"
	DefaultZoom    = 1.05
)

var presets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
}

// Config selects and tunes the render engine.
type Config struct {
	Engine  string  `yaml:"engine" env:"FABLECAST_RENDER_ENGINE" envDefault:"ffmpeg"`
	FPS     int     `yaml:"fps" env:"FABLECAST_RENDER_FPS" envDefault:"30"`
	Threads int     `yaml:"threads" env:"FABLECAST_RENDER_THREADS" envDefault:"4"`
	Preset  string  `yaml:"preset" env:"FABLECAST_RENDER_PRESET" envDefault:"medium"`
	Zoom    float64 `yaml:"zoom" env:"FABLECAST_RENDER_ZOOM" envDefault:"1.05"`
	// FFmpeg overrides the binary looked up on PATH.
	FFmpeg string `yaml:"ffmpeg" env:"FABLECAST_FFMPEG"`
	// Timeout bounds a single engine invocation.
	Timeout time.Duration `yaml:"timeout" env:"FABLECAST_RENDER_TIMEOUT" envDefault:"15m"`
}

// DefaultConfig returns the stock render configuration.
func DefaultConfig() Config {
	return Config{
		Engine:  EngineFFmpeg,
		FPS:     DefaultFPS,
		Threads: DefaultThreads,
		Preset:  DefaultPreset,
		Zoom:    DefaultZoom,
		Timeout: 15 * time.Minute,
	}
}

// withDefaults fills the stock values into zeroed fields so partial
// configurations stay usable.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FPS == 0 {
		c.FPS = def.FPS
	}
	if c.Threads == 0 {
		c.Threads = def.Threads
	}
	if c.Preset == "" {
		c.Preset = def.Preset
	}
	if c.Zoom == 0 {
		c.Zoom = def.Zoom
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineFFmpeg, EngineMoviePy, "":
	default:
		return fmt.Errorf("unknown render engine %q", c.Engine)
	}
	if c.FPS < 1 || c.FPS > 120 {
		return fmt.Errorf("fps must be between 1 and 120, got %d", c.FPS)
	}
	if c.Threads < 1 || c.Threads > 64 {
		return fmt.Errorf("threads must be between 1 and 64, got %d", c.Threads)
	}
	if !presets[c.Preset] {
		return fmt.Errorf("unknown x264 preset %q", c.Preset)
	}
	if c.Zoom < 1.0 || c.Zoom > 2.0 {
		return fmt.Errorf("zoom must be between 1.0 and 2.0, got %v", c.Zoom)
	}
	return nil
}

// Platform is one output target: a resolution and the suffix stamped
// onto the file name.
type Platform struct {
	Name   string
	Width  int
	Height int
	Suffix string
}

// Platforms lists the supported targets in presentation order.
var Platforms = []Platform{
	{Name: "ig", Width: 1080, Height: 1920, Suffix: "IG_9x16"},
	{Name: "yt", Width: 1920, Height: 1080, Suffix: "YT_16x9"},
}

// PlatformFor resolves a platform by name or common alias.
func PlatformFor(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ig", "instagram", "reel", "reels":
		return Platforms[0], nil
	case "yt", "youtube":
		return Platforms[1], nil
	}
	return Platform{}, fmt.Errorf("unknown platform %q (use ig or yt)", name)
}

// ParsePlatforms resolves a list of names, deduplicating while keeping
// order. An empty list means every platform.
func ParsePlatforms(names []string) ([]Platform, error) {
	if len(names) == 0 {
		return Platforms, nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		p, err := PlatformFor(name)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}

// OutputName builds the video file name for a title on a platform.
func OutputName(title string, p Platform) string {
	return fmt.Sprintf("%s_%s.mp4", slug.Make(title), p.Suffix)
}

// Clip is one scene's assets on disk. Duration is the minimum seconds
// on screen; the narration stretches the scene when it runs longer.
type Clip struct {
	Image    string
	Audio    string
	Duration float64
}

// Engine assembles clips into a video file.
type Engine interface {
	Name() string
	// Render writes the assembled video to outPath atomically.
	Render(ctx context.Context, clips []Clip, platform Platform, outPath string) error
	// Smoke writes a tiny self-test clip under dir and returns its path.
	Smoke(ctx context.Context, dir string) (string, error)
}

// New builds the configured engine, failing fast when its tooling is
// missing.
func New(cfg Config, venv *pyenv.Env) (Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Engine {
	case EngineMoviePy:
		return NewMoviePy(cfg, venv)
	default:
		return NewFFmpeg(cfg)
	}
}

// tempOutput returns a hidden scratch name next to path, keeping the
// extension so muxers can infer the container.
func tempOutput(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ".mp4")+".part.mp4")
}
