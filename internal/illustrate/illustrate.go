package illustrate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Engine names.
const (
	EngineSD   = "sd"
	EngineCard = "card"
	EngineAuto = "auto"
)

// Errors returned by illustrators.
var (
	// ErrNotConfigured means the SD engine has no API address.
	ErrNotConfigured = errors.New("stable diffusion api not configured")
	// ErrNoImage means the service answered without any image data.
	ErrNoImage = errors.New("no image in response")
	// ErrAllFailed means every illustrator in the chain failed.
	ErrAllFailed = errors.New("all illustrators failed")
)

// Illustrator produces one piece of scene art at the requested size.
type Illustrator interface {
	Name() string
	Available(ctx context.Context) bool
	Illustrate(ctx context.Context, prompt string, width, height int) (image.Image, error)
}

// Config selects and tunes the art engines.
type Config struct {
	Engine string   `yaml:"engine" env:"FABLECAST_ART_ENGINE" envDefault:"auto"`
	SD     SDConfig `yaml:"sd"`
}

// SDConfig points at a Stable Diffusion WebUI instance. An empty API
// address disables the engine.
type SDConfig struct {
	API      string        `yaml:"api" env:"SD_API"`
	Steps    int           `yaml:"steps" env:"FABLECAST_SD_STEPS" envDefault:"25"`
	Sampler  string        `yaml:"sampler" env:"FABLECAST_SD_SAMPLER" envDefault:"Euler a"`
	CFGScale float64       `yaml:"cfg_scale" env:"FABLECAST_SD_CFG" envDefault:"6.5"`
	Timeout  time.Duration `yaml:"timeout" env:"FABLECAST_SD_TIMEOUT" envDefault:"180s"`
}

// DefaultConfig returns the stock art configuration.
func DefaultConfig() Config {
	return Config{
		Engine: EngineAuto,
		SD:     DefaultSDConfig(),
	}
}

// DefaultSDConfig returns the generation parameters the WebUI is called
// with. The API address stays empty until configured.
func DefaultSDConfig() SDConfig {
	return SDConfig{
		Steps:    25,
		Sampler:  "Euler a",
		CFGScale: 6.5,
		Timeout:  180 * time.Second,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineSD, EngineCard, EngineAuto, "":
	default:
		return fmt.Errorf("unknown art engine %q", c.Engine)
	}
	if c.Engine == EngineSD && c.SD.API == "" {
		return fmt.Errorf("art engine %q requires an api address", EngineSD)
	}
	if c.SD.Steps < 0 || c.SD.Steps > 150 {
		return fmt.Errorf("sd steps must be between 0 and 150, got %d", c.SD.Steps)
	}
	if c.SD.CFGScale < 0 || c.SD.CFGScale > 30 {
		return fmt.Errorf("sd cfg scale must be between 0 and 30, got %v", c.SD.CFGScale)
	}
	return nil
}

// Store is the cache the chain reads and writes. Art is stored PNG
// encoded so entries stay self-describing.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// Chain walks illustrators in order until one produces art. The card
// renderer at the end of an auto chain means a chain as a whole does
// not fail unless every member does.
type Chain struct {
	illustrators []Illustrator
	store        Store
}

// New builds the chain the configuration asks for. Naming an engine
// explicitly makes its failures the caller's problem; auto degrades.
func New(cfg Config) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Engine {
	case EngineSD:
		return NewChain(NewSD(cfg.SD)), nil
	case EngineCard:
		return NewChain(NewCard()), nil
	case EngineAuto, "":
		if cfg.SD.API == "" {
			return NewChain(NewCard()), nil
		}
		return NewChain(NewSD(cfg.SD), NewCard()), nil
	}
	return nil, fmt.Errorf("unknown art engine %q", cfg.Engine)
}

// NewChain builds a chain over the given illustrators. Order matters;
// earlier illustrators are preferred.
func NewChain(illustrators ...Illustrator) *Chain {
	return &Chain{illustrators: illustrators}
}

// WithCache attaches a cache store.
func (c *Chain) WithCache(store Store) *Chain {
	c.store = store
	return c
}

// Names returns the illustrator names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.illustrators))
	for i, il := range c.illustrators {
		names[i] = il.Name()
	}
	return names
}

// Name identifies the chain by its preferred member.
func (c *Chain) Name() string {
	if len(c.illustrators) == 1 {
		return c.illustrators[0].Name()
	}
	return EngineAuto
}

// Available reports whether any member could produce art right now.
func (c *Chain) Available(ctx context.Context) bool {
	for _, il := range c.illustrators {
		if il.Available(ctx) {
			return true
		}
	}
	return false
}

// Illustrate produces art for the prompt, walking the chain until a
// member succeeds. A cached result short-circuits the chain.
func (c *Chain) Illustrate(ctx context.Context, prompt string, width, height int) (image.Image, error) {
	if len(c.illustrators) == 0 {
		return nil, ErrAllFailed
	}

	key := artKey(prompt, width, height)
	if c.store != nil {
		if data, ok := c.store.Get(key); ok {
			img, err := png.Decode(bytes.NewReader(data))
			if err == nil {
				return img, nil
			}
			log.Warn("discarding corrupt cached art", "key", key, "err", err)
		}
	}

	var lastErr error
	for _, il := range c.illustrators {
		img, err := il.Illustrate(ctx, prompt, width, height)
		if err == nil {
			c.cachePut(key, img)
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn("illustrator failed", "illustrator", il.Name(), "err", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

func (c *Chain) cachePut(key string, img image.Image) {
	if c.store == nil {
		return
	}
	data, err := EncodePNG(img)
	if err != nil {
		return
	}
	if err := c.store.Put(key, data); err != nil {
		log.Debug("art cache write failed", "key", key, "err", err)
	}
}

// artKey addresses cached art by prompt and dimensions.
func artKey(prompt string, width, height int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%dx%d", prompt, width, height)
	return "art-" + hex.EncodeToString(h.Sum(nil))
}

// EncodePNG renders an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// CaptionFor derives the card caption from an art prompt: the first
// comma-separated segment, capped at 80 characters.
func CaptionFor(prompt string) string {
	caption := prompt
	if i := strings.IndexByte(caption, ','); i >= 0 {
		caption = caption[:i]
	}
	caption = strings.TrimSpace(caption)
	if runes := []rune(caption); len(runes) > 80 {
		caption = string(runes[:80])
	}
	return caption
}
