package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/fablecast/fablecast/internal/cache"
	"github.com/fablecast/fablecast/internal/illustrate"
	"github.com/fablecast/fablecast/internal/pyenv"
	"github.com/fablecast/fablecast/internal/render"
	"github.com/fablecast/fablecast/internal/speech"
	"github.com/fablecast/fablecast/internal/speech/engines"
	"github.com/fablecast/fablecast/internal/story"
	"github.com/fablecast/fablecast/internal/studio"
	"github.com/fablecast/fablecast/server"
)

func voicesDir() string {
	return expandPath(viper.GetString("voices_dir"))
}

func venvRoot() string {
	return expandPath(viper.GetString("venv_dir"))
}

// loadSpeechConfig merges the process environment (PIPER_PATH,
// PIPER_VOICE, ESPEAK_VOICE and the FABLECAST_* knobs) with config
// file and flag values.
func loadSpeechConfig(engine string) (speech.Config, error) {
	cfg, err := env.ParseAs[speech.Config]()
	if err != nil {
		return cfg, fmt.Errorf("parsing speech environment: %w", err)
	}
	if engine != "" {
		cfg.Engine = engine
	}
	if v := viper.GetFloat64("tts.speed"); v != 0 {
		cfg.Speed = v
	}
	cfg.Piper.VoicesDir = voicesDir()
	return cfg, cfg.Validate()
}

func loadArtConfig() (illustrate.Config, error) {
	cfg, err := env.ParseAs[illustrate.Config]()
	if err != nil {
		return cfg, fmt.Errorf("parsing art environment: %w", err)
	}
	if v := viper.GetString("art.engine"); v != "" {
		cfg.Engine = v
	}
	if v := viper.GetString("art.sd.api"); v != "" {
		cfg.SD.API = v
	}
	return cfg, cfg.Validate()
}

func loadRenderConfig() (render.Config, error) {
	cfg, err := env.ParseAs[render.Config]()
	if err != nil {
		return cfg, fmt.Errorf("parsing render environment: %w", err)
	}
	if v := viper.GetString("render.engine"); v != "" {
		cfg.Engine = v
	}
	return cfg, nil
}

// openCache opens the two-tier synthesis cache; a cache failure only
// costs performance, so it degrades to nil with a warning.
func openCache() *cache.Cache {
	cfg, err := env.ParseAs[cache.Config]()
	if err != nil {
		log.Warn("cache environment unreadable, running uncached", "err", err)
		return nil
	}
	if cfg.Dir == "" {
		cfg.Dir = cache.DefaultConfig().Dir
	}
	c, err := cache.New(cfg)
	if err != nil {
		log.Warn("cache unavailable, running uncached", "err", err)
		return nil
	}
	return c
}

// buildOllama returns the configured client, or nil when the engine is
// pinned to rules and a client would never be used.
func buildOllama() *story.Ollama {
	return story.NewOllama(
		viper.GetString("story.ollama.api"),
		viper.GetString("story.ollama.model"),
	)
}

// buildSynthesizer constructs the narration chain for an engine
// preference and optional voice.
func buildSynthesizer(engine, voice string, store speech.Store) (*speech.Synthesizer, error) {
	cfg, err := loadSpeechConfig(engine)
	if err != nil {
		return nil, err
	}
	chain, err := engines.Chain(cfg)
	if err != nil {
		return nil, err
	}
	synth := speech.NewSynthesizer(chain...)
	if store != nil {
		synth.WithCache(store)
	}
	if voice != "" {
		synth.SetVoice(voice)
	}
	synth.SetSpeed(cfg.Speed)
	return synth, nil
}

// buildProducer assembles the full pipeline. The cleanup function
// releases engines and the cache.
func buildProducer(engine, voice string) (*studio.Producer, func(), error) {
	store := openCache()
	cleanupCache := func() {
		if store != nil {
			memory, disk := store.Stats()
			server.RecordCacheBytes(memory.Size, disk.Size)
			if err := store.Close(); err != nil {
				log.Debug("closing cache", "err", err)
			}
		}
	}

	var speechStore speech.Store
	if store != nil {
		speechStore = store
	}
	synth, err := buildSynthesizer(engine, voice, speechStore)
	if err != nil {
		cleanupCache()
		return nil, nil, err
	}

	artCfg, err := loadArtConfig()
	if err != nil {
		cleanupCache()
		return nil, nil, err
	}
	art, err := illustrate.New(artCfg)
	if err != nil {
		cleanupCache()
		return nil, nil, err
	}
	if store != nil {
		art.WithCache(store)
	}

	renderCfg, err := loadRenderConfig()
	if err != nil {
		cleanupCache()
		return nil, nil, err
	}
	renderer, err := render.New(renderCfg, pyenv.New(venvRoot()))
	if err != nil {
		cleanupCache()
		return nil, nil, err
	}

	assets, err := ensureDir(assetsFlag)
	if err != nil {
		cleanupCache()
		return nil, nil, err
	}

	producer := &studio.Producer{
		Story:     buildOllama(),
		Synth:     synth,
		Art:       art,
		Renderer:  renderer,
		AssetsDir: assets,
	}
	cleanup := func() {
		if err := synth.Close(); err != nil {
			log.Debug("closing synthesizer", "err", err)
		}
		cleanupCache()
	}
	return producer, cleanup, nil
}
