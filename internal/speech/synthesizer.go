package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// maxFailures is how many consecutive failures demote an engine for
// the rest of the run.
const maxFailures = 3

// Store is the cache the synthesizer reads and writes. Audio is stored
// WAV-encoded so entries stay self-describing.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// Synthesizer speaks text through an ordered chain of engines,
// demoting engines that keep failing and caching what it produces.
type Synthesizer struct {
	mu       sync.Mutex
	engines  []Engine
	failures []int
	store    Store
	voice    string
	speed    float64
}

// NewSynthesizer builds a synthesizer over the given engine chain.
// Order matters; earlier engines are preferred.
func NewSynthesizer(engines ...Engine) *Synthesizer {
	return &Synthesizer{
		engines:  engines,
		failures: make([]int, len(engines)),
		speed:    1.0,
	}
}

// WithCache attaches a cache store.
func (s *Synthesizer) WithCache(store Store) *Synthesizer {
	s.store = store
	return s
}

// SetVoice forwards the voice to every engine that accepts it.
func (s *Synthesizer) SetVoice(voice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = voice
	for _, e := range s.engines {
		if err := e.SetVoice(voice); err != nil {
			log.Debug("engine rejected voice", "engine", e.Name(), "voice", voice, "err", err)
		}
	}
}

// SetSpeed forwards the clamped speed to every engine.
func (s *Synthesizer) SetSpeed(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = ClampSpeed(speed)
	for _, e := range s.engines {
		if err := e.SetSpeed(s.speed); err != nil {
			log.Debug("engine rejected speed", "engine", e.Name(), "err", err)
		}
	}
}

// Engines returns the names of engines in chain order.
func (s *Synthesizer) Engines() []string {
	names := make([]string, len(s.engines))
	for i, e := range s.engines {
		names[i] = e.Name()
	}
	return names
}

// Synthesize converts text to audio, walking the engine chain until
// one succeeds. A cached result short-circuits the chain.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	text = CleanForSpeech(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.engines) == 0 {
		return nil, ErrNoEngines
	}

	key := s.cacheKey(text)
	if s.store != nil {
		if data, ok := s.store.Get(key); ok {
			audio, err := DecodeWAV(data)
			if err == nil {
				return audio, nil
			}
			log.Warn("discarding corrupt cached audio", "key", key, "err", err)
		}
	}

	var lastErr error
	for i, engine := range s.engines {
		if s.failures[i] >= maxFailures {
			continue
		}
		if !engine.Available() {
			continue
		}

		audio, err := engine.Synthesize(ctx, text)
		if err == nil && !audio.Empty() {
			if s.failures[i] > 0 {
				log.Info("engine recovered", "engine", engine.Name(), "failures", s.failures[i])
				s.failures[i] = 0
			}
			s.cachePut(key, audio)
			return audio, nil
		}

		if err == nil {
			err = ErrSynthesisFailed
		}
		lastErr = NewEngineError(engine.Name(), "synthesize", err)
		if ctx.Err() != nil {
			return nil, lastErr
		}

		s.failures[i]++
		log.Warn("engine failed",
			"engine", engine.Name(),
			"attempt", s.failures[i],
			"max", maxFailures,
			"err", err)
		if s.failures[i] >= maxFailures && i+1 < len(s.engines) {
			log.Warn("demoting engine", "engine", engine.Name(), "next", s.engines[i+1].Name())
		}
	}

	if lastErr == nil {
		return nil, ErrNoEngines
	}
	return nil, fmt.Errorf("%w: %w", ErrAllEnginesFailed, lastErr)
}

// SynthesizeSentences speaks each sentence of the text separately and
// concatenates the audio. Engines keep latency down on short inputs,
// and a mid-text failure only repeats one sentence.
func (s *Synthesizer) SynthesizeSentences(ctx context.Context, text string) (*Audio, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, ErrEmptyText
	}

	var out *Audio
	for _, sentence := range sentences {
		audio, err := s.Synthesize(ctx, sentence)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = &Audio{SampleRate: audio.SampleRate, Channels: audio.Channels}
		}
		if audio.SampleRate != out.SampleRate || audio.Channels != out.Channels {
			return nil, fmt.Errorf("%w: engine changed format mid-story", ErrInvalidAudio)
		}
		out.Data = append(out.Data, audio.Data...)
	}
	return out, nil
}

// Reset clears failure counts so demoted engines get another chance.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.failures {
		s.failures[i] = 0
	}
}

// Close shuts down every engine. The first error wins but all engines
// are still closed.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, e := range s.engines {
		if err := e.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", e.Name(), err)
		}
	}
	return first
}

// cacheKey derives a stable key from everything that shapes the audio.
func (s *Synthesizer) cacheKey(text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%.2f\x00", s.voice, s.speed)
	h.Write([]byte(text))
	return "speech-" + hex.EncodeToString(h.Sum(nil))
}

func (s *Synthesizer) cachePut(key string, audio *Audio) {
	if s.store == nil {
		return
	}
	data, err := EncodeWAV(audio)
	if err != nil {
		return
	}
	if err := s.store.Put(key, data); err != nil {
		log.Debug("audio cache write failed", "key", key, "err", err)
	}
}

// ChainFor resolves an engine preference string into chain order.
// "auto" tries piper, then espeak, then mock.
func ChainFor(engine string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineAuto, "":
		return []string{EnginePiper, EngineEspeak, EngineMock}, nil
	case EnginePiper:
		return []string{EnginePiper}, nil
	case EngineEspeak:
		return []string{EngineEspeak}, nil
	case EngineMock:
		return []string{EngineMock}, nil
	}
	return nil, fmt.Errorf("unknown tts engine %q", engine)
}
