package engines

import (
	"context"
	"strings"
	"sync"

	"github.com/fablecast/fablecast/internal/speech"
)

func init() {
	Register(speech.EngineMock, func(cfg speech.Config) (speech.Engine, error) {
		return NewMock(cfg), nil
	})
}

// Mock generates silence sized to the estimated speaking time. It
// anchors tests and keeps --dry-run runs from needing any binary.
type Mock struct {
	mu        sync.Mutex
	voice     string
	speed     float64
	calls     int
	failWith  error
	available bool
}

// NewMock builds a mock engine.
func NewMock(cfg speech.Config) *Mock {
	speed := cfg.Speed
	if speed == 0 {
		speed = 1.0
	}
	return &Mock{
		voice:     "mock",
		speed:     speech.ClampSpeed(speed),
		available: true,
	}
}

// Name returns "mock".
func (m *Mock) Name() string { return speech.EngineMock }

// Available reports the configured availability.
func (m *Mock) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// SetVoice accepts any voice name.
func (m *Mock) SetVoice(voice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice = voice
	return nil
}

// SetSpeed sets the speaking rate multiplier.
func (m *Mock) SetSpeed(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = speech.ClampSpeed(speed)
	return nil
}

// Synthesize returns silence with the duration the text would take to
// speak.
func (m *Mock) Synthesize(ctx context.Context, text string) (*speech.Audio, error) {
	m.mu.Lock()
	m.calls++
	failWith, speed := m.failWith, m.speed
	m.mu.Unlock()

	if failWith != nil {
		return nil, failWith
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}

	d := speech.EstimateDuration(text, speed)
	samples := int(d.Seconds() * float64(defaultSampleRate))
	if samples < 1 {
		samples = 1
	}
	return &speech.Audio{
		Data:       make([]byte, samples*2),
		SampleRate: defaultSampleRate,
		Channels:   1,
	}, nil
}

// Close marks the engine unavailable.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = false
	return nil
}

// Test controls.

// FailWith makes every Synthesize call return err until cleared with
// a nil err.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Calls returns how many times Synthesize ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
