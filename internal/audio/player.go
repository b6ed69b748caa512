//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/fablecast/fablecast/internal/speech"
)

// Player owns the process-wide audio context. The device format is
// fixed at construction, so feed it audio from one engine.
type Player struct {
	ctx        *oto.Context
	sampleRate int
	channels   int
}

// NewPlayer opens the audio device for the given PCM format.
func NewPlayer(sampleRate, channels int) (*Player, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSizeFor(runtime.GOOS),
	}
	octx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	<-ready
	log.Debug("audio device ready",
		"sample_rate", sampleRate,
		"channels", channels,
		"buffer", opts.BufferSize)
	return &Player{ctx: octx, sampleRate: sampleRate, channels: channels}, nil
}

// Play blocks until the audio finishes or the context is cancelled.
func (p *Player) Play(ctx context.Context, a *speech.Audio) error {
	if a.Empty() {
		return speech.ErrInvalidAudio
	}
	if a.SampleRate != p.sampleRate || a.Channels != p.channels {
		return fmt.Errorf("%w: device is %d Hz %dch, audio is %d Hz %dch",
			speech.ErrInvalidAudio, p.sampleRate, p.channels, a.SampleRate, a.Channels)
	}

	player := p.ctx.NewPlayer(bytes.NewReader(a.Data))
	defer player.Close() //nolint:errcheck
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close suspends the audio context. oto contexts cannot be torn down,
// so a closed player must not be reused.
func (p *Player) Close() error {
	return p.ctx.Suspend()
}
