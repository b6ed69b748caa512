//go:build nocgo
// +build nocgo

package audio

import (
	"context"

	"github.com/fablecast/fablecast/internal/speech"
)

// Player is a stub for builds without cgo audio support.
type Player struct{}

// NewPlayer always fails in nocgo builds.
func NewPlayer(sampleRate, channels int) (*Player, error) {
	return nil, ErrUnavailable
}

// Play always fails in nocgo builds.
func (p *Player) Play(ctx context.Context, a *speech.Audio) error {
	return ErrUnavailable
}

// Close is a no-op.
func (p *Player) Close() error { return nil }
