// Package audio plays synthesized narration through the system output
// device. It backs the speak command; the render pipeline writes files
// and never needs a device.
package audio

import (
	"errors"
	"time"
)

// ErrUnavailable means no audio device can be opened, including builds
// compiled with the nocgo tag.
var ErrUnavailable = errors.New("audio playback unavailable")

// bufferSizeFor returns the device buffer for an OS. CoreAudio and
// WASAPI underrun with small buffers; ALSA/Pulse tolerate tighter ones.
func bufferSizeFor(goos string) time.Duration {
	switch goos {
	case "darwin":
		return 100 * time.Millisecond
	case "windows":
		return 80 * time.Millisecond
	case "linux":
		return 50 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}
