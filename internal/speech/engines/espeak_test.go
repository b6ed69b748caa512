package engines

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/speech"
)

func TestEspeakEffectiveRate(t *testing.T) {
	tests := []struct {
		rate  int
		speed float64
		want  int
	}{
		{175, 1.0, 175},
		{175, 2.0, 350},
		{175, 0.5, 87},
		{100, 0.5, 80},  // clamped low
		{300, 2.0, 450}, // clamped high
	}
	for _, tt := range tests {
		e := &Espeak{rate: tt.rate, speed: tt.speed}
		if got := e.effectiveRate(); got != tt.want {
			t.Errorf("rate %d at %.1fx = %d, want %d", tt.rate, tt.speed, got, tt.want)
		}
	}
}

func TestEspeakSetVoice(t *testing.T) {
	e, err := NewEspeak(speech.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetVoice("en-us"); err != nil {
		t.Errorf("SetVoice(en-us): %v", err)
	}
	if err := e.SetVoice(""); !errors.Is(err, speech.ErrVoiceNotFound) {
		t.Errorf("SetVoice(empty) = %v, want ErrVoiceNotFound", err)
	}
	if err := e.SetVoice("voices/en_US-amy-low.onnx"); !errors.Is(err, speech.ErrVoiceNotFound) {
		t.Errorf("SetVoice(onnx) = %v, want ErrVoiceNotFound", err)
	}
}

func TestEspeakDefaults(t *testing.T) {
	cfg := speech.DefaultConfig()
	cfg.Espeak.Voice = ""
	cfg.Espeak.Rate = 0
	e, err := NewEspeak(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if e.voice != bootstrap.DefaultEspeakVoice {
		t.Errorf("voice = %q, want %q", e.voice, bootstrap.DefaultEspeakVoice)
	}
	if e.rate != 175 {
		t.Errorf("rate = %d, want 175", e.rate)
	}
}

func TestEspeakClosed(t *testing.T) {
	e, err := NewEspeak(speech.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if e.Available() {
		t.Error("closed engine still available")
	}
	if _, err := e.Synthesize(context.Background(), "hi"); !errors.Is(err, speech.ErrEngineClosed) {
		t.Errorf("Synthesize after Close = %v, want ErrEngineClosed", err)
	}
}

func TestEspeakSynthesize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping espeak subprocess test in short mode")
	}
	if _, ok := bootstrap.FindEspeak(); !ok {
		t.Skip("espeak-ng not installed")
	}

	e, err := NewEspeak(speech.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	audio, err := e.Synthesize(ctx, "Hello from the test suite.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.Empty() {
		t.Fatal("espeak produced no audio")
	}
	if audio.SampleRate <= 0 || audio.Channels <= 0 {
		t.Errorf("bad format: %d Hz %d ch", audio.SampleRate, audio.Channels)
	}
	if audio.Duration() < 200*time.Millisecond {
		t.Errorf("audio suspiciously short: %v", audio.Duration())
	}
}
