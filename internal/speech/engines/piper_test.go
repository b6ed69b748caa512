package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/speech"
)

func writeVoice(t *testing.T, dir, name string, withSidecar bool, rate int) string {
	t.Helper()
	model := filepath.Join(dir, name)
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if withSidecar {
		sidecar := `{"audio":{"sample_rate":` + strconv.Itoa(rate) + `}}`
		if err := os.WriteFile(model+".json", []byte(sidecar), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return model
}

func TestFindModelPrefersStockVoice(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "aaa_first.onnx", false, 0)
	stock := writeVoice(t, dir, bootstrap.DefaultModelFile, true, 16000)

	model, sidecar := findModel(dir)
	if model != stock {
		t.Errorf("model = %q, want stock %q", model, stock)
	}
	if sidecar != stock+".json" {
		t.Errorf("sidecar = %q, want %q", sidecar, stock+".json")
	}
}

func TestFindModelFallsBackToAnyVoice(t *testing.T) {
	dir := t.TempDir()
	only := writeVoice(t, dir, "de_DE-thorsten-low.onnx", true, 22050)

	model, sidecar := findModel(dir)
	if model != only {
		t.Errorf("model = %q, want %q", model, only)
	}
	if sidecar != only+".json" {
		t.Errorf("sidecar = %q, want %q", sidecar, only+".json")
	}
}

func TestFindModelSkipsModelsWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "aaa_first.onnx", false, 0)
	writeVoice(t, dir, bootstrap.DefaultModelFile, false, 0)
	complete := writeVoice(t, dir, "de_DE-thorsten-low.onnx", true, 22050)

	model, sidecar := findModel(dir)
	if model != complete {
		t.Errorf("model = %q, want the sidecar-complete %q", model, complete)
	}
	if sidecar != complete+".json" {
		t.Errorf("sidecar = %q, want %q", sidecar, complete+".json")
	}

	dir = t.TempDir()
	writeVoice(t, dir, "en_GB-alba-medium.onnx", false, 0)
	if model, _ := findModel(dir); model != "" {
		t.Errorf("model = %q, want empty when no sidecar exists", model)
	}
}

func TestFindModelEmptyDir(t *testing.T) {
	if model, _ := findModel(t.TempDir()); model != "" {
		t.Errorf("model = %q, want empty", model)
	}
	if model, _ := findModel(""); model != "" {
		t.Errorf("model for empty dir = %q, want empty", model)
	}
}

func TestPiperSetVoiceResolution(t *testing.T) {
	dir := t.TempDir()
	model := writeVoice(t, dir, "en_US-amy-low.onnx", true, 16000)

	cfg := speech.DefaultConfig()
	cfg.Piper.VoicesDir = dir
	p, err := NewPiper(cfg)
	if err != nil {
		t.Fatalf("NewPiper: %v", err)
	}

	tests := []struct {
		name  string
		voice string
		want  string
	}{
		{"full path", model, model},
		{"bare name", "en_US-amy-low", model},
		{"name with extension", "en_US-amy-low.onnx", model},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.SetVoice(tt.voice); err != nil {
				t.Fatalf("SetVoice(%q): %v", tt.voice, err)
			}
			if got := p.Model(); got != tt.want {
				t.Errorf("Model = %q, want %q", got, tt.want)
			}
			if p.sampleRate != 16000 {
				t.Errorf("sampleRate = %d, want 16000 from sidecar", p.sampleRate)
			}
		})
	}

	if err := p.SetVoice("nope"); !errors.Is(err, speech.ErrVoiceNotFound) {
		t.Errorf("SetVoice(nope) = %v, want ErrVoiceNotFound", err)
	}
}

func TestPiperSampleRateDefaultsWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	writeVoice(t, dir, "en_US-amy-low.onnx", false, 0)

	cfg := speech.DefaultConfig()
	cfg.Piper.VoicesDir = dir
	p, err := NewPiper(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.sampleRate != defaultSampleRate {
		t.Errorf("sampleRate = %d, want default %d", p.sampleRate, defaultSampleRate)
	}
}

func TestPiperUnavailableWithoutModel(t *testing.T) {
	cfg := speech.DefaultConfig()
	cfg.Piper.Path = filepath.Join(t.TempDir(), "piper")
	cfg.Piper.VoicesDir = t.TempDir()
	p, err := NewPiper(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Available() {
		t.Error("engine claims availability with no binary and no model")
	}

	_, err = p.Synthesize(context.Background(), "hi")
	if !errors.Is(err, speech.ErrEngineNotAvailable) {
		t.Errorf("Synthesize = %v, want ErrEngineNotAvailable", err)
	}
}

func TestPiperClosed(t *testing.T) {
	p, err := NewPiper(speech.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Synthesize(context.Background(), "hi"); !errors.Is(err, speech.ErrEngineClosed) {
		t.Errorf("Synthesize after Close = %v, want ErrEngineClosed", err)
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "no error output"},
		{"one\ntwo\n", "two"},
		{"only", "only"},
		{"msg\n\n  \n", "msg"},
	}
	for _, tt := range tests {
		if got := lastLine(tt.in); got != tt.want {
			t.Errorf("lastLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPiperSynthesize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping piper subprocess test in short mode")
	}
	if _, ok := bootstrap.FindPiper(); !ok {
		t.Skip("piper binary not installed")
	}

	cfg := speech.DefaultConfig()
	cfg.Piper.VoicesDir = "../../../voices"
	p, err := NewPiper(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Available() {
		t.Skip("no piper voice model installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	audio, err := p.Synthesize(ctx, "Hello from the test suite.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.Empty() {
		t.Error("piper produced no audio")
	}
	if audio.Duration() < 200*time.Millisecond {
		t.Errorf("audio suspiciously short: %v", audio.Duration())
	}
}
