package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/internal/speech"
)

// defaultSampleRate is what piper voices produce unless their sidecar
// config says otherwise.
const defaultSampleRate = 22050

func init() {
	Register(speech.EnginePiper, func(cfg speech.Config) (speech.Engine, error) {
		return NewPiper(cfg)
	})
}

// Piper synthesizes through the piper binary, one subprocess per
// request. Output is raw s16le PCM so no container parsing is needed.
type Piper struct {
	mu         sync.Mutex
	path       string
	model      string
	sidecar    string
	voicesDir  string
	speed      float64
	sampleRate int
	closed     bool
}

// NewPiper builds a piper engine from configuration. An unset binary
// path falls back to the same discovery setup uses, and an unset model
// falls back to scanning the voices directory. Missing pieces are not
// an error here; Available reports them.
func NewPiper(cfg speech.Config) (*Piper, error) {
	p := &Piper{
		path:       cfg.Piper.Path,
		voicesDir:  cfg.Piper.VoicesDir,
		speed:      speech.ClampSpeed(cfg.Speed),
		sampleRate: defaultSampleRate,
	}
	if p.path == "" {
		if found, ok := bootstrap.FindPiper(); ok {
			p.path = found
		}
	}
	if cfg.Piper.Model != "" {
		if err := p.SetVoice(cfg.Piper.Model); err != nil {
			return nil, err
		}
	} else {
		p.model, p.sidecar = findModel(p.voicesDir)
		p.readSampleRate()
	}
	return p, nil
}

// Name returns "piper".
func (p *Piper) Name() string { return speech.EnginePiper }

// Available reports whether both the binary and a voice model exist.
func (p *Piper) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.path == "" || p.model == "" {
		return false
	}
	if _, err := os.Stat(p.path); err != nil {
		return false
	}
	if _, err := os.Stat(p.model); err != nil {
		return false
	}
	return true
}

// SetVoice selects a voice model. Accepts a model path or a bare voice
// name resolved against the voices directory.
func (p *Piper) SetVoice(voice string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	model, err := p.resolveModel(voice)
	if err != nil {
		return err
	}
	p.model = model
	p.sidecar = ""
	if sc := model + ".json"; fileExists(sc) {
		p.sidecar = sc
	} else {
		log.Warn("voice model has no .onnx.json sidecar, piper may refuse it", "model", model)
	}
	p.readSampleRate()
	return nil
}

// SetSpeed sets the speaking rate multiplier.
func (p *Piper) SetSpeed(speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = speech.ClampSpeed(speed)
	return nil
}

// Synthesize runs piper with the text on stdin and collects raw PCM
// from stdout.
func (p *Piper) Synthesize(ctx context.Context, text string) (*speech.Audio, error) {
	p.mu.Lock()
	path, model, sidecar, speed, rate := p.path, p.model, p.sidecar, p.speed, p.sampleRate
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return nil, speech.ErrEngineClosed
	}
	if path == "" || model == "" {
		return nil, speech.NewEngineError(speech.EnginePiper, "synthesize", speech.ErrEngineNotAvailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}

	args := []string{"--model", model, "--output-raw"}
	if sidecar != "" {
		args = append(args, "--config", sidecar)
	}
	// Speed maps to length scale inversely: 2.0x speech is a 0.5
	// length scale.
	if speed != 1.0 {
		args = append(args, "--length-scale", fmt.Sprintf("%.2f", 1.0/speed))
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, speech.NewEngineError(speech.EnginePiper, "pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, speech.NewEngineError(speech.EnginePiper, "start", err)
	}

	var pcm bytes.Buffer
	if _, err := io.Copy(&pcm, stdout); err != nil {
		_ = cmd.Wait()
		return nil, speech.NewEngineError(speech.EnginePiper, "read", err)
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, speech.NewEngineError(speech.EnginePiper, "synthesize", ctx.Err())
		}
		return nil, speech.NewEngineError(speech.EnginePiper, "synthesize",
			fmt.Errorf("%w: %s", err, lastLine(stderr.String())))
	}
	if pcm.Len() == 0 {
		return nil, speech.NewEngineError(speech.EnginePiper, "synthesize", speech.ErrSynthesisFailed)
	}

	return &speech.Audio{
		Data:       pcm.Bytes(),
		SampleRate: rate,
		Channels:   1,
	}, nil
}

// Close marks the engine unusable.
func (p *Piper) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Model returns the resolved voice model path, if any.
func (p *Piper) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// resolveModel turns a voice argument into a model file path.
func (p *Piper) resolveModel(voice string) (string, error) {
	if voice == "" {
		return "", speech.ErrVoiceNotFound
	}
	candidates := []string{voice}
	if !strings.HasSuffix(voice, ".onnx") {
		candidates = append(candidates, voice+".onnx")
	}
	if p.voicesDir != "" {
		candidates = append(candidates,
			filepath.Join(p.voicesDir, voice),
			filepath.Join(p.voicesDir, voice+".onnx"))
	}
	for _, c := range candidates {
		if strings.HasSuffix(c, ".onnx") && fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", speech.ErrVoiceNotFound, voice)
}

// readSampleRate pulls audio.sample_rate from the sidecar config.
// Voices ship a JSON sidecar next to the model; without one the piper
// default applies.
func (p *Piper) readSampleRate() {
	p.sampleRate = defaultSampleRate
	if p.sidecar == "" {
		return
	}
	data, err := os.ReadFile(p.sidecar)
	if err != nil {
		return
	}
	var sc struct {
		Audio struct {
			SampleRate int `json:"sample_rate"`
		} `json:"audio"`
	}
	if err := json.Unmarshal(data, &sc); err == nil && sc.Audio.SampleRate > 0 {
		p.sampleRate = sc.Audio.SampleRate
	}
}

// findModel locates a default voice model. The stock model wins when
// present, otherwise the first .onnx found in the directory. Models
// without their .onnx.json sidecar are never auto-selected; piper
// needs the config to load them.
func findModel(voicesDir string) (model, sidecar string) {
	if voicesDir == "" {
		return "", ""
	}
	stock := filepath.Join(voicesDir, bootstrap.DefaultModelFile)
	if fileExists(stock) && fileExists(stock+".json") {
		return stock, stock + ".json"
	}
	filepath.WalkDir(voicesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".onnx") && fileExists(path+".json") {
			model = path
			return fs.SkipAll
		}
		return nil
	})
	if model == "" {
		return "", ""
	}
	return model, model + ".json"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// lastLine returns the final non-empty stderr line, which is where
// piper puts its error message.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no error output"
}
