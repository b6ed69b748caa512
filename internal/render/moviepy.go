package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fablecast/fablecast/internal/pyenv"
)

// renderScript is the moviepy driver. It reads a JSON manifest so the
// script itself never changes per job. The set_duration calls are the
// moviepy 1.x API, which is why the environment pins moviepy<2.
const renderScript = `import json
import sys

from moviepy.editor import AudioFileClip, ColorClip, ImageClip, concatenate_videoclips


def main():
    with open(sys.argv[1]) as f:
        job = json.load(f)

    size = tuple(job["size"])
    if job.get("smoke"):
        clip = ColorClip(size=size, color=(255, 0, 0), duration=job["seconds"])
        clip.write_videofile(job["out"], fps=job["fps"])
        return

    zoom = job["zoom"]
    clips = []
    for scene in job["scenes"]:
        clip = ImageClip(scene["image"]).set_duration(scene["seconds"])
        if scene.get("audio"):
            audio = AudioFileClip(scene["audio"])
            clip = clip.set_duration(max(scene["seconds"], audio.duration))
            clip = clip.set_audio(audio)
        clip = clip.resize(size)
        length = clip.duration
        clip = clip.resize(lambda t, d=length: 1 + (zoom - 1) * (t / d))
        clips.append(clip)

    final = concatenate_videoclips(clips, method="compose")
    final.write_videofile(job["out"], fps=job["fps"], codec="libx264",
                          audio_codec="aac", threads=job["threads"],
                          preset=job["preset"])
    for clip in clips:
        clip.close()
    final.close()


if __name__ == "__main__":
    main()
`

type moviepyJob struct {
	Out     string         `json:"out"`
	Size    [2]int         `json:"size"`
	FPS     int            `json:"fps"`
	Threads int            `json:"threads,omitempty"`
	Preset  string         `json:"preset,omitempty"`
	Zoom    float64        `json:"zoom,omitempty"`
	Smoke   bool           `json:"smoke,omitempty"`
	Seconds float64        `json:"seconds,omitempty"`
	Scenes  []moviepyScene `json:"scenes,omitempty"`
}

type moviepyScene struct {
	Image   string  `json:"image"`
	Audio   string  `json:"audio,omitempty"`
	Seconds float64 `json:"seconds"`
}

// MoviePy renders through the provisioned Python environment, driving
// the same moviepy pipeline the render script has always used.
type MoviePy struct {
	env     *pyenv.Env
	fps     int
	threads int
	preset  string
	zoom    float64
	timeout time.Duration
}

// NewMoviePy returns the engine after checking the environment is
// usable: the venv must exist and the requirements must carry the pin.
func NewMoviePy(cfg Config, env *pyenv.Env) (*MoviePy, error) {
	cfg = cfg.withDefaults()
	if env == nil || !env.Exists() {
		return nil, ErrVenvMissing
	}
	if !env.PinPresent() {
		return nil, ErrPinMissing
	}
	return &MoviePy{
		env:     env,
		fps:     cfg.FPS,
		threads: cfg.Threads,
		preset:  cfg.Preset,
		zoom:    cfg.Zoom,
		timeout: cfg.Timeout,
	}, nil
}

// Name returns the engine name.
func (m *MoviePy) Name() string { return EngineMoviePy }

// Render assembles the manifest and hands it to the driver script.
func (m *MoviePy) Render(ctx context.Context, clips []Clip, platform Platform, outPath string) error {
	if len(clips) == 0 {
		return ErrNoClips
	}

	scenes := make([]moviepyScene, len(clips))
	for i, clip := range clips {
		image, err := filepath.Abs(clip.Image)
		if err != nil {
			return err
		}
		audio := clip.Audio
		if audio != "" {
			if audio, err = filepath.Abs(audio); err != nil {
				return err
			}
		}
		scenes[i] = moviepyScene{Image: image, Audio: audio, Seconds: clip.Duration}
	}

	tmp, err := filepath.Abs(tempOutput(outPath))
	if err != nil {
		return err
	}
	job := moviepyJob{
		Out:     tmp,
		Size:    [2]int{platform.Width, platform.Height},
		FPS:     m.fps,
		Threads: m.threads,
		Preset:  m.preset,
		Zoom:    m.zoom,
		Scenes:  scenes,
	}
	if err := m.run(ctx, job); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return os.Rename(tmp, outPath)
}

// Smoke writes the red self-test clip, mirroring the ffmpeg engine.
func (m *MoviePy) Smoke(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, "smoke.mp4")
	tmp, err := filepath.Abs(tempOutput(out))
	if err != nil {
		return "", err
	}
	job := moviepyJob{
		Out:     tmp,
		Size:    [2]int{smokeWidth, smokeHeight},
		FPS:     smokeFPS,
		Smoke:   true,
		Seconds: smokeSeconds,
	}
	if err := m.run(ctx, job); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return "", err
	}
	return out, os.Rename(tmp, out)
}

// run writes the script and manifest to a scratch dir and executes the
// venv interpreter on them.
func (m *MoviePy) run(ctx context.Context, job moviepyJob) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(job.Out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	work, err := os.MkdirTemp("", "fablecast-moviepy-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(work) //nolint:errcheck

	scriptPath := filepath.Join(work, "render_job.py")
	if err := os.WriteFile(scriptPath, []byte(renderScript), 0o644); err != nil {
		return fmt.Errorf("write render script: %w", err)
	}

	manifest, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(work, "render_job.json")
	if err := os.WriteFile(manifestPath, manifest, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return runCommand(ctx, work, m.env.Python(), scriptPath, manifestPath)
}
