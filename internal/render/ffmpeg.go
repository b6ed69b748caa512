package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FFmpeg renders by driving the ffmpeg binary directly: one encoded
// clip per scene, joined with the concat demuxer.
type FFmpeg struct {
	bin     string
	probe   string
	fps     int
	threads int
	preset  string
	zoom    float64
	timeout time.Duration
}

// NewFFmpeg locates the toolchain and returns the engine. Both ffmpeg
// and ffprobe must resolve.
func NewFFmpeg(cfg Config) (*FFmpeg, error) {
	cfg = cfg.withDefaults()

	name := cfg.FFmpeg
	if name == "" {
		name = "ffmpeg"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	probe, err := exec.LookPath(ffprobeFor(bin))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}

	return &FFmpeg{
		bin:     bin,
		probe:   probe,
		fps:     cfg.FPS,
		threads: cfg.Threads,
		preset:  cfg.Preset,
		zoom:    cfg.Zoom,
		timeout: cfg.Timeout,
	}, nil
}

// Name returns the engine name.
func (f *FFmpeg) Name() string { return EngineFFmpeg }

// Render encodes every scene, concatenates them, and moves the result
// into place.
func (f *FFmpeg) Render(ctx context.Context, clips []Clip, platform Platform, outPath string) error {
	if len(clips) == 0 {
		return ErrNoClips
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	work, err := os.MkdirTemp(filepath.Dir(outPath), ".render-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(work) //nolint:errcheck

	var list strings.Builder
	for i, clip := range clips {
		seconds, err := f.clipSeconds(ctx, clip)
		if err != nil {
			return fmt.Errorf("scene %d: %w", i+1, err)
		}
		part := fmt.Sprintf("scene_%02d.mp4", i+1)
		if err := f.renderScene(ctx, clip, seconds, platform, filepath.Join(work, part)); err != nil {
			return fmt.Errorf("scene %d: %w", i+1, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", part)
	}

	listPath := filepath.Join(work, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	tmp, err := filepath.Abs(tempOutput(outPath))
	if err != nil {
		return err
	}
	// Scene clips share encoder settings, so the join is a remux.
	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", "concat.txt",
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4", tmp,
	}
	if err := runCommand(ctx, work, f.bin, args...); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return os.Rename(tmp, outPath)
}

// clipSeconds resolves a scene's on-screen time: its floor stretched to
// cover the narration.
func (f *FFmpeg) clipSeconds(ctx context.Context, clip Clip) (float64, error) {
	seconds := clip.Duration
	if clip.Audio != "" {
		audio, err := f.ProbeDuration(ctx, clip.Audio)
		if err != nil {
			return 0, err
		}
		if audio > seconds {
			seconds = audio
		}
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("scene has no duration")
	}
	return seconds, nil
}

// renderScene encodes one still into a Ken Burns clip with its
// narration attached.
func (f *FFmpeg) renderScene(ctx context.Context, clip Clip, seconds float64, p Platform, outPath string) error {
	frames := int(math.Round(seconds * float64(f.fps)))
	if frames < 1 {
		frames = 1
	}
	filter := fmt.Sprintf(
		"zoompan=z='1+%.4f*on/%d':d=%d:x='iw/2-(iw/z/2)':y='ih/2-(ih/z/2)':s=%dx%d:fps=%d",
		f.zoom-1, frames, frames, p.Width, p.Height, f.fps)

	args := []string{"-y", "-loop", "1", "-i", clip.Image}
	if clip.Audio != "" {
		args = append(args, "-i", clip.Audio)
	}
	args = append(args,
		"-vf", filter,
		"-t", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-r", strconv.Itoa(f.fps),
		"-c:v", "libx264",
		"-preset", f.preset,
		"-pix_fmt", "yuv420p",
		"-threads", strconv.Itoa(f.threads),
	)
	if clip.Audio != "" {
		args = append(args, "-c:a", "aac")
	}
	args = append(args, outPath)
	return runCommand(ctx, "", f.bin, args...)
}

// ProbeDuration reads a media file's duration in seconds via ffprobe.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	setProcessGroup(cmd)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: unparseable duration %q", filepath.Base(path), out)
	}
	return seconds, nil
}

// Smoke writes the red self-test clip through a lavfi color source.
func (f *FFmpeg) Smoke(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, "smoke.mp4")
	tmp := tempOutput(out)
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=red:s=%dx%d:d=%d", smokeWidth, smokeHeight, smokeSeconds),
		"-r", strconv.Itoa(smokeFPS),
		"-c:v", "libx264",
		"-preset", f.preset,
		"-pix_fmt", "yuv420p",
		"-f", "mp4", tmp,
	}
	if err := runCommand(ctx, "", f.bin, args...); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return "", err
	}
	return out, os.Rename(tmp, out)
}

// ffprobeFor derives the ffprobe path from the resolved ffmpeg path,
// so an overridden toolchain keeps its probe alongside.
func ffprobeFor(ffmpeg string) string {
	dir, base := filepath.Split(ffmpeg)
	if strings.Contains(base, "ffmpeg") {
		return filepath.Join(dir, strings.Replace(base, "ffmpeg", "ffprobe", 1))
	}
	return "ffprobe"
}
