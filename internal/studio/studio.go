package studio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"

	"github.com/fablecast/fablecast/internal/illustrate"
	"github.com/fablecast/fablecast/internal/render"
	"github.com/fablecast/fablecast/internal/speech"
	"github.com/fablecast/fablecast/internal/story"
)

// DefaultParallel bounds concurrent scene asset jobs. Synthesis is
// serialized by the engine chain anyway, so the bound mostly shapes
// how many diffusion requests are in flight.
const DefaultParallel = 3

// Errors returned by the pipeline.
var (
	ErrNoRenderer = errors.New("no render engine configured")
	ErrNoSynth    = errors.New("no speech synthesizer configured")
	ErrNoArt      = errors.New("no illustrator configured")
)

// Producer wires the production pipeline together. All fields except
// Story are required.
type Producer struct {
	Story     *story.Ollama // nil leaves only the rule-based generator
	Synth     *speech.Synthesizer
	Art       *illustrate.Chain
	Renderer  render.Engine
	AssetsDir string
	Parallel  int
}

// Request describes one production run. Board short-circuits story
// generation; otherwise Params and StoryEngine drive it.
type Request struct {
	Params      story.Params
	StoryEngine string
	Board       *story.Board
	Platforms   []render.Platform
	// JobID names the working directory under AssetsDir. Derived from
	// the title and timestamp when empty.
	JobID string
}

// Output is one finished video.
type Output struct {
	Platform string
	Path     string
}

// Result is everything a production run left on disk.
type Result struct {
	Board   *story.Board
	Dir     string
	Outputs []Output
	Elapsed time.Duration
}

// sceneAssets are one scene's files after the asset stage.
type sceneAssets struct {
	audio  string
	images map[string]string // platform name -> png path
}

func (p *Producer) validate() error {
	if p.Renderer == nil {
		return ErrNoRenderer
	}
	if p.Synth == nil {
		return ErrNoSynth
	}
	if p.Art == nil {
		return ErrNoArt
	}
	return nil
}

// Produce runs the full pipeline, streaming progress to events. The
// channel may be nil; it is never closed and never blocked on. On
// success every output video listed in the result exists on disk.
func (p *Producer) Produce(ctx context.Context, req Request, events chan<- Event) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	emit := newEmitter(events)

	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = render.Platforms
	}

	// Stage 1: storyboard.
	emit.mark(StageStory, "writing the storyboard", 0)
	board := req.Board
	if board == nil {
		var err error
		board, err = story.Generate(ctx, req.Params, req.StoryEngine, p.Story)
		if err != nil {
			return nil, fmt.Errorf("story generation: %w", err)
		}
	}
	emit.mark(StageStory, fmt.Sprintf("storyboard ready: %q, %d scenes", board.Title, len(board.Scenes)), fracStory)

	dir, err := p.jobDir(req.JobID, board.Title)
	if err != nil {
		return nil, err
	}
	log.Debug("job directory ready", "dir", dir)

	// Stage 2: scene assets, bounded fan-out.
	assets, err := p.produceAssets(ctx, board, platforms, dir, emit)
	if err != nil {
		return nil, err
	}

	// Stage 3: per-platform render.
	var outputs []Output
	for i, platform := range platforms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frac := lerp(fracAssets, fracRender, float64(i)/float64(len(platforms)))
		emit.mark(StageRender, fmt.Sprintf("rendering %s (%dx%d)", platform.Name, platform.Width, platform.Height), frac)

		clips := make([]render.Clip, len(board.Scenes))
		for j, sc := range board.Scenes {
			clips[j] = render.Clip{
				Image:    assets[j].images[platform.Name],
				Audio:    assets[j].audio,
				Duration: sc.Duration,
			}
		}
		outPath := filepath.Join(dir, render.OutputName(board.Title, platform))
		if err := p.Renderer.Render(ctx, clips, platform, outPath); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", platform.Name, err)
		}
		outputs = append(outputs, Output{Platform: platform.Name, Path: outPath})
	}

	elapsed := time.Since(start)
	emit.mark(StageDone, fmt.Sprintf("%d videos in %s", len(outputs), elapsed.Round(time.Second)), 1)
	log.Info("production finished",
		"title", board.Title,
		"scenes", len(board.Scenes),
		"outputs", len(outputs),
		"elapsed", elapsed.Round(time.Millisecond))

	return &Result{Board: board, Dir: dir, Outputs: outputs, Elapsed: elapsed}, nil
}

// produceAssets writes narration and per-platform art for every scene.
// Required work (narration) aborts the run on failure; art already
// degrades inside the illustrator chain.
func (p *Producer) produceAssets(ctx context.Context, board *story.Board, platforms []render.Platform, dir string, emit *emitter) ([]sceneAssets, error) {
	emit.mark(StageAssets, "illustrating and narrating scenes", fracStory)

	assets := make([]sceneAssets, len(board.Scenes))
	var (
		mu   sync.Mutex
		done int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel())
	for i, sc := range board.Scenes {
		g.Go(func() error {
			a, err := p.sceneAssets(ctx, sc, i, platforms, dir)
			if err != nil {
				return fmt.Errorf("scene %d: %w", i+1, err)
			}
			assets[i] = a

			mu.Lock()
			done++
			frac := lerp(fracStory, fracAssets, float64(done)/float64(len(board.Scenes)))
			mu.Unlock()
			emit.step(StageAssets, fmt.Sprintf("scene %d/%d ready", done, len(board.Scenes)), frac)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (p *Producer) sceneAssets(ctx context.Context, sc story.Scene, idx int, platforms []render.Platform, dir string) (sceneAssets, error) {
	a := sceneAssets{images: make(map[string]string, len(platforms))}

	audio, err := p.Synth.Synthesize(ctx, sc.Text)
	if err != nil {
		return a, fmt.Errorf("narration: %w", err)
	}
	wav, err := speech.EncodeWAV(audio)
	if err != nil {
		return a, fmt.Errorf("narration: %w", err)
	}
	a.audio = filepath.Join(dir, fmt.Sprintf("scene_%02d.wav", idx+1))
	if err := os.WriteFile(a.audio, wav, 0o644); err != nil {
		return a, fmt.Errorf("writing narration: %w", err)
	}

	for _, platform := range platforms {
		img, err := p.Art.Illustrate(ctx, sc.Prompt, platform.Width, platform.Height)
		if err != nil {
			return a, fmt.Errorf("art for %s: %w", platform.Name, err)
		}
		png, err := illustrate.EncodePNG(img)
		if err != nil {
			return a, fmt.Errorf("art for %s: %w", platform.Name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("scene_%02d_%s.png", idx+1, platform.Name))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return a, fmt.Errorf("writing art: %w", err)
		}
		a.images[platform.Name] = path
	}
	return a, nil
}

func (p *Producer) parallel() int {
	if p.Parallel > 0 {
		return p.Parallel
	}
	return DefaultParallel
}

// jobDir creates the working directory for one run.
func (p *Producer) jobDir(id, title string) (string, error) {
	if id == "" {
		id = fmt.Sprintf("%s-%s", slug.Make(title), time.Now().Format("20060102-150405"))
	}
	dir := filepath.Join(p.AssetsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating job directory: %w", err)
	}
	return dir, nil
}
