package studio

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/fablecast/fablecast/internal/illustrate"
	"github.com/fablecast/fablecast/internal/render"
	"github.com/fablecast/fablecast/internal/speech"
	"github.com/fablecast/fablecast/internal/speech/engines"
	"github.com/fablecast/fablecast/internal/story"
)

// stubRenderer records render calls and writes a marker file so the
// pipeline's output bookkeeping can be checked without ffmpeg.
type stubRenderer struct {
	calls []string
	fail  error
}

func (r *stubRenderer) Name() string { return "stub" }

func (r *stubRenderer) Render(ctx context.Context, clips []render.Clip, p render.Platform, outPath string) error {
	if r.fail != nil {
		return r.fail
	}
	for i, c := range clips {
		if c.Image == "" || c.Audio == "" {
			return fmt.Errorf("clip %d missing assets", i)
		}
		if _, err := os.Stat(c.Image); err != nil {
			return err
		}
		if _, err := os.Stat(c.Audio); err != nil {
			return err
		}
	}
	r.calls = append(r.calls, p.Name)
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

func (r *stubRenderer) Smoke(ctx context.Context, dir string) (string, error) {
	return "", nil
}

func testProducer(t *testing.T, renderer render.Engine) *Producer {
	t.Helper()
	return &Producer{
		Synth:     speech.NewSynthesizer(engines.NewMock(speech.DefaultConfig())),
		Art:       illustrate.NewChain(illustrate.NewCard()),
		Renderer:  renderer,
		AssetsDir: t.TempDir(),
		Parallel:  2,
	}
}

func testParams() story.Params {
	p := story.DefaultParams()
	p.Scenes = story.MinScenes
	return p
}

func TestProduce(t *testing.T) {
	renderer := &stubRenderer{}
	p := testProducer(t, renderer)

	events := make(chan Event, 128)
	res, err := p.Produce(context.Background(), Request{Params: testParams()}, events)
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}

	if len(res.Outputs) != len(render.Platforms) {
		t.Fatalf("outputs = %d, want %d", len(res.Outputs), len(render.Platforms))
	}
	for _, out := range res.Outputs {
		if _, err := os.Stat(out.Path); err != nil {
			t.Errorf("output %s missing: %v", out.Path, err)
		}
	}
	if len(renderer.calls) != len(render.Platforms) {
		t.Errorf("render calls = %v", renderer.calls)
	}
	if len(res.Board.Scenes) != story.MinScenes {
		t.Errorf("scenes = %d, want %d", len(res.Board.Scenes), story.MinScenes)
	}

	close(events)
	seen := map[Stage]bool{}
	for ev := range events {
		seen[ev.Stage] = true
		if ev.Frac < 0 || ev.Frac > 1 {
			t.Errorf("event frac %v outside [0,1]", ev.Frac)
		}
	}
	for _, stage := range []Stage{StageStory, StageAssets, StageRender, StageDone} {
		if !seen[stage] {
			t.Errorf("no event for stage %s", stage)
		}
	}
}

func TestProduceWithBoard(t *testing.T) {
	p := testProducer(t, &stubRenderer{})

	board, err := story.FromText("Given Board", "A single scene story.")
	if err != nil {
		t.Fatal(err)
	}
	ig, _ := render.PlatformFor("ig")
	res, err := p.Produce(context.Background(), Request{
		Board:     board,
		Platforms: []render.Platform{ig},
	}, nil)
	if err != nil {
		t.Fatalf("Produce() error = %v", err)
	}
	if res.Board != board {
		t.Error("board was regenerated instead of reused")
	}
	if len(res.Outputs) != 1 || res.Outputs[0].Platform != "ig" {
		t.Errorf("outputs = %+v", res.Outputs)
	}
}

func TestProduceRenderFailure(t *testing.T) {
	p := testProducer(t, &stubRenderer{fail: fmt.Errorf("boom")})
	_, err := p.Produce(context.Background(), Request{Params: testParams()}, nil)
	if err == nil {
		t.Fatal("expected render failure to propagate")
	}
}

func TestProduceCancelled(t *testing.T) {
	p := testProducer(t, &stubRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Produce(ctx, Request{Params: testParams()}, nil); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestProduceValidates(t *testing.T) {
	p := &Producer{}
	if _, err := p.Produce(context.Background(), Request{Params: testParams()}, nil); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestEmitterNeverBlocks(t *testing.T) {
	ch := make(chan Event, 1)
	e := newEmitter(ch)
	// Fill the channel, then emit more than it can hold.
	for i := 0; i < 10; i++ {
		e.mark(StageAssets, "update", 0.5)
	}
	if got := len(ch); got != 1 {
		t.Errorf("channel length = %d, want 1", got)
	}
}

func TestLerp(t *testing.T) {
	if got := lerp(0.15, 0.75, 0.5); got != 0.45 {
		t.Errorf("lerp midpoint = %v, want 0.45", got)
	}
	if got := lerp(0.75, 1.0, 1.0); got != 1.0 {
		t.Errorf("lerp end = %v, want 1", got)
	}
}
