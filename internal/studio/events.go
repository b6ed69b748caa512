package studio

import (
	"time"

	"golang.org/x/time/rate"
)

// Stage identifies a pipeline phase in execution order.
type Stage string

// Pipeline stages.
const (
	StageStory  Stage = "story"
	StageAssets Stage = "assets"
	StageRender Stage = "render"
	StageDone   Stage = "done"
)

// Stage completion fractions. Assets dominate wall time because every
// scene runs a synthesis subprocess and possibly a diffusion request.
const (
	fracStory  = 0.15
	fracAssets = 0.75
	fracRender = 1.0
)

// Event is one progress update from the pipeline. Frac is overall
// completion in [0, 1].
type Event struct {
	Stage   Stage
	Message string
	Frac    float64
}

// emitter pushes events to the consumer without ever blocking the
// pipeline. Stage transitions always go out; per-scene updates are
// rate limited and dropped when the channel is full.
type emitter struct {
	ch  chan<- Event
	lim *rate.Limiter
}

func newEmitter(ch chan<- Event) *emitter {
	return &emitter{
		ch:  ch,
		lim: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// mark announces a stage transition. Always emitted.
func (e *emitter) mark(stage Stage, msg string, frac float64) {
	e.send(Event{Stage: stage, Message: msg, Frac: frac})
}

// step reports incremental progress inside a stage. Droppable.
func (e *emitter) step(stage Stage, msg string, frac float64) {
	if !e.lim.Allow() {
		return
	}
	e.send(Event{Stage: stage, Message: msg, Frac: frac})
}

func (e *emitter) send(ev Event) {
	if e.ch == nil {
		return
	}
	select {
	case e.ch <- ev:
	default:
	}
}

// lerp maps a stage-local fraction onto the overall range (lo, hi].
func lerp(lo, hi, frac float64) float64 {
	return lo + (hi-lo)*frac
}
