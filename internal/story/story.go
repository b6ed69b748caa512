package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Story engines.
const (
	EngineRules  = "rules"
	EngineOllama = "ollama"
	EngineAuto   = "auto"
)

// Parameter bounds, mirrored by the web form.
const (
	MinAge     = 3
	MaxAge     = 9
	MinMinutes = 1
	MaxMinutes = 10
	MinScenes  = 6
	MaxScenes  = 20
)

// Scene duration clamp in seconds.
const (
	minSceneSeconds = 3.5
	maxSceneSeconds = 10.0
)

// Morals pairs each built-in moral with the line that closes the story.
var Morals = map[string]string{
	"kindness":  "Kindness makes friends and brightens the world.",
	"honesty":   "Telling the truth keeps hearts light and trust strong.",
	"sharing":   "Sharing turns little joys into big ones.",
	"courage":   "Being brave means trying even when things feel new.",
	"curiosity": "Questions open doors to wonderful discoveries.",
}

// MoralNames lists the built-in morals in menu order.
var MoralNames = []string{"kindness", "honesty", "sharing", "courage", "curiosity"}

// Params are the story inputs collected from the CLI or the web form.
type Params struct {
	Title   string `yaml:"title"`
	Age     int    `yaml:"age"`
	Moral   string `yaml:"moral"`
	Theme   string `yaml:"theme"`
	Minutes int    `yaml:"minutes"`
	Scenes  int    `yaml:"scenes"`
}

// DefaultParams returns the form defaults.
func DefaultParams() Params {
	return Params{
		Title:   "Mina and the Moon Kite",
		Age:     5,
		Moral:   "kindness",
		Theme:   "kindness and sky adventures",
		Minutes: 2,
		Scenes:  8,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.Title == "" {
		return errors.New("story title must not be empty")
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("age must be between %d and %d, got %d", MinAge, MaxAge, p.Age)
	}
	if p.Minutes < MinMinutes || p.Minutes > MaxMinutes {
		return fmt.Errorf("duration must be between %d and %d minutes, got %d", MinMinutes, MaxMinutes, p.Minutes)
	}
	if p.Scenes < MinScenes || p.Scenes > MaxScenes {
		return fmt.Errorf("scene count must be between %d and %d, got %d", MinScenes, MaxScenes, p.Scenes)
	}
	return nil
}

// MoralLine resolves the moral to its closing line. Free-text morals are
// used verbatim.
func (p Params) MoralLine() string {
	if line, ok := Morals[p.Moral]; ok {
		return line
	}
	return p.Moral
}

// Scene is one storyboard entry: narration text, an art prompt, and a
// minimum on-screen duration.
type Scene struct {
	Beat     string  `yaml:"beat"`
	Text     string  `yaml:"text"`
	Prompt   string  `yaml:"prompt"`
	Duration float64 `yaml:"duration"`
}

// Board is a complete storyboard ready for narration and rendering.
type Board struct {
	Title     string    `yaml:"title"`
	Params    Params    `yaml:"params"`
	Engine    string    `yaml:"engine"`
	Scenes    []Scene   `yaml:"scenes"`
	CreatedAt time.Time `yaml:"created_at"`
}

// sceneSeconds computes the per-scene duration clamp.
func sceneSeconds(minutes, scenes int) float64 {
	d := float64(minutes) * 60 / float64(scenes)
	if d < minSceneSeconds {
		return minSceneSeconds
	}
	if d > maxSceneSeconds {
		return maxSceneSeconds
	}
	return d
}

// Generate produces a storyboard with the requested engine. EngineAuto tries
// Ollama first and degrades to the rule-based generator; naming EngineOllama
// explicitly makes its failure the caller's problem.
func Generate(ctx context.Context, p Params, engine string, ollama *Ollama) (*Board, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch engine {
	case EngineRules, "":
		return Rules(p), nil
	case EngineOllama:
		if ollama == nil {
			return nil, errors.New("ollama engine requested but not configured")
		}
		return ollama.Generate(ctx, p)
	case EngineAuto:
		if ollama != nil {
			board, err := ollama.Generate(ctx, p)
			if err == nil {
				return board, nil
			}
			log.Warn("ollama story generation failed, using rule-based generator", "err", err)
		}
		return Rules(p), nil
	default:
		return nil, fmt.Errorf("unknown story engine %q", engine)
	}
}
