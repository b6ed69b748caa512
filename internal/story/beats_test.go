package story

import (
	"strings"
	"testing"
)

func TestRulesIsDeterministic(t *testing.T) {
	p := DefaultParams()

	a := Rules(p)
	b := Rules(p)

	if a.Title != b.Title {
		t.Errorf("titles differ: %q vs %q", a.Title, b.Title)
	}
	if len(a.Scenes) != len(b.Scenes) {
		t.Fatalf("scene counts differ: %d vs %d", len(a.Scenes), len(b.Scenes))
	}
	for i := range a.Scenes {
		if a.Scenes[i].Text != b.Scenes[i].Text {
			t.Errorf("scene %d text differs:\n%s\n%s", i, a.Scenes[i].Text, b.Scenes[i].Text)
		}
		if a.Scenes[i].Prompt != b.Scenes[i].Prompt {
			t.Errorf("scene %d prompt differs", i)
		}
	}
}

func TestRulesDifferentParamsDifferentStory(t *testing.T) {
	p := DefaultParams()
	q := p
	q.Theme = "ocean explorers"

	a := Rules(p)
	b := Rules(q)

	same := true
	for i := range a.Scenes {
		if a.Scenes[i].Text != b.Scenes[i].Text {
			same = false
			break
		}
	}
	if same {
		t.Error("different themes produced identical scenes")
	}
}

func TestRulesSceneCount(t *testing.T) {
	tests := []struct {
		name   string
		scenes int
	}{
		{"minimum", MinScenes},
		{"default", 8},
		{"padded", 12},
		{"maximum", MaxScenes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.Scenes = tt.scenes
			board := Rules(p)
			if len(board.Scenes) != tt.scenes {
				t.Errorf("got %d scenes, want %d", len(board.Scenes), tt.scenes)
			}
		})
	}
}

func TestRulesMoralClosesStory(t *testing.T) {
	for _, scenes := range []int{MinScenes, 8, 14, MaxScenes} {
		p := DefaultParams()
		p.Scenes = scenes
		board := Rules(p)

		last := board.Scenes[len(board.Scenes)-1]
		if last.Beat != "Moral" {
			t.Errorf("scenes=%d: final beat = %q, want Moral", scenes, last.Beat)
		}
		if !strings.Contains(last.Text, Morals[p.Moral]) {
			t.Errorf("scenes=%d: moral line missing from final scene: %s", scenes, last.Text)
		}
	}
}

func TestRulesFillerBeatsPadTheMiddle(t *testing.T) {
	p := DefaultParams()
	p.Scenes = 12
	board := Rules(p)

	explore := 0
	for _, sc := range board.Scenes {
		if sc.Beat == "Explore" {
			explore++
		}
	}
	// 7 base beats + moral leaves 4 scenes to fill.
	if explore != 4 {
		t.Errorf("got %d Explore beats, want 4", explore)
	}
}

func TestSceneSecondsClamp(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		scenes  int
		want    float64
	}{
		{"clamped low", 1, 20, 3.5},
		{"clamped high", 10, 6, 10.0},
		{"default form values clamp high", 2, 8, 10.0}, // 120s / 8 = 15s
		{"in range", 1, 10, 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sceneSeconds(tt.minutes, tt.scenes); got != tt.want {
				t.Errorf("sceneSeconds(%d, %d) = %v, want %v", tt.minutes, tt.scenes, got, tt.want)
			}
		})
	}
}

func TestSceneSecondsWithinBounds(t *testing.T) {
	for minutes := MinMinutes; minutes <= MaxMinutes; minutes++ {
		for scenes := MinScenes; scenes <= MaxScenes; scenes++ {
			d := sceneSeconds(minutes, scenes)
			if d < minSceneSeconds || d > maxSceneSeconds {
				t.Errorf("sceneSeconds(%d, %d) = %v outside [%v, %v]",
					minutes, scenes, d, minSceneSeconds, maxSceneSeconds)
			}
		}
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"empty title", func(p *Params) { p.Title = "" }, true},
		{"age too low", func(p *Params) { p.Age = 2 }, true},
		{"age too high", func(p *Params) { p.Age = 10 }, true},
		{"minutes too low", func(p *Params) { p.Minutes = 0 }, true},
		{"minutes too high", func(p *Params) { p.Minutes = 11 }, true},
		{"scenes too low", func(p *Params) { p.Scenes = 5 }, true},
		{"scenes too high", func(p *Params) { p.Scenes = 21 }, true},
		{"boundary ok", func(p *Params) { p.Age = MaxAge; p.Scenes = MaxScenes; p.Minutes = MaxMinutes }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMoralLineFreeText(t *testing.T) {
	p := DefaultParams()
	p.Moral = "always brush your teeth"
	if got := p.MoralLine(); got != "always brush your teeth" {
		t.Errorf("free-text moral not passed through: %q", got)
	}

	p.Moral = "courage"
	if got := p.MoralLine(); got != Morals["courage"] {
		t.Errorf("built-in moral not resolved: %q", got)
	}
}

func TestRulesTitleStyling(t *testing.T) {
	p := DefaultParams()
	p.Title = "Mina"
	p.Theme = "sky adventures"
	board := Rules(p)
	if board.Title != "Mina: A Sky Adventures Adventure" {
		t.Errorf("unexpected title: %q", board.Title)
	}
}
