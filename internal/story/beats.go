package story

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Word tables for the rule-based generator.
var (
	adjectives = []string{"soft", "bright", "happy", "gentle", "sparkly", "cozy"}
	buddies    = []string{"bunny", "panda", "fox", "kitten", "puppy", "duckling"}
	places     = []string{"meadow", "forest", "playroom", "treehouse", "seashore", "garden"}
	colors     = []string{"sunny yellow", "sky blue", "leafy green", "peachy pink", "lavender"}
)

type beat struct {
	name string
	idea string
}

// storyBeats returns the narrative ladder for the given params. The moral
// beat always closes the story; the Explore filler pads the middle out to
// the requested scene count, and short stories drop middle beats instead of
// the moral.
func storyBeats(p Params) []beat {
	beats := []beat{
		{"Setup", fmt.Sprintf("Introduce %s in a cozy place related to %s.", p.Title, p.Theme)},
		{"Call to Adventure", fmt.Sprintf("A gentle problem appears involving %s.", p.Theme)},
		{"New Friend", "A helpful friend shares an idea."},
		{"Try and Learn", "They try a new way together."},
		{"Little Setback", "Something goes a bit wrong, but feelings are respected."},
		{"Brave Choice", "They breathe, think, and try again."},
		{"Happy Resolution", "The problem is solved kindly."},
	}
	moral := beat{"Moral", p.MoralLine()}

	for len(beats) < p.Scenes-1 {
		beats = append(beats, beat{"Explore", "They notice something wonderful around them."})
	}
	beats = append(beats[:p.Scenes-1], moral)
	return beats
}

// Rules generates a storyboard deterministically: the same params always
// produce the same story.
func Rules(p Params) *Board {
	rng := rand.New(rand.NewSource(seed(p)))
	dur := sceneSeconds(p.Minutes, p.Scenes)

	scenes := make([]Scene, 0, p.Scenes)
	for _, b := range storyBeats(p) {
		adj := adjectives[rng.Intn(len(adjectives))]
		buddy := buddies[rng.Intn(len(buddies))]
		place := places[rng.Intn(len(places))]
		color := colors[rng.Intn(len(colors))]

		scenes = append(scenes, Scene{
			Beat: b.name,
			Text: fmt.Sprintf("%s and a %s %s were in the %s. %s They use %s to help.",
				p.Title, adj, buddy, place, b.idea, p.Theme),
			Prompt: fmt.Sprintf("Cute children's book illustration, %s and child in a %s, "+
				"soft lighting, pastel colors, %s, friendly faces, simple shapes, high contrast, clean background",
				buddy, place, color),
			Duration: dur,
		})
	}

	return &Board{
		Title:     fmt.Sprintf("%s: A %s Adventure", p.Title, cases.Title(language.English).String(p.Theme)),
		Params:    p,
		Engine:    EngineRules,
		Scenes:    scenes,
		CreatedAt: time.Now(),
	}
}

// seed folds the params into a stable RNG seed.
func seed(p Params) int64 {
	h := fnv.New64a()
	for _, s := range []string{
		p.Title, p.Theme, p.Moral,
		strconv.Itoa(p.Age), strconv.Itoa(p.Minutes), strconv.Itoa(p.Scenes),
	} {
		_, _ = h.Write([]byte(s))
	}
	return int64(h.Sum64())
}
