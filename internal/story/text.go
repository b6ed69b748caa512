package story

import (
	"errors"
	"strings"
	"time"
)

// Reading pace used to size scenes built from raw text. Matches the
// default espeak rate rounded to whole words per second.
const wordsPerSecond = 3.0

// FromText builds a storyboard from prose the caller already has, one
// scene per paragraph. Scene durations come from an estimated reading
// time under the usual clamp, and art prompts reuse the opening words
// of each paragraph.
func FromText(title, text string) (*Board, error) {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, errors.New("no text to narrate")
	}
	if title == "" {
		title = firstWords(paragraphs[0], 6)
	}

	scenes := make([]Scene, len(paragraphs))
	for i, p := range paragraphs {
		scenes[i] = Scene{
			Beat:     "Narration",
			Text:     p,
			Prompt:   "storybook illustration of " + firstWords(p, 12),
			Duration: readSeconds(p),
		}
	}

	return &Board{
		Title:     title,
		Engine:    "text",
		Scenes:    scenes,
		CreatedAt: time.Now(),
	}, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		p := strings.TrimSpace(strings.ReplaceAll(block, "\n", " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func readSeconds(text string) float64 {
	d := float64(len(strings.Fields(text))) / wordsPerSecond
	if d < minSceneSeconds {
		return minSceneSeconds
	}
	if d > maxSceneSeconds {
		return maxSceneSeconds
	}
	return d
}
