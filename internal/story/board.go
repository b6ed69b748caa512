package story

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Markdown renders the storyboard for terminal preview.
func (b *Board) Markdown() string {
	var md strings.Builder

	fmt.Fprintf(&md, "# %s\n\n", b.Title)
	fmt.Fprintf(&md, "*age %d · moral: %s · ~%d min · %d scenes*\n",
		b.Params.Age, b.Params.Moral, b.Params.Minutes, len(b.Scenes))

	for i, sc := range b.Scenes {
		fmt.Fprintf(&md, "\n## Scene %d · %s\n\n", i+1, sc.Beat)
		fmt.Fprintf(&md, "%s\n", sc.Text)
		if sc.Prompt != "" {
			fmt.Fprintf(&md, "\n> art: %s\n", sc.Prompt)
		}
	}
	return md.String()
}

// Narration returns the scene texts in order.
func (b *Board) Narration() []string {
	texts := make([]string, len(b.Scenes))
	for i, sc := range b.Scenes {
		texts[i] = sc.Text
	}
	return texts
}

// Save writes the storyboard as YAML.
func (b *Board) Save(path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling board: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing board: %w", err)
	}
	return nil
}

// Load reads a storyboard saved by Save.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board: %w", err)
	}
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing board %s: %w", path, err)
	}
	if len(b.Scenes) == 0 {
		return nil, fmt.Errorf("board %s has no scenes", path)
	}
	return &b, nil
}
