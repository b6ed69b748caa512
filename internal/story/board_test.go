package story

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestBoardMarkdown(t *testing.T) {
	board := Rules(DefaultParams())
	md := board.Markdown()

	if !strings.HasPrefix(md, "# "+board.Title) {
		t.Errorf("markdown missing title heading:\n%s", md)
	}
	for i, sc := range board.Scenes {
		if !strings.Contains(md, sc.Text) {
			t.Errorf("scene %d text missing from markdown", i)
		}
	}
	if !strings.Contains(md, "## Scene 1") {
		t.Error("scene headings missing")
	}
	if !strings.Contains(md, "> art:") {
		t.Error("art prompts missing")
	}
}

func TestBoardSaveLoadRoundTrip(t *testing.T) {
	board := Rules(DefaultParams())
	path := filepath.Join(t.TempDir(), "board.yaml")

	if err := board.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Title != board.Title {
		t.Errorf("title = %q, want %q", loaded.Title, board.Title)
	}
	if len(loaded.Scenes) != len(board.Scenes) {
		t.Fatalf("scene count = %d, want %d", len(loaded.Scenes), len(board.Scenes))
	}
	for i := range board.Scenes {
		if loaded.Scenes[i].Text != board.Scenes[i].Text {
			t.Errorf("scene %d text differs after round trip", i)
		}
		if loaded.Scenes[i].Duration != board.Scenes[i].Duration {
			t.Errorf("scene %d duration differs after round trip", i)
		}
	}
}

func TestLoadRejectsEmptyBoard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	b := &Board{Title: "T"}
	if err := b.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("board without scenes accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestNarration(t *testing.T) {
	board := Rules(DefaultParams())
	texts := board.Narration()
	if len(texts) != len(board.Scenes) {
		t.Fatalf("narration length = %d, want %d", len(texts), len(board.Scenes))
	}
	for i, text := range texts {
		if text != board.Scenes[i].Text {
			t.Errorf("narration[%d] mismatch", i)
		}
	}
}
