package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCommaList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "ig", []string{"ig"}},
		{"pair", "ig,yt", []string{"ig", "yt"}},
		{"spaces", " ig , yt ", []string{"ig", "yt"}},
		{"trailing comma", "ig,", []string{"ig"}},
		{"only commas", ",,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := commaList(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commaList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("FABLECAST_TEST_DIR", "/tmp/fablecast")

	got := expandPath("$FABLECAST_TEST_DIR/voices")
	if got != "/tmp/fablecast/voices" {
		t.Errorf("expandPath env = %q", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/voices"); got != filepath.Join(home, "voices") {
		t.Errorf("expandPath(~/voices) = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs", "nested")

	abs, err := ensureDir(dir)
	if err != nil {
		t.Fatalf("ensureDir: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("ensureDir returned relative path %q", abs)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		t.Errorf("ensureDir did not create %q: %v", abs, err)
	}

	// Repeat calls are a no-op.
	if _, err := ensureDir(dir); err != nil {
		t.Errorf("ensureDir second call: %v", err)
	}
}
