package voices

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/fablecast/fablecast/internal/bootstrap"
)

// Voice is one installed piper model.
type Voice struct {
	Name      string // e.g. "en_US-amy-low"
	Locale    string // e.g. "en_US"
	Speaker   string // e.g. "amy"
	Quality   string // x_low, low, medium or high
	Path      string // model file path
	Size      int64  // model file size in bytes
	HasConfig bool   // sidecar .onnx.json present
}

// DisplaySize renders the model size for humans.
func (v Voice) DisplaySize() string {
	return humanize.Bytes(uint64(v.Size))
}

// ParseName splits a voice name like "en_US-amy-low" into its parts.
// Speaker names may themselves contain dashes, so the first dash and
// the last dash are the separators.
func ParseName(name string) (locale, speaker, quality string, err error) {
	name = strings.TrimSuffix(name, ".onnx")
	first := strings.Index(name, "-")
	last := strings.LastIndex(name, "-")
	if first < 0 || first == last {
		return "", "", "", fmt.Errorf("voice name %q is not locale-speaker-quality", name)
	}
	return name[:first], name[first+1 : last], name[last+1:], nil
}

// Scan walks dir for .onnx models and returns the catalog sorted by
// name. A missing directory is an empty catalog, not an error.
func Scan(dir string) ([]Voice, error) {
	if dir == "" {
		return nil, nil
	}
	var catalog []Voice
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".onnx") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), ".onnx")
		v := Voice{
			Name: name,
			Path: path,
			Size: info.Size(),
		}
		v.Locale, v.Speaker, v.Quality, _ = ParseName(name)
		if _, err := os.Stat(path + ".json"); err == nil {
			v.HasConfig = true
		}
		catalog = append(catalog, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan voices in %s: %w", dir, err)
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })
	return catalog, nil
}

// Default picks the voice a fresh install speaks with. Models missing
// their .onnx.json sidecar are never auto-selected; piper needs the
// config to load them. The stock model wins when installed, then a
// voice whose locale matches LANG, then the first complete voice.
func Default(catalog []Voice) *Voice {
	stock := strings.TrimSuffix(bootstrap.DefaultModelFile, ".onnx")
	var complete []int
	for i := range catalog {
		if !catalog[i].HasConfig {
			continue
		}
		if catalog[i].Name == stock {
			return &catalog[i]
		}
		complete = append(complete, i)
	}
	if len(complete) == 0 {
		return nil
	}

	locales := make([]string, len(complete))
	for j, i := range complete {
		locales[j] = catalog[i].Locale
	}
	if match := bootstrap.MatchVoiceLanguage(os.Getenv(bootstrap.EnvLang), locales); match != "" {
		for _, i := range complete {
			if catalog[i].Locale == match {
				return &catalog[i]
			}
		}
	}
	return &catalog[complete[0]]
}

// names adapts the catalog for fuzzy matching.
type names []Voice

func (n names) String(i int) string { return n[i].Name }
func (n names) Len() int            { return len(n) }

// Find fuzzy-matches query against voice names, best matches first.
// An empty query returns the whole catalog.
func Find(catalog []Voice, query string) []Voice {
	if strings.TrimSpace(query) == "" {
		return catalog
	}
	matches := fuzzy.FindFrom(query, names(catalog))
	found := make([]Voice, 0, len(matches))
	for _, m := range matches {
		found = append(found, catalog[m.Index])
	}
	return found
}

// ByName returns the exact voice, or nil.
func ByName(catalog []Voice, name string) *Voice {
	name = strings.TrimSuffix(name, ".onnx")
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i]
		}
	}
	return nil
}
