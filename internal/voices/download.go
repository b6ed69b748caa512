package voices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// hubBase is the rhasspy voice repository on Hugging Face.
const hubBase = "https://huggingface.co/rhasspy/piper-voices/resolve/main"

const downloadTimeout = 10 * time.Minute

// Remote describes a downloadable voice.
type Remote struct {
	Name   string // full voice name
	Lang   string // human language label
	Approx int64  // approximate model size in bytes
}

// Known is the curated voice list shown by `voices list --available`.
// The stock voice comes first. Anything else in the rhasspy tree still
// downloads by name; this list is just the menu.
var Known = []Remote{
	{Name: "en_US-amy-low", Lang: "English (US)", Approx: 64 << 20},
	{Name: "en_US-amy-medium", Lang: "English (US)", Approx: 61 << 20},
	{Name: "en_US-lessac-medium", Lang: "English (US)", Approx: 61 << 20},
	{Name: "en_US-ryan-medium", Lang: "English (US)", Approx: 61 << 20},
	{Name: "en_GB-alba-medium", Lang: "English (UK)", Approx: 61 << 20},
	{Name: "es_ES-davefx-medium", Lang: "Spanish", Approx: 61 << 20},
	{Name: "fr_FR-siwis-medium", Lang: "French", Approx: 61 << 20},
	{Name: "de_DE-thorsten-medium", Lang: "German", Approx: 61 << 20},
	{Name: "it_IT-riccardo-x_low", Lang: "Italian", Approx: 25 << 20},
	{Name: "pt_BR-faber-medium", Lang: "Portuguese (BR)", Approx: 61 << 20},
}

// DisplaySize renders the approximate size for humans.
func (r Remote) DisplaySize() string {
	return humanize.Bytes(uint64(r.Approx))
}

// URLFor derives the model and sidecar URLs for a voice name. The hub
// lays voices out as family/locale/speaker/quality/name.onnx.
func URLFor(name string) (model, sidecar string, err error) {
	locale, speaker, quality, err := ParseName(name)
	if err != nil {
		return "", "", err
	}
	family := locale
	if i := strings.Index(locale, "_"); i > 0 {
		family = locale[:i]
	}
	name = strings.TrimSuffix(name, ".onnx")
	model = fmt.Sprintf("%s/%s/%s/%s/%s/%s.onnx", hubBase, family, locale, speaker, quality, name)
	return model, model + ".json", nil
}

// Progress reports download progress. total is -1 when unknown.
type Progress func(downloaded, total int64)

// Download fetches a voice model and its sidecar config into dir and
// returns the model path. The model lands under a .part name first so
// an interrupted download never looks installed.
func Download(ctx context.Context, dir, name string, progress Progress) (string, error) {
	modelURL, sidecarURL, err := URLFor(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create voices dir: %w", err)
	}

	name = strings.TrimSuffix(name, ".onnx")
	modelPath := filepath.Join(dir, name+".onnx")

	log.Info("downloading voice", "voice", name, "url", modelURL)
	if err := fetch(ctx, modelURL, modelPath, progress); err != nil {
		return "", fmt.Errorf("download voice %s: %w", name, err)
	}

	// The sidecar is small and optional; piper falls back to defaults
	// without it.
	if err := fetch(ctx, sidecarURL, modelPath+".json", nil); err != nil {
		log.Warn("voice config download failed", "voice", name, "err", err)
	}

	return modelPath, nil
}

func fetch(ctx context.Context, url, dest string, progress Progress) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}

	var reader io.Reader = resp.Body
	if progress != nil {
		reader = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(part)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, dest)
}

type progressReader struct {
	r          io.Reader
	total      int64
	downloaded int64
	report     Progress
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.downloaded += int64(n)
		p.report(p.downloaded, p.total)
	}
	return n, err
}
