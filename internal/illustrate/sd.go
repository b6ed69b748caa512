package illustrate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/jpeg" // some WebUI setups answer with jpeg
	_ "image/png"

	"github.com/charmbracelet/log"
	xdraw "golang.org/x/image/draw"
)

const (
	sdProbeTimeout = 2 * time.Second
	sdRetryPause   = 500 * time.Millisecond
	// sdAttempts covers the WebUI's habit of dropping the first request
	// while a model is still loading.
	sdAttempts = 2
)

// SD generates scene art through a Stable Diffusion WebUI instance
// (the AUTOMATIC1111 txt2img API).
type SD struct {
	api      string
	steps    int
	sampler  string
	cfgScale float64
	client   *http.Client
}

// NewSD returns a client for the given instance, filling in the stock
// generation parameters where the configuration leaves zeroes.
func NewSD(cfg SDConfig) *SD {
	def := DefaultSDConfig()
	if cfg.Steps <= 0 {
		cfg.Steps = def.Steps
	}
	if cfg.Sampler == "" {
		cfg.Sampler = def.Sampler
	}
	if cfg.CFGScale <= 0 {
		cfg.CFGScale = def.CFGScale
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &SD{
		api:      strings.TrimRight(cfg.API, "/"),
		steps:    cfg.Steps,
		sampler:  cfg.Sampler,
		cfgScale: cfg.CFGScale,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the engine name.
func (s *SD) Name() string { return EngineSD }

// API returns the configured instance address.
func (s *SD) API() string { return s.api }

type txt2imgRequest struct {
	Prompt       string  `json:"prompt"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Steps        int     `json:"steps"`
	SamplerIndex string  `json:"sampler_index"`
	CFGScale     float64 `json:"cfg_scale"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Illustrate asks the WebUI for one txt2img generation. Transient
// failures get one retry; the decoded image is scaled to the requested
// dimensions if the instance answered with anything else.
func (s *SD) Illustrate(ctx context.Context, prompt string, width, height int) (image.Image, error) {
	if s.api == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(txt2imgRequest{
		Prompt:       prompt,
		Width:        width,
		Height:       height,
		Steps:        s.steps,
		SamplerIndex: s.sampler,
		CFGScale:     s.cfgScale,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= sdAttempts; attempt++ {
		if attempt > 1 {
			log.Debug("retrying sd request", "attempt", attempt, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sdRetryPause):
			}
		}

		img, retryable, err := s.txt2img(ctx, body, width, height)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *SD) txt2img(ctx context.Context, body []byte, width, height int) (image.Image, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("sd request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("sd returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return nil, resp.StatusCode >= http.StatusInternalServerError, err
	}

	var gen txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, false, fmt.Errorf("decoding sd response: %w", err)
	}
	if len(gen.Images) == 0 || gen.Images[0] == "" {
		return nil, false, ErrNoImage
	}

	raw, err := base64.StdEncoding.DecodeString(gen.Images[0])
	if err != nil {
		return nil, false, fmt.Errorf("decoding image payload: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false, fmt.Errorf("decoding image: %w", err)
	}
	return conformSize(img, width, height), false, nil
}

// Available probes the model listing with a short timeout.
func (s *SD) Available(ctx context.Context) bool {
	if s.api == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, sdProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.api+"/sdapi/v1/sd-models", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// conformSize rescales img when the service ignored the requested
// dimensions, so downstream stages can rely on them.
func conformSize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
