package illustrate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func pngPayload(t *testing.T, w, h int) string {
	t.Helper()
	var buf strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := png.Encode(enc, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	enc.Close()
	return buf.String()
}

func TestSDIllustrate(t *testing.T) {
	payload := pngPayload(t, 64, 32)
	var got txt2imgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/txt2img" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		fmt.Fprintf(w, `{"images":[%q]}`, payload)
	}))
	defer srv.Close()

	sd := NewSD(SDConfig{API: srv.URL})
	img, err := sd.Illustrate(context.Background(), "a cozy fox", 64, 32)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("bounds = %v", b)
	}

	want := txt2imgRequest{
		Prompt:       "a cozy fox",
		Width:        64,
		Height:       32,
		Steps:        25,
		SamplerIndex: "Euler a",
		CFGScale:     6.5,
	}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestSDConformsDimensions(t *testing.T) {
	// The instance answers with 8x8 art regardless of the request.
	payload := pngPayload(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"images":[%q]}`, payload)
	}))
	defer srv.Close()

	img, err := NewSD(SDConfig{API: srv.URL}).Illustrate(context.Background(), "x", 40, 20)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("bounds = %v, want 40x20", b)
	}
}

func TestSDRetriesServerErrors(t *testing.T) {
	payload := pngPayload(t, 4, 4)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "model loading", http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"images":[%q]}`, payload)
	}))
	defer srv.Close()

	if _, err := NewSD(SDConfig{API: srv.URL}).Illustrate(context.Background(), "x", 4, 4); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestSDGivesUpOnClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewSD(SDConfig{API: srv.URL}).Illustrate(context.Background(), "x", 4, 4)
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSDEmptyImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"images":[]}`)
	}))
	defer srv.Close()

	_, err := NewSD(SDConfig{API: srv.URL}).Illustrate(context.Background(), "x", 4, 4)
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

func TestSDNotConfigured(t *testing.T) {
	sd := NewSD(SDConfig{})
	if _, err := sd.Illustrate(context.Background(), "x", 4, 4); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if sd.Available(context.Background()) {
		t.Error("unconfigured client reports available")
	}
}

func TestSDAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sdapi/v1/sd-models" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[]`)
	}))

	sd := NewSD(SDConfig{API: srv.URL})
	if !sd.Available(context.Background()) {
		t.Error("running instance reported unavailable")
	}
	srv.Close()
	if sd.Available(context.Background()) {
		t.Error("stopped instance reported available")
	}
}
