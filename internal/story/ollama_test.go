package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveGenerate(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Model == "" {
			t.Error("model missing from request")
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: response})
	}))
}

func TestOllamaGenerate(t *testing.T) {
	srv := serveGenerate(t, `{"title":"The Moon Kite","scenes":[`+
		`{"text":"Mina found a kite.","prompt":"girl with kite"},`+
		`{"text":"The kite flew high.","prompt":""}]}`)
	defer srv.Close()

	o := NewOllama(srv.URL, "test-model")
	p := DefaultParams()

	board, err := o.Generate(context.Background(), p)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if board.Title != "The Moon Kite" {
		t.Errorf("title = %q", board.Title)
	}
	if len(board.Scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(board.Scenes))
	}
	if board.Scenes[1].Prompt != fallbackScenePrompt {
		t.Errorf("empty prompt not defaulted: %q", board.Scenes[1].Prompt)
	}
	if board.Engine != EngineOllama {
		t.Errorf("engine = %q", board.Engine)
	}
	want := sceneSeconds(p.Minutes, p.Scenes)
	if board.Scenes[0].Duration != want {
		t.Errorf("scene duration = %v, want %v", board.Scenes[0].Duration, want)
	}
}

func TestOllamaGenerateFencedJSON(t *testing.T) {
	srv := serveGenerate(t, "Here is your story:\n```json\n"+
		`{"title":"T","scenes":[{"text":"a","prompt":"b"}]}`+"\n```")
	defer srv.Close()

	board, err := NewOllama(srv.URL, "m").Generate(context.Background(), DefaultParams())
	if err != nil {
		t.Fatalf("fenced JSON not handled: %v", err)
	}
	if len(board.Scenes) != 1 {
		t.Errorf("got %d scenes, want 1", len(board.Scenes))
	}
}

func TestOllamaGenerateTruncatesExtraScenes(t *testing.T) {
	scenes := `[`
	for i := 0; i < 25; i++ {
		if i > 0 {
			scenes += ","
		}
		scenes += `{"text":"s","prompt":"p"}`
	}
	scenes += `]`
	srv := serveGenerate(t, `{"title":"T","scenes":`+scenes+`}`)
	defer srv.Close()

	p := DefaultParams()
	board, err := NewOllama(srv.URL, "m").Generate(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(board.Scenes) != p.Scenes {
		t.Errorf("got %d scenes, want truncation to %d", len(board.Scenes), p.Scenes)
	}
}

func TestOllamaGenerateBadOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"prose only", "Once upon a time there was no JSON at all."},
		{"no scenes", `{"title":"T","scenes":[]}`},
		{"broken json", `{"title":"T","scenes":[{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveGenerate(t, tt.response)
			defer srv.Close()

			if _, err := NewOllama(srv.URL, "m").Generate(context.Background(), DefaultParams()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestOllamaGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m").Generate(context.Background(), DefaultParams())
	if err == nil {
		t.Fatal("expected an error on HTTP 500")
	}
}

func TestGenerateAutoFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := DefaultParams()
	board, err := Generate(context.Background(), p, EngineAuto, NewOllama(srv.URL, "m"))
	if err != nil {
		t.Fatalf("auto engine should degrade, got error: %v", err)
	}
	if board.Engine != EngineRules {
		t.Errorf("engine = %q, want %q", board.Engine, EngineRules)
	}
}

func TestGenerateExplicitOllamaPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := Generate(context.Background(), DefaultParams(), EngineOllama, NewOllama(srv.URL, "m")); err == nil {
		t.Error("explicit ollama engine should surface failures")
	}
}

func TestGenerateUnknownEngine(t *testing.T) {
	if _, err := Generate(context.Background(), DefaultParams(), "gpt9000", nil); err == nil {
		t.Error("unknown engine accepted")
	}
}

func TestNewOllamaDefaults(t *testing.T) {
	o := NewOllama("", "")
	if o.API() != DefaultOllamaAPI {
		t.Errorf("api = %q, want %q", o.API(), DefaultOllamaAPI)
	}
	if o.Model() != DefaultOllamaModel {
		t.Errorf("model = %q, want %q", o.Model(), DefaultOllamaModel)
	}
}

func TestOllamaAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if !NewOllama(srv.URL, "m").Available(context.Background()) {
		t.Error("running server reported unavailable")
	}

	srv.Close()
	if NewOllama(srv.URL, "m").Available(context.Background()) {
		t.Error("closed server reported available")
	}
}
