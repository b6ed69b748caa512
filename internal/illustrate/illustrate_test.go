package illustrate

import (
	"context"
	"errors"
	"image"
	"reflect"
	"testing"
)

type stubIllustrator struct {
	name  string
	calls int
	err   error
}

func (s *stubIllustrator) Name() string                   { return s.name }
func (s *stubIllustrator) Available(context.Context) bool { return true }

func (s *stubIllustrator) Illustrate(ctx context.Context, prompt string, w, h int) (image.Image, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type memStore struct {
	data map[string][]byte
	hits int
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(key string) ([]byte, bool) {
	data, ok := m.data[key]
	if ok {
		m.hits++
	}
	return data, ok
}

func (m *memStore) Put(key string, data []byte) error {
	m.data[key] = data
	return nil
}

func TestChainFallsBack(t *testing.T) {
	broken := &stubIllustrator{name: "broken", err: errors.New("boom")}
	chain := NewChain(broken, NewCard())

	img, err := chain.Illustrate(context.Background(), foxPrompt, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("bounds = %v", b)
	}
	if broken.calls != 1 {
		t.Errorf("broken calls = %d, want 1", broken.calls)
	}
}

func TestChainSurfacesFailure(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain(&stubIllustrator{name: "broken", err: boom})

	_, err := chain.Illustrate(context.Background(), "x", 8, 8)
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped cause", err)
	}
}

func TestChainHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ctxErr := &stubIllustrator{name: "slow", err: ctx.Err()}
	fallback := &stubIllustrator{name: "fallback"}
	_, err := NewChain(ctxErr, fallback).Illustrate(ctx, "x", 8, 8)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if fallback.calls != 0 {
		t.Error("chain kept going after cancellation")
	}
}

func TestChainCaches(t *testing.T) {
	stub := &stubIllustrator{name: "stub"}
	store := newMemStore()
	chain := NewChain(stub).WithCache(store)

	for i := 0; i < 2; i++ {
		img, err := chain.Illustrate(context.Background(), "a cozy fox", 16, 8)
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
			t.Errorf("bounds = %v", b)
		}
	}
	if stub.calls != 1 {
		t.Errorf("illustrator calls = %d, want 1", stub.calls)
	}
	if store.hits != 1 {
		t.Errorf("cache hits = %d, want 1", store.hits)
	}
}

func TestArtKey(t *testing.T) {
	base := artKey("fox", 10, 20)
	for _, other := range []string{
		artKey("owl", 10, 20),
		artKey("fox", 20, 10),
		artKey("fox", 10, 21),
	} {
		if other == base {
			t.Errorf("key collision: %s", other)
		}
	}
	if artKey("fox", 10, 20) != base {
		t.Error("key is not stable")
	}
}

func TestNewChainFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		wantErr bool
	}{
		{"auto without sd", Config{Engine: EngineAuto}, []string{EngineCard}, false},
		{"auto with sd", Config{Engine: EngineAuto, SD: SDConfig{API: "http://localhost:7860"}}, []string{EngineSD, EngineCard}, false},
		{"default engine", Config{}, []string{EngineCard}, false},
		{"explicit card", Config{Engine: EngineCard}, []string{EngineCard}, false},
		{"explicit sd", Config{Engine: EngineSD, SD: SDConfig{API: "http://localhost:7860"}}, []string{EngineSD}, false},
		{"sd without api", Config{Engine: EngineSD}, nil, true},
		{"unknown engine", Config{Engine: "crayon"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := chain.Names(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Names() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad engine", func(c *Config) { c.Engine = "crayon" }, true},
		{"steps out of range", func(c *Config) { c.SD.Steps = 151 }, true},
		{"cfg out of range", func(c *Config) { c.SD.CFGScale = 31 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
