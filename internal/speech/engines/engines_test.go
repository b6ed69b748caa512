package engines

import (
	"testing"

	"github.com/fablecast/fablecast/internal/speech"
)

func TestRegistryHasAllEngines(t *testing.T) {
	names := Names()
	want := map[string]bool{
		speech.EnginePiper:  false,
		speech.EngineEspeak: false,
		speech.EngineMock:   false,
	}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("engine %q not registered (have %v)", name, names)
		}
	}
}

func TestNewUnknownEngine(t *testing.T) {
	if _, err := New("festival", speech.DefaultConfig()); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestChainAuto(t *testing.T) {
	cfg := speech.DefaultConfig()
	chain, err := Chain(cfg)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) == 0 {
		t.Fatal("auto chain is empty")
	}
	// Mock closes the chain so auto always has a working engine.
	last := chain[len(chain)-1]
	if last.Name() != speech.EngineMock {
		t.Errorf("last engine = %q, want mock", last.Name())
	}
}

func TestChainExplicitMock(t *testing.T) {
	cfg := speech.DefaultConfig()
	cfg.Engine = speech.EngineMock
	chain, err := Chain(cfg)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 1 || chain[0].Name() != speech.EngineMock {
		t.Errorf("explicit chain = %v", namesOf(chain))
	}
}

func TestChainUnknownEngine(t *testing.T) {
	cfg := speech.DefaultConfig()
	cfg.Engine = "festival"
	if _, err := Chain(cfg); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func namesOf(chain []speech.Engine) []string {
	names := make([]string, len(chain))
	for i, e := range chain {
		names[i] = e.Name()
	}
	return names
}
