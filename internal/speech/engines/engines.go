// Package engines provides the text-to-speech engine implementations
// behind the speech package. Engines register themselves by name; the
// Chain helper turns a configured preference into an ordered engine
// list for the synthesizer.
package engines

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fablecast/fablecast/internal/speech"
)

// Factory builds an engine from configuration.
type Factory func(cfg speech.Config) (speech.Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available under name. Engines call this
// from init; a duplicate name panics early.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("speech engine registered twice: " + name)
	}
	registry[name] = factory
}

// New builds the named engine.
func New(name string, cfg speech.Config) (speech.Engine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tts engine %q (have %v)", name, Names())
	}
	return factory(cfg)
}

// Names lists registered engine names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain resolves cfg.Engine into constructed engines in fallback
// order. Construction errors on optional chain members are tolerated;
// an explicitly requested engine must construct.
func Chain(cfg speech.Config) ([]speech.Engine, error) {
	names, err := speech.ChainFor(cfg.Engine)
	if err != nil {
		return nil, err
	}

	explicit := len(names) == 1
	var chain []speech.Engine
	for _, name := range names {
		engine, err := New(name, cfg)
		if err != nil {
			if explicit {
				return nil, err
			}
			continue
		}
		chain = append(chain, engine)
	}
	if len(chain) == 0 {
		return nil, speech.ErrNoEngines
	}
	return chain, nil
}
