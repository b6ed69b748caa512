package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Environment variables honored at startup.
const (
	EnvLang        = "LANG"
	EnvEspeakVoice = "ESPEAK_VOICE"
	EnvPiperPath   = "PIPER_PATH"
	EnvPiperVoice  = "PIPER_VOICE"
)

// Fallback values applied when the variables above are unset.
const (
	DefaultLang        = "en_US.UTF-8"
	DefaultEspeakVoice = "en"

	// DefaultModelFile is the voice model looked up under the voices
	// directory when PIPER_VOICE is not set.
	DefaultModelFile = "en_US-amy-low.onnx"
)

// Var describes one environment variable after defaults were applied.
type Var struct {
	Name  string
	Value string
	// Set reports whether the variable is exported at all. Detection-gated
	// variables stay unset when their target is absent.
	Set bool
	// Defaulted reports whether Value came from a fallback rather than the
	// caller's environment.
	Defaulted bool
}

// Env is the resolved launcher environment.
type Env struct {
	Lang        Var
	EspeakVoice Var
	PiperPath   Var
	PiperVoice  Var
}

// Vars returns the resolved variables in declaration order.
func (e Env) Vars() []Var {
	return []Var{e.Lang, e.EspeakVoice, e.PiperPath, e.PiperVoice}
}

// ApplyDefaults resolves the launcher environment and exports it. LANG and
// ESPEAK_VOICE always end up non-empty. PIPER_PATH is exported only when a
// piper binary is found, and PIPER_VOICE only when the default model exists
// under voicesDir. Variables that are already set are left alone, so applying
// twice is a no-op.
func ApplyDefaults(voicesDir string) Env {
	var env Env

	env.Lang = exportDefault(EnvLang, DefaultLang)
	env.EspeakVoice = exportDefault(EnvEspeakVoice, DefaultEspeakVoice)

	env.PiperPath = Var{Name: EnvPiperPath}
	if v := os.Getenv(EnvPiperPath); v != "" {
		env.PiperPath = Var{Name: EnvPiperPath, Value: v, Set: true}
	} else if path, ok := FindPiper(); ok {
		_ = os.Setenv(EnvPiperPath, path)
		env.PiperPath = Var{Name: EnvPiperPath, Value: path, Set: true, Defaulted: true}
		log.Debug("piper binary detected", "path", path)
	}

	env.PiperVoice = Var{Name: EnvPiperVoice}
	if v := os.Getenv(EnvPiperVoice); v != "" {
		env.PiperVoice = Var{Name: EnvPiperVoice, Value: v, Set: true}
	} else if model := filepath.Join(voicesDir, DefaultModelFile); fileExists(model) {
		_ = os.Setenv(EnvPiperVoice, model)
		env.PiperVoice = Var{Name: EnvPiperVoice, Value: model, Set: true, Defaulted: true}
		log.Debug("default voice model detected", "model", model)
	}

	return env
}

func exportDefault(name, fallback string) Var {
	if v := os.Getenv(name); v != "" {
		return Var{Name: name, Value: v, Set: true}
	}
	_ = os.Setenv(name, fallback)
	return Var{Name: name, Value: fallback, Set: true, Defaulted: true}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
