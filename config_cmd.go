package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# glamour style for storyboard previews (default "auto")
style: "auto"
# where rendered videos and scene assets land
assets_dir: "outputs"
# where piper voice models (.onnx + .onnx.json) live
voices_dir: "voices"
# directory holding the python virtual environment for the moviepy engine
venv_dir: "."

story:
  # story engine: rules, ollama, or auto (ollama with rules fallback)
  engine: "auto"
  ollama:
    api: "http://127.0.0.1:11434"
    model: "llama3.1:8b"

tts:
  # narration engine: piper, espeak, mock, or auto
  engine: "auto"
  # speaking rate multiplier (0.5 to 2.0)
  speed: 1.0
  # voice: ""            # piper model name or espeak voice code
  piper:
    # path: "/usr/local/bin/piper"
    # model: "voices/en_US-amy-low.onnx"
  espeak:
    # voice: "en"
    # rate: 175

art:
  # scene art engine: sd, card, or auto (sd with card fallback)
  engine: "auto"
  sd:
    # api: "http://127.0.0.1:7860"
    steps: 25
    sampler: "Euler a"
    cfg_scale: 6.5

render:
  # video engine: ffmpeg or moviepy (moviepy needs the venv from setup)
  engine: "ffmpeg"
  fps: 30
  preset: "medium"
  threads: 4
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the fablecast config file",
	Long:    paragraph(fmt.Sprintf("\n%s the fablecast config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("fablecast config\nfablecast config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Fablecast", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
