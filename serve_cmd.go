package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fablecast/fablecast/internal/bootstrap"
	"github.com/fablecast/fablecast/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the story studio web interface",
	Long: paragraph(
		fmt.Sprintf("\n%s a local web interface for building narrated story videos. Jobs queue behind a single render worker and stream their progress live to the browser.", keyword("Serve")),
	),
	Example: paragraph("fablecast serve\n" +
		"fablecast serve --host 0.0.0.0 --port 9000"),
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(*cobra.Command, []string) error {
	bootstrap.ApplyDefaults(voicesDir())

	cfg, err := server.ConfigFromEnv()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	assets, err := ensureDir(assetsFlag)
	if err != nil {
		return err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(assets, "renders.db")
	}

	store, err := server.OpenStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening render history: %w", err)
	}
	defer store.Close() //nolint:errcheck

	jobs := server.NewJobs(buildProducer, store)
	srv := server.New(cfg, jobs, store, assets, voicesDir())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default 127.0.0.1, or FABLECAST_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default 8501, or FABLECAST_PORT)")
}
