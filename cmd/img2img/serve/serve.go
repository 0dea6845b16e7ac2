package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cozy-creator/img2img/internal/app"
	"github.com/cozy-creator/img2img/internal/config"
	"github.com/cozy-creator/img2img/internal/server"
	"github.com/cozy-creator/img2img/internal/services/filestorage"
	"github.com/cozy-creator/img2img/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve image-to-image generation over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", config.DefaultHost, "Host to run the server on")
	flags.String("environment", "development", "Environment configuration")
	flags.String("backend", config.DefaultBackend, "Generation backend: 'worker' or 'preview'")
	flags.String("device", "", "Device to load the pipeline on, detected when empty")
	flags.String("filesystem-type", config.FilesystemLocal, "Filesystem type: 'local' or 's3'")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("environment", flags.Lookup("environment"))
	viper.BindPFlag("backend", flags.Lookup("backend"))
	viper.BindPFlag("device", flags.Lookup("device"))
	viper.BindPFlag("filesystem_type", flags.Lookup("filesystem-type"))
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	log, err := logger.InitLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer log.Sync()

	options := []app.OptionFunc{
		app.WithLogger(log),
		app.WithConfiguredBackend(),
		app.WithFileStorage(filestorage.WithBaseURL(fmt.Sprintf("http://%s:%d/files", cfg.Host, cfg.Port))),
		app.WithFileUploader(4),
	}
	if cfg.Backend == config.BackendWorker {
		options = append(options, app.WithResolver())
	}
	options = append(options, app.WithPipeline())

	a, err := app.NewApp(cfg, options...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(a)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return srv.Stop(context.Background())
	}
}
