package cmd

import (
	download "github.com/cozy-creator/img2img/cmd/img2img/download"
	serve "github.com/cozy-creator/img2img/cmd/img2img/serve"
	"github.com/cozy-creator/img2img/internal/app"
	"github.com/cozy-creator/img2img/internal/config"
	"github.com/cozy-creator/img2img/internal/generator"
	"github.com/cozy-creator/img2img/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v7"
	"go.uber.org/zap"
)

var Cmd = &cobra.Command{
	Use:   "img2img",
	Short: "Restyle an image with a diffusion pipeline",
	Long: "Loads " + config.DefaultModelID + " and repaints " + config.DefaultSource +
		" guided by a text prompt. Output is written to the assets directory.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		return config.LoadEnvAndConfigFiles(viper.GetViper())
	},
	RunE: runGenerate,
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("home", config.DefaultHome, "Path to the img2img home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("home", pflags.Lookup("home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(download.Cmd, serve.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	log, err := logger.InitLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	progress := mpb.NewWithContext(ctx, mpb.WithWidth(60))

	options := []app.OptionFunc{
		app.WithLogger(log),
		app.WithConfiguredBackend(),
		app.WithProgress(progress),
		app.WithFileStorage(),
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

	dest, err := a.GenerateToFile(ctx, generator.Params{Source: cfg.Source, Prompt: cfg.Prompt}, cfg.Output)
	if err != nil {
		return err
	}

	log.Info("Saved output image", zap.String("path", dest))
	return nil
}
