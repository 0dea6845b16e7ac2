package cmd

import (
	"fmt"

	"github.com/cozy-creator/img2img/internal/config"
	"github.com/cozy-creator/img2img/internal/models"
	"github.com/cozy-creator/img2img/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "download",
	Short: "Download a diffusers pipeline from hugging face into the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.GetConfig()
		if err != nil {
			return err
		}

		log, err := logger.InitLogger(cfg.Environment)
		if err != nil {
			return err
		}
		defer log.Sync()

		repoID, err := cmd.Flags().GetString("repo-id")
		if err != nil {
			return err
		}
		if repoID == "" {
			repoID = cfg.ModelID
		}

		cacheDir, err := cmd.Flags().GetString("cache-dir")
		if err != nil {
			return err
		}
		if cacheDir == "" {
			cacheDir = cfg.HFCacheDir
		}

		forceDownload, err := cmd.Flags().GetBool("force-download")
		if err != nil {
			return err
		}

		resolver := models.NewResolver(models.WithCacheDir(cacheDir), models.WithLogger(log))
		if forceDownload {
			if err := resolver.Download(cmd.Context(), repoID); err != nil {
				return err
			}
		}

		snapshot, err := resolver.Resolve(cmd.Context(), repoID)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Download complete:", snapshot)
		return nil
	},
}

func init() {
	Cmd.Flags().String("repo-id", "", "The ID of the model repository to download, defaults to the configured model")
	Cmd.Flags().String("cache-dir", "", "The directory to cache the downloaded repo")
	Cmd.Flags().Bool("force-download", false, "Download even if a snapshot is already cached")
}
