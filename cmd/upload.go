package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rorical/ragchat/internal/app"
	"github.com/Rorical/ragchat/internal/backend"
	"github.com/Rorical/ragchat/internal/config"
	"github.com/Rorical/ragchat/internal/logger"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file.zip]",
	Short: "Upload a data archive and start ingestion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.GetBackend() != config.BackendRAG {
			log.Fatalf("Profile '%s' uses the %s backend, which has no upload endpoint", cfg.CurrentName(), cfg.GetBackend())
		}

		zl, err := logger.NewConsole(cfg.GetLogLevel())
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer zl.Sync()

		client := app.NewBackendClient(cfg, zl)
		result := client.UploadAndIngest(context.Background(), args[0])
		fmt.Println(result)
		if result != backend.UploadIngestStarted {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
