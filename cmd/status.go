package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rorical/ragchat/internal/app"
	"github.com/Rorical/ragchat/internal/config"
	"github.com/Rorical/ragchat/internal/logger"
	"github.com/Rorical/ragchat/ui/components"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch the backend ingestion status once",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.GetBackend() != config.BackendRAG {
			fmt.Println(components.StatusLine(nil, false))
			return
		}

		zl, err := logger.NewConsole(cfg.GetLogLevel())
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer zl.Sync()

		client := app.NewBackendClient(cfg, zl)
		snap, err := client.FetchStatus(context.Background())
		if err != nil {
			log.Fatalf("Failed to fetch status from %s: %v", cfg.GetBaseURL(), err)
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				log.Fatalf("Failed to encode status: %v", err)
			}
			return
		}
		fmt.Println(components.StatusLine(&snap, true))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status snapshot")
	rootCmd.AddCommand(statusCmd)
}
