package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/logger"
	"github.com/Rorical/ragchat/internal/mockbackend"
)

var (
	mockAddr  string
	mockOpts  = mockbackend.DefaultOptions()
	mockLevel string
)

var mockBackendCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Serve a fake RAG backend for local testing",
	Long: `Serve a fake RAG backend under /api. Replies are streamed in small byte
chunks that split multi-byte characters, and /status walks through an
ingestion cycle after an upload and ingest.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		zl, err := logger.NewConsole(mockLevel)
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer zl.Sync()

		srv := &http.Server{
			Addr:              mockAddr,
			Handler:           mockbackend.NewServer(mockOpts, zl).Router(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			zl.Info("mock backend listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Fatal("mock backend failed", zap.Error(err))
			}
		}()

		<-ctx.Done()
		zl.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Error("forced shutdown", zap.Error(err))
		}
	},
}

func init() {
	mockBackendCmd.Flags().StringVar(&mockAddr, "addr", ":8000", "listen address")
	mockBackendCmd.Flags().IntVar(&mockOpts.ChunkSize, "chunk-size", mockOpts.ChunkSize, "reply bytes per flush")
	mockBackendCmd.Flags().DurationVar(&mockOpts.ChunkDelay, "chunk-delay", mockOpts.ChunkDelay, "delay between flushes")
	mockBackendCmd.Flags().IntVar(&mockOpts.IngestSteps, "ingest-steps", mockOpts.IngestSteps, "status polls an ingestion takes")
	mockBackendCmd.Flags().StringVar(&mockLevel, "log-level", "info", "log level")
	rootCmd.AddCommand(mockBackendCmd)
}
