package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"uplink/internal/app"
	"uplink/internal/config"
	"uplink/internal/journal"
	"uplink/internal/logger"
	"uplink/internal/progress"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "uplink [paths...]",
	Short: "Upload local files to S3-compatible object storage",
	Long: `A concurrent batch uploader for S3-compatible object storage with
bounded parallelism, retry with exponential backoff, resumable transfers
for large files, and optional local cleanup after upload.

Paths are resolved relative to the source root and may name files or
directories; directories are uploaded recursively.`,
	Args: cobra.ArbitraryArgs,
	RunE: runUpload,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent upload batches from the local journal",
	RunE:  runHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	// Store flags
	rootCmd.Flags().String("endpoint", "", "object storage endpoint")
	rootCmd.Flags().String("access-key", "", "access key")
	rootCmd.Flags().String("secret-key", "", "secret key")
	rootCmd.Flags().Bool("secure", false, "use HTTPS")
	rootCmd.Flags().String("bucket", "", "destination bucket (required)")
	rootCmd.Flags().String("key-prefix", "", "global key prefix for all uploads")
	rootCmd.Flags().String("credentials-file", "", "AWS-style shared credentials file (replaces access/secret key)")
	rootCmd.Flags().String("project-id", "", "project tag stored as object metadata")

	// Transfer flags
	rootCmd.Flags().Int("parallelism", 16, "number of concurrent uploads")
	rootCmd.Flags().Int("max-retries", 5, "maximum retry attempts per file")
	rootCmd.Flags().Int64("resumable-threshold", 5*1024*1024, "file size in bytes above which uploads are resumable")
	rootCmd.Flags().Int64("chunk-size", 8*1024*1024, "resumable upload part size in bytes")
	rootCmd.Flags().Int("retry-backoff-ms", 1000, "base retry backoff in milliseconds")
	rootCmd.Flags().Bool("send-content-md5", true, "send MD5 checksums for integrity verification")
	rootCmd.Flags().Int("status-interval-secs", 10, "seconds between periodic progress lines (0 disables)")

	// Source flags
	rootCmd.Flags().String("root", "", "local directory paths are relative to")
	rootCmd.Flags().String("prefix", "", "per-run key prefix under the global prefix")
	rootCmd.Flags().Bool("remove-after-upload", false, "delete local files after a fully successful batch")
	rootCmd.Flags().Bool("dry-run", false, "list what would be uploaded without transferring")

	// Journal flags
	rootCmd.Flags().String("journal", "", "batch history database file")
	rootCmd.Flags().Bool("no-journal", false, "disable batch history")

	rootCmd.Flags().String("log-level", "info", "log level (debug/info/warn/error)")
	rootCmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address (empty disables)")

	historyCmd.Flags().String("journal", "./uplink-history.db", "batch history database file")
	historyCmd.Flags().Int("limit", 20, "number of batches to show")

	rootCmd.AddCommand(historyCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	uploader, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("received shutdown signal, stopping after in-flight uploads")
		cancel()
	}()

	err = uploader.Run(ctx, args)

	if closeErr := uploader.Close(); closeErr != nil {
		log.Error("failed to close uploader", zap.Error(closeErr))
	}

	return err
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("journal")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := journal.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer store.Close()

	records, err := store.ListRecent(limit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no batches recorded")
		return nil
	}

	fmt.Printf("%-20s  %-9s  %9s  %10s  %s\n", "FINISHED", "OUTCOME", "FILES", "BYTES", "PREFIX")
	for _, rec := range records {
		fmt.Printf("%-20s  %-9s  %4d/%4d  %10s  %s\n",
			rec.FinishedAt.Format("2006-01-02 15:04:05"),
			rec.Outcome,
			rec.Uploaded,
			rec.TotalFiles,
			progress.FormatBytes(rec.Bytes),
			rec.Prefix,
		)
		if rec.Error != "" {
			fmt.Printf("%22s%s\n", "", rec.Error)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
