package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Store       StoreConfig    `yaml:"store"`
	Transfer    TransferConfig `yaml:"transfer"`
	Source      SourceConfig   `yaml:"source"`
	Journal     JournalConfig  `yaml:"journal"`
	LogLevel    string         `yaml:"log_level"`
	MetricsAddr string         `yaml:"metrics_addr"`
}

// StoreConfig represents the S3-compatible destination bucket
type StoreConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Secure          bool   `yaml:"secure"`
	Bucket          string `yaml:"bucket"`
	KeyPrefix       string `yaml:"key_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// TransferConfig tunes the upload worker pool
type TransferConfig struct {
	Parallelism        int   `yaml:"parallelism"`
	MaxRetries         int   `yaml:"max_retries"`
	ResumableThreshold int64 `yaml:"resumable_threshold"`
	ChunkSize          int64 `yaml:"chunk_size"`
	RetryBackoffMs     int   `yaml:"retry_backoff_ms"`
	SendContentMD5     bool  `yaml:"send_content_md5"`
	StatusIntervalSecs int   `yaml:"status_interval_secs"`
}

// SourceConfig describes what to upload
type SourceConfig struct {
	Root              string   `yaml:"root"`
	Paths             []string `yaml:"paths"`
	DestinationPrefix string   `yaml:"destination_prefix"`
	RemoveAfterUpload bool     `yaml:"remove_after_upload"`
	DryRun            bool     `yaml:"dry_run"`
}

// JournalConfig controls the local batch history database
type JournalConfig struct {
	Path    string `yaml:"path"`
	Disable bool   `yaml:"disable"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Transfer: TransferConfig{
			Parallelism:        16,
			MaxRetries:         5,
			ResumableThreshold: 5 * 1024 * 1024,
			ChunkSize:          8 * 1024 * 1024,
			RetryBackoffMs:     1000,
			SendContentMD5:     true,
			StatusIntervalSecs: 10,
		},
		Journal: JournalConfig{
			Path: "./uplink-history.db",
		},
	}

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("endpoint") {
		cfg.Store.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("access-key") {
		cfg.Store.AccessKey, _ = flags.GetString("access-key")
	}
	if flags.Changed("secret-key") {
		cfg.Store.SecretKey, _ = flags.GetString("secret-key")
	}
	if flags.Changed("secure") {
		cfg.Store.Secure, _ = flags.GetBool("secure")
	}
	if flags.Changed("bucket") {
		cfg.Store.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("key-prefix") {
		cfg.Store.KeyPrefix, _ = flags.GetString("key-prefix")
	}
	if flags.Changed("credentials-file") {
		cfg.Store.CredentialsFile, _ = flags.GetString("credentials-file")
	}
	if flags.Changed("project-id") {
		cfg.Store.ProjectID, _ = flags.GetString("project-id")
	}

	if flags.Changed("parallelism") {
		cfg.Transfer.Parallelism, _ = flags.GetInt("parallelism")
	}
	if flags.Changed("max-retries") {
		cfg.Transfer.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("resumable-threshold") {
		cfg.Transfer.ResumableThreshold, _ = flags.GetInt64("resumable-threshold")
	}
	if flags.Changed("chunk-size") {
		cfg.Transfer.ChunkSize, _ = flags.GetInt64("chunk-size")
	}
	if flags.Changed("retry-backoff-ms") {
		cfg.Transfer.RetryBackoffMs, _ = flags.GetInt("retry-backoff-ms")
	}
	if flags.Changed("send-content-md5") {
		cfg.Transfer.SendContentMD5, _ = flags.GetBool("send-content-md5")
	}
	if flags.Changed("status-interval-secs") {
		cfg.Transfer.StatusIntervalSecs, _ = flags.GetInt("status-interval-secs")
	}

	if flags.Changed("root") {
		cfg.Source.Root, _ = flags.GetString("root")
	}
	if flags.Changed("prefix") {
		cfg.Source.DestinationPrefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("remove-after-upload") {
		cfg.Source.RemoveAfterUpload, _ = flags.GetBool("remove-after-upload")
	}
	if flags.Changed("dry-run") {
		cfg.Source.DryRun, _ = flags.GetBool("dry-run")
	}

	if flags.Changed("journal") {
		cfg.Journal.Path, _ = flags.GetString("journal")
	}
	if flags.Changed("no-journal") {
		cfg.Journal.Disable, _ = flags.GetBool("no-journal")
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Store.Endpoint == "" {
		return fmt.Errorf("store endpoint is required")
	}
	if c.Store.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Store.CredentialsFile == "" {
		if c.Store.AccessKey == "" {
			return fmt.Errorf("access key is required when no credentials file is set")
		}
		if c.Store.SecretKey == "" {
			return fmt.Errorf("secret key is required when no credentials file is set")
		}
	}

	if c.Transfer.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Transfer.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Transfer.ResumableThreshold <= 0 {
		return fmt.Errorf("resumable threshold must be positive")
	}
	if c.Transfer.ChunkSize < 5*1024*1024 { // 5MB minimum part size for S3
		return fmt.Errorf("chunk size must be at least 5MB")
	}
	if c.Transfer.RetryBackoffMs <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}

	if !c.Journal.Disable && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required unless the journal is disabled")
	}

	return nil
}
