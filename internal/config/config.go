package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for the PixShare share-link service. Region,
// bucket and table locations that the original deployment kept as ambient
// globals are explicit here and passed into constructors at process start.
type Config struct {
	// Server configuration
	Listen   string `mapstructure:"listen"`
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`

	// Base URL of the photo viewer frontend; share links are rendered as
	// {public_share_url}?linkId={linkId} (QR endpoint encodes this form).
	PublicShareURL string `mapstructure:"public_share_url"`

	// TLS configuration
	EnableTLS bool   `mapstructure:"enable_tls"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`

	CORS    CORSConfig    `mapstructure:"cors"`
	Store   StoreConfig   `mapstructure:"store"`
	Issuer  IssuerConfig  `mapstructure:"issuer"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CORSConfig defines the allowed frontend origin
type CORSConfig struct {
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// StoreConfig selects the share record store backend
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // badger, sqlite
}

// IssuerConfig configures the presigned URL issuer
type IssuerConfig struct {
	Backend   string `mapstructure:"backend"` // s3, local
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"` // photo host for local, optional override for s3
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// AuthConfig defines bearer-token verification configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Load loads configuration from flags, an optional config file and
// PIXSHARE_* environment variables.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("PIXSHARE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	// NO default for data_dir - must be explicitly configured
	v.SetDefault("log_level", "info")
	v.SetDefault("public_share_url", "http://localhost:5173/view")

	v.SetDefault("enable_tls", false)

	v.SetDefault("cors.allowed_origin", "*")

	v.SetDefault("store.backend", "badger")

	v.SetDefault("issuer.backend", "local")
	v.SetDefault("issuer.region", "ap-southeast-5")
	v.SetDefault("issuer.bucket", "pixshare-photos")
	v.SetDefault("issuer.endpoint", "http://localhost:9000")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":     "listen",
		"data-dir":   "data_dir",
		"log-level":  "log_level",
		"enable-tls": "enable_tls",
		"cert-file":  "cert_file",
		"key-file":   "key_file",
	}

	for flag, key := range flags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required: specify via --data-dir flag, config file, or PIXSHARE_DATA_DIR environment variable")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	switch cfg.Store.Backend {
	case "badger", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q (want badger or sqlite)", cfg.Store.Backend)
	}

	switch cfg.Issuer.Backend {
	case "s3":
		if cfg.Issuer.Bucket == "" {
			return fmt.Errorf("issuer.bucket is required for the s3 issuer")
		}
		if cfg.Issuer.AccessKey == "" || cfg.Issuer.SecretKey == "" {
			return fmt.Errorf("issuer.access_key and issuer.secret_key are required for the s3 issuer")
		}
	case "local":
		if cfg.Issuer.Endpoint == "" {
			return fmt.Errorf("issuer.endpoint is required for the local issuer")
		}
		// Local credentials can be generated; URLs only need to verify
		// against this process's own secret.
		if cfg.Issuer.AccessKey == "" {
			cfg.Issuer.AccessKey = "pixshare-local"
		}
		if cfg.Issuer.SecretKey == "" {
			cfg.Issuer.SecretKey = generateRandomHex(32)
		}
	default:
		return fmt.Errorf("unknown issuer backend %q (want s3 or local)", cfg.Issuer.Backend)
	}

	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not specified")
		}
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = generateRandomHex(32)
	}

	return nil
}

func generateRandomHex(bytes int) string {
	b := make([]byte, bytes)
	rand.Read(b)
	return hex.EncodeToString(b)
}
