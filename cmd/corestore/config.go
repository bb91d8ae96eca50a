package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/backup"
)

const envPrefix = "CORESTORE"

// Config is the merged view of flags, CORESTORE_* environment variables and
// the optional config file, in that order of precedence.
type Config struct {
	Dir       string `mapstructure:"dir"`
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	Output    string `mapstructure:"output"`

	Store     string `mapstructure:"store"`
	StorePath string `mapstructure:"store-path"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	Insecure  bool   `mapstructure:"insecure"`
	DDBTable  string `mapstructure:"ddb-table"`

	Compression string `mapstructure:"compression"`
	FrameSize   int    `mapstructure:"frame-size"`
	Concurrency int    `mapstructure:"concurrency"`
	RateLimit   int64  `mapstructure:"rate-limit"`
	MemoryLimit int64  `mapstructure:"memory-limit"`
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.StringP("dir", "d", "", "storage directory")
	fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")
	fs.StringP("output", "o", "text", "output format (text, json)")

	fs.String("store", "local", "backup target (local, s3, minio)")
	fs.String("store-path", "", "local backup directory")
	fs.String("bucket", "", "s3/minio bucket")
	fs.String("prefix", "", "key prefix inside the bucket")
	fs.String("endpoint", "", "s3/minio endpoint")
	fs.String("region", "", "s3/minio region")
	fs.String("access-key", "", "minio access key")
	fs.String("secret-key", "", "minio secret key")
	fs.Bool("insecure", false, "disable TLS for minio")
	fs.String("ddb-table", "", "DynamoDB table for atomic CURRENT commits (s3 only)")

	fs.String("compression", backup.CompressionZSTD.String(), "frame compression (none, lz4, zstd)")
	fs.Int("frame-size", backup.DefaultFrameSize, "uncompressed frame size in bytes")
	fs.Int("concurrency", 0, "codec workers (0 = default)")
	fs.Int64("rate-limit", 0, "blob store throughput cap in bytes/s (0 = unlimited)")
	fs.Int64("memory-limit", backup.DefaultMemoryLimit, "frame bytes in flight")
}

func loadConfig(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	var cfg Config

	if err := v.BindPFlags(fs); err != nil {
		return cfg, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) logger() (*corestore.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	switch c.LogFormat {
	case "", "text":
		return corestore.NewTextLogger(level), nil
	case "json":
		return corestore.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
	}
}

func (c Config) backupOptions() ([]backup.Option, error) {
	comp, err := backup.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	return []backup.Option{
		backup.WithCompression(comp),
		backup.WithFrameSize(c.FrameSize),
		backup.WithConcurrency(c.Concurrency),
		backup.WithRateLimit(c.RateLimit),
		backup.WithMemoryLimit(c.MemoryLimit),
	}, nil
}

var errNoDir = errors.New("no storage directory: set --dir or CORESTORE_DIR")
