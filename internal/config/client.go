package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ClientEnvPrefix prefixes every uploader environment variable, e.g. UPLOADER_SERVER.
const ClientEnvPrefix = "UPLOADER"

// ClientConfig drives the uploader CLI.
type ClientConfig struct {
	Server       string
	Token        string
	TargetPath   string
	RecordPath   string
	MaxSizeBytes int64
	Extensions   []string
	SourceTag    string
	Timeout      time.Duration
	Concurrency  int
	// ChunkSize is accepted for compatibility; transfers are always a single PUT.
	ChunkSize int64
	LogLevel  string
}

// BindClientFlags registers the uploader flags on fs and binds them, together with
// their UPLOADER_* environment variables, to v.
func BindClientFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("server", "http://localhost:8080", "Backend base URL")
	fs.String("token", "", "Bearer token for the backend")
	fs.String("target-path", "/api/get-upload-url/", "Route that issues signed upload URLs")
	fs.String("record-path", "/api/upload/", "Route that registers uploaded objects")
	fs.String("max-size", "100MiB", "Largest file accepted")
	fs.StringSlice("extensions", []string{"h5", "hdf5", "nc", "netcdf"}, "Allowed file extensions")
	fs.String("source-tag", "gcs", "upload_source value sent to the backend")
	fs.Duration("timeout", 30*time.Minute, "Timeout for a single upload attempt")
	fs.Int("concurrency", 1, "Files uploaded at the same time")
	fs.String("chunk-size", "5MiB", "Declared chunk size (unused)")
	fs.String("log-level", "warn", "Log level")

	v.SetEnvPrefix(ClientEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(fs)
}

// LoadClientConfig reads the bound values out of v.
func LoadClientConfig(v *viper.Viper) (*ClientConfig, error) {
	maxSize, err := humanize.ParseBytes(v.GetString("max-size"))
	if err != nil {
		return nil, fmt.Errorf("max-size: %w", err)
	}
	chunkSize, err := humanize.ParseBytes(v.GetString("chunk-size"))
	if err != nil {
		return nil, fmt.Errorf("chunk-size: %w", err)
	}

	cfg := &ClientConfig{
		Server:       strings.TrimSpace(v.GetString("server")),
		Token:        strings.TrimSpace(v.GetString("token")),
		TargetPath:   v.GetString("target-path"),
		RecordPath:   v.GetString("record-path"),
		MaxSizeBytes: int64(maxSize),
		Extensions:   splitList(v.GetStringSlice("extensions")),
		SourceTag:    v.GetString("source-tag"),
		Timeout:      v.GetDuration("timeout"),
		Concurrency:  v.GetInt("concurrency"),
		ChunkSize:    int64(chunkSize),
		LogLevel:     v.GetString("log-level"),
	}

	if cfg.Server == "" {
		return nil, errors.New("server not set")
	}
	if len(cfg.Extensions) == 0 {
		return nil, errors.New("extensions not set")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

// splitList accepts both repeated values and a single comma separated value,
// which is what an environment variable provides.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
