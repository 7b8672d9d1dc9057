package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"platecheck/lib/telemetry"
)

type CsgtConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	RequestDelay     time.Duration `mapstructure:"request_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	CloudflareBypass bool          `mapstructure:"cloudflare_bypass"`
	DebugDumpDir     string        `mapstructure:"debug_dump_dir"`
}

type SolverConfig struct {
	Method    string        `mapstructure:"method"`
	PromptDir string        `mapstructure:"prompt_dir"`
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Listen         string           `mapstructure:"listen"`
	DatabasePath   string           `mapstructure:"database_path"`
	LockPath       string           `mapstructure:"lock_path"`
	ImageDir       string           `mapstructure:"image_dir"`
	JobTimeout     time.Duration    `mapstructure:"job_timeout"`
	AllowedOrigins []string         `mapstructure:"allowed_origins"`
	Csgt           CsgtConfig       `mapstructure:"csgt"`
	Solver         SolverConfig     `mapstructure:"solver"`
	Telemetry      telemetry.Config `mapstructure:"telemetry"`
}

// loadConfig reads an optional yaml file, overlaid by PLATECHECK_*
// environment variables.
func loadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("listen", ":8090")
	v.SetDefault("database_path", "platecheck.db")
	v.SetDefault("lock_path", "platecheckd.lock")
	v.SetDefault("image_dir", "")
	v.SetDefault("job_timeout", "5m")
	v.SetDefault("solver.method", "ocr")
	v.SetDefault("csgt.request_delay", "2s")

	v.SetEnvPrefix("PLATECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("platecheckd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return config, nil
}
