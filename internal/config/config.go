// Package config loads static, per-worker configuration the way the
// teacher's worker did: viper, a config.yml searched on a few well-known
// paths, and RENDERFLEET_-prefixed environment overrides, with env always
// winning over file and file always winning over defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Scripts names the three external renderer scripts a worker invokes.
type Scripts struct {
	ImageGen string `mapstructure:"img_gen"`
	VideoGen string `mapstructure:"vid_gen"`
	Refresh  string `mapstructure:"refresh"`
}

// Config holds all static configuration required by a worker process.
type Config struct {
	WorkerID      string  `mapstructure:"worker_id"`
	InitialRole   string  `mapstructure:"initial_role"`
	SyncthingRoot string  `mapstructure:"syncthing_root"`
	RendererCmd   string  `mapstructure:"renderer_command"`
	Scripts       Scripts `mapstructure:"scripts"`
	LogLevel      string  `mapstructure:"log_level"`
	LogJSON       bool    `mapstructure:"log_json"`
}

// Load reads configuration from config.yml (searched under path, the
// current directory, and ./config) and environment variables. Priority:
// env vars > config file > defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("initial_role", "img_worker")
	v.SetDefault("renderer_command", "actexec")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RENDERFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SyncthingRoot == "" {
		return errors.New("configuration 'syncthing_root' is required")
	}
	switch cfg.InitialRole {
	case "img_worker", "vid_worker", "img_lead", "vid_lead":
	default:
		return fmt.Errorf("configuration 'initial_role' %q is not one of img_worker, vid_worker, img_lead, vid_lead", cfg.InitialRole)
	}
	if cfg.Scripts.ImageGen == "" || cfg.Scripts.VideoGen == "" {
		return errors.New("configuration 'scripts.img_gen' and 'scripts.vid_gen' are required")
	}

	if cfg.WorkerID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("worker_id not set and unable to retrieve hostname: %w", err)
		}
		cfg.WorkerID = hostname
	}
	return nil
}
