package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Quality     string  `mapstructure:"quality"`
	CacheDir    string  `mapstructure:"cache_dir"`
	Database    string  `mapstructure:"database"`
	UseASTC     bool    `mapstructure:"use_astc"`
	ASTCQuality float32 `mapstructure:"astc_quality"`
	Workers     int     `mapstructure:"workers"`
	LogLevel    string  `mapstructure:"log_level"`
	LogFormat   string  `mapstructure:"log_format"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	// Set defaults
	viper.SetDefault("quality", "HD")
	viper.SetDefault("database", "bdroidx.db")
	viper.SetDefault("use_astc", true)
	viper.SetDefault("astc_quality", 60.0)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// Config file handling
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName("bdroidx")
		viper.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateQuality(cfg.Quality); err != nil {
		return nil, fmt.Errorf("invalid quality configuration: %w", err)
	}

	return &cfg, nil
}

func validateQuality(quality string) error {
	switch quality {
	case "HD", "SD":
		return nil
	}
	return fmt.Errorf("quality must be HD or SD, got %q", quality)
}
