package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".topicgate"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("TOPICGATE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	envconfig.Process("TOPICGATE_PATHS", &cfg.Paths)
	envconfig.Process("TOPICGATE_TRANSPORT", &cfg.Transport)
	envconfig.Process("TOPICGATE_DESTINATION", &cfg.Destination)
	envconfig.Process("TOPICGATE_POLICY", &cfg.Policy)
	envconfig.Process("TOPICGATE_RELAY", &cfg.Relay)
	envconfig.Process("TOPICGATE_STREAM", &cfg.Stream)

	// Legacy env var compatibility with the old relay deployment.
	if cfg.Transport.BotToken == "" {
		cfg.Transport.BotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	}

	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Paths.MappingFile)
	expandHome(&cfg.Paths.CorrelateDB)
	expandHome(&cfg.Paths.ChatLog)

	if cfg.Paths.MappingFile == "" {
		cfg.Paths.MappingFile = filepath.Join(cfg.Paths.DataDir, "topics_mapping.json")
	}
	if cfg.Paths.CorrelateDB == "" {
		cfg.Paths.CorrelateDB = filepath.Join(cfg.Paths.DataDir, "relay.db")
	}
	if cfg.Paths.ChatLog == "" {
		cfg.Paths.ChatLog = filepath.Join(cfg.Paths.DataDir, "chats_seen.csv")
	}
	if cfg.Relay.MaxMediaBytes <= 0 {
		cfg.Relay.MaxMediaBytes = DefaultConfig().Relay.MaxMediaBytes
	}
	if cfg.Relay.Retention <= 0 {
		cfg.Relay.Retention = DefaultConfig().Relay.Retention
	}
	if cfg.Relay.PurgeInterval <= 0 {
		cfg.Relay.PurgeInterval = DefaultConfig().Relay.PurgeInterval
	}
	if cfg.Relay.Workers <= 0 {
		cfg.Relay.Workers = DefaultConfig().Relay.Workers
	}

	return cfg, nil
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
