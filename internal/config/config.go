// Package config provides configuration types and loading for topicgate.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths       PathsConfig       `json:"paths"`
	Transport   TransportConfig   `json:"transport"`
	Destination DestinationConfig `json:"destination"`
	Policy      PolicyConfig      `json:"policy"`
	Relay       RelayConfig       `json:"relay"`
	Stream      StreamConfig      `json:"stream"`
}

// PathsConfig groups filesystem locations for durable state.
type PathsConfig struct {
	DataDir     string `json:"dataDir" envconfig:"DATA_DIR"`
	MappingFile string `json:"mappingFile" envconfig:"MAPPING_FILE"`
	CorrelateDB string `json:"correlateDb" envconfig:"CORRELATE_DB"`
	ChatLog     string `json:"chatLog" envconfig:"CHAT_LOG"`
}

// TransportConfig configures the destination forum transport.
type TransportConfig struct {
	BotToken    string        `json:"botToken" envconfig:"BOT_TOKEN"`
	APIBase     string        `json:"apiBase" envconfig:"API_BASE"`
	HTTPTimeout time.Duration `json:"httpTimeout" envconfig:"HTTP_TIMEOUT"`
}

// DestinationConfig identifies the forum all sources relay into.
type DestinationConfig struct {
	ChatID int64 `json:"chatId" envconfig:"CHAT_ID"`
}

// PolicyConfig controls source admission.
type PolicyConfig struct {
	ExcludedSenders []int64 `json:"excludedSenders" envconfig:"EXCLUDED_SENDERS"`
	AllowedSources  []int64 `json:"allowedSources" envconfig:"ALLOWED_SOURCES"`
	OnlyAllowList   bool    `json:"onlyAllowList" envconfig:"ONLY_ALLOW_LIST"`
}

// RelayConfig tunes the relay engine.
type RelayConfig struct {
	MaxMediaBytes int64         `json:"maxMediaBytes" envconfig:"MAX_MEDIA_BYTES"`
	Retention     time.Duration `json:"retention" envconfig:"RETENTION"`
	PurgeInterval time.Duration `json:"purgeInterval" envconfig:"PURGE_INTERVAL"`
	Workers       int           `json:"workers" envconfig:"WORKERS"`
}

// StreamConfig configures the optional Kafka audit stream.
type StreamConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.topicgate",
		},
		Transport: TransportConfig{
			APIBase:     "https://api.telegram.org",
			HTTPTimeout: 30 * time.Second,
		},
		Policy: PolicyConfig{
			// 777000 is the platform's service notification account.
			ExcludedSenders: []int64{777000},
		},
		Relay: RelayConfig{
			MaxMediaBytes: 50 << 20,
			Retention:     48 * time.Hour,
			PurgeInterval: time.Hour,
			Workers:       4,
		},
		Stream: StreamConfig{
			Enabled: false,
			Topic:   "topicgate.relay",
		},
	}
}
