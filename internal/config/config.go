package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level

	// Device credentials. Opaque strings; format validation belongs to the
	// protocol layer, presence is checked here.
	Address string `json:"address"`
	Port    int    `json:"port"`
	Token   string `json:"token"`
	Key     string `json:"key"`

	PollIntervalSeconds   int    `json:"poll_interval_seconds"`
	SettleDelayMS         int    `json:"settle_delay_ms"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	Unit                  string `json:"unit"`

	ListenPort int    `json:"listen_port"`
	DBPath     string `json:"db_path"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic             string `json:"ntfy_topic"`
	FailureAlertThreshold int    `json:"failure_alert_threshold"`

	MQTTBroker      string `json:"mqtt_broker"`
	MQTTUsername    string `json:"mqtt_username"`
	MQTTPassword    string `json:"mqtt_password"`
	MQTTTopicPrefix string `json:"mqtt_topic_prefix"`
}

// Load reads the JSON config file, applies environment credential overrides
// and defaults, and validates. Configuration absence is the one fatal
// startup condition, hence the panics.
func Load(path string, logLevel string) Config {
	var cfg Config
	cfg.ConfigFile = path
	cfg.LogLevel = ParseLogLevel(logLevel)

	file, err := os.Open(path)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	// Credentials may come from the environment instead of the file.
	if v := os.Getenv("SENVILLE_IP"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("SENVILLE_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("SENVILLE_KEY"); v != "" {
		cfg.Key = v
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func ParseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 5
	}
	if cfg.SettleDelayMS == 0 {
		cfg.SettleDelayMS = 1000
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 5
	}
	if cfg.Unit == "" {
		cfg.Unit = "F"
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 8530
	}
	if cfg.FailureAlertThreshold == 0 {
		cfg.FailureAlertThreshold = 3
	}
	if cfg.MQTTTopicPrefix == "" {
		cfg.MQTTTopicPrefix = "senville"
	}
}

func (cfg *Config) validate() {
	var missing []string
	if cfg.Address == "" {
		missing = append(missing, "address (or SENVILLE_IP)")
	}
	if cfg.Token == "" {
		missing = append(missing, "token (or SENVILLE_TOKEN)")
	}
	if cfg.Key == "" {
		missing = append(missing, "key (or SENVILLE_KEY)")
	}
	if len(missing) > 0 {
		panic("Missing required config fields: " + strings.Join(missing, ", "))
	}

	if cfg.Unit != "F" && cfg.Unit != "C" {
		panic("Invalid unit: " + cfg.Unit + " (must be F or C)")
	}
}
