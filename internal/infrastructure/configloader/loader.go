package configloader

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"wallet_session/internal/domain/entity"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Event source modes of the wallet provider.
const (
	EventModeAuto      = "auto"
	EventModeSubscribe = "subscribe"
	EventModePoll      = "poll"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                string   `yaml:"port"`
	ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds"`
	AllowedOrigins      []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	Development bool   `yaml:"development"`
}

// ProviderConfig holds configuration of the wallet provider connection.
type ProviderConfig struct {
	Endpoint              string `yaml:"endpoint"` // e.g. "ws://127.0.0.1:1248" (Frame)
	DialTimeoutSeconds    int    `yaml:"dialTimeoutSeconds"`
	RPCCallTimeoutSeconds int    `yaml:"rpcCallTimeoutSeconds"`
	// RequestAccountsTimeoutSeconds bounds eth_requestAccounts, which waits for the user.
	RequestAccountsTimeoutSeconds int    `yaml:"requestAccountsTimeoutSeconds"`
	EventMode                     string `yaml:"eventMode"` // auto | subscribe | poll
	PollIntervalMillis            int64  `yaml:"pollIntervalMillis"`
	PollBurst                     int    `yaml:"pollBurst"`
	Probe                         bool   `yaml:"probe"`
}

// SessionConfig holds configuration of the session store.
type SessionConfig struct {
	// ClearOnFailure resets a previously connected session when a re-query fails.
	ClearOnFailure  bool `yaml:"clearOnFailure"`
	SilentReconnect bool `yaml:"silentReconnect"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig               `yaml:"server"`
	Logging  LoggingConfig              `yaml:"logging"`
	Provider ProviderConfig             `yaml:"provider"`
	Session  SessionConfig              `yaml:"session"`
	Networks []entity.NetworkDefinition `yaml:"networks"`
}

// DialTimeout returns the provider dial timeout.
func (c ProviderConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// CallTimeout returns the timeout of read-only RPC calls.
func (c ProviderConfig) CallTimeout() time.Duration {
	return time.Duration(c.RPCCallTimeoutSeconds) * time.Second
}

// RequestAccountsTimeout returns the timeout of the account permission request.
func (c ProviderConfig) RequestAccountsTimeout() time.Duration {
	return time.Duration(c.RequestAccountsTimeoutSeconds) * time.Second
}

// PollInterval returns the interval between polls of the event source.
func (c ProviderConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Session: SessionConfig{SilentReconnect: true}, Provider: ProviderConfig{Probe: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML configuration data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Session: SessionConfig{SilentReconnect: true}, Provider: ProviderConfig{Probe: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data: %v", err)
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	// connect держит запрос открытым, пока пользователь подтверждает доступ в кошельке
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 150
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Provider.Endpoint == "" {
		cfg.Provider.Endpoint = "ws://127.0.0.1:1248"
		logrus.Infof("Provider.Endpoint not set, defaulting to %s", cfg.Provider.Endpoint)
	}
	if cfg.Provider.DialTimeoutSeconds <= 0 {
		cfg.Provider.DialTimeoutSeconds = 10
	}
	if cfg.Provider.RPCCallTimeoutSeconds <= 0 {
		cfg.Provider.RPCCallTimeoutSeconds = 10
	}
	if cfg.Provider.RequestAccountsTimeoutSeconds <= 0 {
		cfg.Provider.RequestAccountsTimeoutSeconds = 120
	}
	if cfg.Provider.EventMode == "" {
		cfg.Provider.EventMode = EventModeAuto
	}
	cfg.Provider.EventMode = strings.ToLower(cfg.Provider.EventMode)
	if cfg.Provider.PollIntervalMillis <= 0 {
		cfg.Provider.PollIntervalMillis = 2000
	}
	if cfg.Provider.PollBurst <= 0 {
		cfg.Provider.PollBurst = 1
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.EventMode {
	case EventModeAuto, EventModeSubscribe, EventModePoll:
	default:
		errs = append(errs, fmt.Errorf("provider.eventMode %q is not one of auto, subscribe, poll", c.Provider.EventMode))
	}
	if c.Provider.EventMode == EventModeSubscribe &&
		!strings.HasPrefix(c.Provider.Endpoint, "ws") && !strings.HasPrefix(c.Provider.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("provider.eventMode subscribe needs a websocket or IPC endpoint, got %s", c.Provider.Endpoint))
	}
	for i, network := range c.Networks {
		if network.ChainID == 0 {
			errs = append(errs, fmt.Errorf("networks[%d] (%s) is missing chainId", i, network.Name))
		}
		if network.Name == "" {
			logrus.Warnf("Network with chainId %d has no name, it will be displayed as 'Chain %d'", network.ChainID, network.ChainID)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logrus.Errorf("Invalid configuration: %v", err)
		return err
	}
	return nil
}
