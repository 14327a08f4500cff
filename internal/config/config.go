// Package config loads, validates, and saves the gateway configuration.
// Files may be JSON or YAML (selected by extension) and support ${VAR} and
// ${VAR:-default} environment substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"chatbridge/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Platforms PlatformsConfig `json:"platforms" yaml:"platforms"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	BusBuffer int    `json:"busBuffer" yaml:"busBuffer"`
}

// ServerConfig configures the HTTP listener hosting the webhook endpoints.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PlatformsConfig struct {
	Slack    SlackConfig    `json:"slack" yaml:"slack"`
	WhatsApp WhatsAppConfig `json:"whatsapp" yaml:"whatsapp"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `json:"discord,omitempty" yaml:"discord,omitempty"`
	Webchat  WebchatConfig  `json:"webchat,omitempty" yaml:"webchat,omitempty"`
}

type SlackConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	BotToken      string `json:"botToken" yaml:"botToken"`
	SigningSecret string `json:"signingSecret" yaml:"signingSecret"`
	WebhookPath   string `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
}

// Platform converts the section into the adapter's config form.
func (c SlackConfig) Platform() domain.PlatformConfig {
	return domain.PlatformConfig{
		Platform: domain.PlatformSlack,
		Credentials: map[string]string{
			"botToken":      c.BotToken,
			"signingSecret": c.SigningSecret,
		},
	}
}

type WhatsAppConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	AppSecret     string `json:"appSecret,omitempty" yaml:"appSecret,omitempty"`
	AccessToken   string `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
	VerifyToken   string `json:"verifyToken,omitempty" yaml:"verifyToken,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty" yaml:"phoneNumberId,omitempty"`
	WebhookPath   string `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
}

func (c WhatsAppConfig) Platform() domain.PlatformConfig {
	return domain.PlatformConfig{
		Platform: domain.PlatformWhatsApp,
		Credentials: map[string]string{
			"accessToken":   c.AccessToken,
			"phoneNumberId": c.PhoneNumberID,
			"verifyToken":   c.VerifyToken,
			"appSecret":     c.AppSecret,
		},
	}
}

type TelegramConfig struct {
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Token       string         `json:"token" yaml:"token"`
	AllowFrom   FlexStringList `json:"allowFrom,omitempty" yaml:"allowFrom,omitempty"`
	WebhookPath string         `json:"webhookPath,omitempty" yaml:"webhookPath,omitempty"`
}

func (c TelegramConfig) Platform() domain.PlatformConfig {
	return domain.PlatformConfig{
		Platform:    domain.PlatformTelegram,
		Credentials: map[string]string{"botToken": c.Token},
	}
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"token" yaml:"token"`
	GuildID string `json:"guildId,omitempty" yaml:"guildId,omitempty"`
}

func (c DiscordConfig) Platform() domain.PlatformConfig {
	return domain.PlatformConfig{
		Platform:    domain.PlatformDiscord,
		Credentials: map[string]string{"botToken": c.Token},
	}
}

type WebchatConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (c WebchatConfig) Platform() domain.PlatformConfig {
	return domain.PlatformConfig{Platform: domain.PlatformWebchat}
}

// StoreConfig configures the identity cache database.
type StoreConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	DBPath   string `json:"dbPath" yaml:"dbPath"`
	TTLHours int    `json:"ttlHours" yaml:"ttlHours"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.chatbridge).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatbridge"
	}
	return filepath.Join(home, ".chatbridge")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands, and validates a config file. YAML files are selected
// by a .yaml or .yml extension, anything else parses as JSON.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg to path, creating parent directories. The format follows
// the extension like Load.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.General.BusBuffer < 1 {
		errs = append(errs, "general.busBuffer must be >= 1")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Platforms.Slack.Enabled {
		if cfg.Platforms.Slack.BotToken == "" {
			errs = append(errs, "platforms.slack.botToken is required when slack is enabled")
		}
		if cfg.Platforms.Slack.SigningSecret == "" {
			errs = append(errs, "platforms.slack.signingSecret is required when slack is enabled")
		}
	}
	if cfg.Platforms.WhatsApp.Enabled {
		if cfg.Platforms.WhatsApp.AccessToken == "" || cfg.Platforms.WhatsApp.PhoneNumberID == "" {
			errs = append(errs, "platforms.whatsapp.accessToken and phoneNumberId are required when whatsapp is enabled")
		}
	}
	if cfg.Platforms.Telegram.Enabled && cfg.Platforms.Telegram.Token == "" {
		errs = append(errs, "platforms.telegram.token is required when telegram is enabled")
	}
	if cfg.Platforms.Discord.Enabled && cfg.Platforms.Discord.Token == "" {
		errs = append(errs, "platforms.discord.token is required when discord is enabled")
	}

	if cfg.Store.Enabled {
		if cfg.Store.DBPath == "" {
			errs = append(errs, "store.dbPath is required when the store is enabled")
		}
		if cfg.Store.TTLHours < 1 {
			errs = append(errs, "store.ttlHours must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
