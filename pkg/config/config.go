package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envConfigPath = "MYTHBUSTER_CONFIG"
	envEnvFile    = "MYTHBUSTER_ENV_FILE"

	envTwilioAccountSID  = "TWILIO_ACCOUNT_SID"
	envTwilioAuthToken   = "TWILIO_AUTH_TOKEN"
	envTwilioPhoneNumber = "TWILIO_PHONE_NUMBER"
	envWebhookURL        = "WEBHOOK_URL"

	envLLMProvider = "LLM_PROVIDER"
	envLLMModel    = "LLM_MODEL"
	envLLMBaseURL  = "LLM_BASE_URL"

	envDebug    = "DEBUG"
	envLogLevel = "LOG_LEVEL"
	envHost     = "HOST"
	envPort     = "PORT"

	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
)

const (
	ProviderOpenAI  = "openai"
	ProviderFantasy = "fantasy"
)

const (
	DefaultModel                 = "llama-3.1-8b-instant"
	DefaultBaseURL               = "https://api.groq.com/openai/v1"
	DefaultAPIKeyEnv             = "GROQ_API_KEY"
	DefaultTemperature           = 0.1
	DefaultMaxTokens             = 500
	DefaultTopP                  = 0.9
	DefaultRequestTimeoutSeconds = 30
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8000
)

// Config is the root runtime configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	LLM      LLMConfig      `json:"llm"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
	Debug    bool           `json:"debug,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// LLMConfig selects the completion backend and its generation settings.
type LLMConfig struct {
	Provider              string  `json:"provider"`
	Model                 string  `json:"model"`
	BaseURL               string  `json:"base_url"`
	APIKeyEnv             string  `json:"api_key_env"`
	Organization          string  `json:"organization,omitempty"`
	Project               string  `json:"project,omitempty"`
	Temperature           float64 `json:"temperature"`
	MaxTokens             int     `json:"max_tokens"`
	TopP                  float64 `json:"top_p"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Telegram TelegramConfig `json:"telegram"`
}

// WhatsAppConfig configures the Twilio WhatsApp webhook and sender.
type WhatsAppConfig struct {
	Enabled     bool   `json:"enabled"`
	AccountSID  string `json:"account_sid"`
	AuthToken   string `json:"auth_token"`
	PhoneNumber string `json:"phone_number"`
	// WebhookURL is the public base URL Twilio posts to. It is only logged at
	// startup; Twilio itself is configured in its console.
	WebhookURL string `json:"webhook_url,omitempty"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// GatewayConfig configures HTTP gateway bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Defaults returns the configuration used when no file or env value is set.
func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:              ProviderOpenAI,
			Model:                 DefaultModel,
			BaseURL:               DefaultBaseURL,
			APIKeyEnv:             DefaultAPIKeyEnv,
			Temperature:           DefaultTemperature,
			MaxTokens:             DefaultMaxTokens,
			TopP:                  DefaultTopP,
			RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{Enabled: true},
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// LoadConfig loads .env, then an optional config.json over Defaults, then
// environment overrides. It does not validate; callers pick the checks they
// need.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Defaults()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	var errs []error
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Channels.WhatsApp.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Channels.Telegram.Enabled && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		errs = append(errs, errors.New("channels.telegram.token is required when telegram is enabled"))
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port must be between 0 and 65535, got %d", c.Gateway.Port))
	}

	return errors.Join(errs...)
}

// Validate checks the generation settings and provider name.
func (c LLMConfig) Validate() error {
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case ProviderOpenAI, ProviderFantasy:
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOpenAI, ProviderFantasy, c.Provider))
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.Temperature))
	}
	if c.TopP <= 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("llm.top_p must be in (0, 1], got %v", c.TopP))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be at least 1, got %d", c.MaxTokens))
	}

	return errors.Join(errs...)
}

// Validate requires Twilio credentials when the WhatsApp channel is enabled.
func (c WhatsAppConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if strings.TrimSpace(c.AccountSID) == "" {
		errs = append(errs, fmt.Errorf("channels.whatsapp.account_sid is required (%s)", envTwilioAccountSID))
	}
	if strings.TrimSpace(c.AuthToken) == "" {
		errs = append(errs, fmt.Errorf("channels.whatsapp.auth_token is required (%s)", envTwilioAuthToken))
	}
	if strings.TrimSpace(c.PhoneNumber) == "" {
		errs = append(errs, fmt.Errorf("channels.whatsapp.phone_number is required (%s)", envTwilioPhoneNumber))
	}

	return errors.Join(errs...)
}

// loadDotEnv loads KEY=VALUE pairs without overriding the real environment.
// A missing default .env is not an error; a missing explicit file is.
func loadDotEnv() error {
	if path := strings.TrimSpace(os.Getenv(envEnvFile)); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", envEnvFile, err)
		}
		return nil
	}

	if info, err := os.Stat(".env"); err != nil || info.IsDir() {
		return nil
	}

	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	whatsapp := &cfg.Channels.WhatsApp
	setString(&whatsapp.AccountSID, envTwilioAccountSID)
	setString(&whatsapp.AuthToken, envTwilioAuthToken)
	setString(&whatsapp.PhoneNumber, envTwilioPhoneNumber)
	setString(&whatsapp.WebhookURL, envWebhookURL)

	setString(&cfg.LLM.Provider, envLLMProvider)
	setString(&cfg.LLM.Model, envLLMModel)
	setString(&cfg.LLM.BaseURL, envLLMBaseURL)
	setString(&cfg.Logging.Level, envLogLevel)
	setString(&cfg.Gateway.Host, envHost)

	var errs []error

	if raw := strings.TrimSpace(os.Getenv(envDebug)); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", envDebug, err))
		} else {
			cfg.Debug = debug
		}
	}
	if cfg.Debug && strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "debug"
	}

	if raw := strings.TrimSpace(os.Getenv(envPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", envPort, err))
		} else {
			cfg.Gateway.Port = port
		}
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
		cfg.Channels.Telegram.Enabled = true
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	return errors.Join(errs...)
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the optional config file location.
//
// Precedence is MYTHBUSTER_CONFIG first, then cwd-local fallback paths. An
// empty path with no error means no file is present.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
