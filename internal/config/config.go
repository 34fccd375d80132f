package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "INTEL_RADAR_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	providerEnv       = "LLM_PROVIDER"
	modelEnv          = "LLM_MODEL"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	emailUserEnv      = "EMAIL_USER"
	emailPassEnv      = "EMAIL_PASS"
	emailToEnv        = "EMAIL_TO"
	smtpHostEnv       = "SMTP_HOST"
	smtpPortEnv       = "SMTP_PORT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	storeDriverEnv    = "STORE_DRIVER"
	storePathEnv      = "STORE_PATH"
	databaseDSNEnv    = "DATABASE_DSN"
)

// Supported extraction providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported record store drivers.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrMissingCredential is returned by Validate when the extraction provider has no API key.
var ErrMissingCredential = errors.New("missing extraction service credential")

// Config holds every setting needed for one pipeline run.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Capture   CaptureConfig   `yaml:"capture"`
	Feeds     FeedsConfig     `yaml:"feeds"`
	Store     StoreConfig     `yaml:"store"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Mail      MailConfig      `yaml:"mail"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

// LoggingConfig controls the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CaptureConfig fixes the civil-time offset used for captured_at.
type CaptureConfig struct {
	UTCOffsetHours int `yaml:"utcOffsetHours"`
}

// Location returns the fixed zone for captured_at timestamps.
func (c CaptureConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffsetHours), c.UTCOffsetHours*3600)
}

// FeedsConfig lists syndication sources and the per-source cap.
type FeedsConfig struct {
	MaxPerFeed int            `yaml:"maxPerFeed"`
	Timeout    time.Duration  `yaml:"timeout"`
	Sources    []SourceConfig `yaml:"sources"`
}

// SourceConfig is a single feed endpoint.
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// FetcherConfig shapes page downloads.
type FetcherConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"userAgent"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
}

// ExtractorConfig describes the text-understanding service.
type ExtractorConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"apiKey"`
	Endpoint      string        `yaml:"endpoint"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxInputChars int           `yaml:"maxInputChars"`
}

// MailConfig wires the authenticated relay. Empty credentials disable mail.
type MailConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Recipient     string `yaml:"recipient"`
	SenderName    string `yaml:"senderName"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// Enabled reports whether relay credentials are present.
func (m MailConfig) Enabled() bool {
	return m.Username != "" && m.Password != ""
}

// TelegramConfig wires the optional Telegram channel.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := Defaults()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = Defaults()
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

// Validate checks fatal startup preconditions.
func (c Config) Validate() error {
	switch c.Extractor.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown extractor provider %q", c.Extractor.Provider)
	}
	if c.Extractor.APIKey == "" {
		return fmt.Errorf("%w: set %s", ErrMissingCredential, apiKeyEnvFor(c.Extractor.Provider))
	}

	switch c.Store.Driver {
	case DriverCSV:
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for the csv driver")
		}
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if len(c.Feeds.Sources) == 0 {
		return fmt.Errorf("at least one feed source is required")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(providerEnv); v != "" {
		c.Extractor.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(modelEnv); v != "" {
		c.Extractor.Model = v
	}
	if v := os.Getenv(apiKeyEnvFor(c.Extractor.Provider)); v != "" {
		c.Extractor.APIKey = v
	}

	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(storePathEnv); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.DSN = v
	}

	if v := os.Getenv(emailUserEnv); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv(emailPassEnv); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv(emailToEnv); v != "" {
		c.Mail.Recipient = v
	}
	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Mail.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Mail.Port = port
		} else {
			log.Printf("config: invalid %s %q, keeping %d", smtpPortEnv, v, c.Mail.Port)
		}
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}
}

// normalize fills values a partial YAML file may have zeroed.
func (c *Config) normalize() {
	def := Defaults()

	if c.Feeds.MaxPerFeed <= 0 {
		c.Feeds.MaxPerFeed = def.Feeds.MaxPerFeed
	}
	if c.Feeds.Timeout <= 0 {
		c.Feeds.Timeout = def.Feeds.Timeout
	}
	if c.Fetcher.Timeout <= 0 {
		c.Fetcher.Timeout = def.Fetcher.Timeout
	}
	if c.Fetcher.UserAgent == "" {
		c.Fetcher.UserAgent = def.Fetcher.UserAgent
	}
	if c.Fetcher.MaxBodyBytes <= 0 {
		c.Fetcher.MaxBodyBytes = def.Fetcher.MaxBodyBytes
	}
	if c.Extractor.Timeout <= 0 {
		c.Extractor.Timeout = def.Extractor.Timeout
	}
	if c.Extractor.MaxInputChars <= 0 {
		c.Extractor.MaxInputChars = def.Extractor.MaxInputChars
	}
	if c.Extractor.Model == "" {
		c.Extractor.Model = defaultModelFor(c.Extractor.Provider)
	}
	if c.Store.Table == "" {
		c.Store.Table = def.Store.Table
	}
	if c.Mail.Recipient == "" {
		c.Mail.Recipient = c.Mail.Username
	}
	if c.Mail.Port <= 0 {
		c.Mail.Port = def.Mail.Port
	}
}

func apiKeyEnvFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return openAIAPIKeyEnv
	case ProviderAnthropic:
		return anthropicKeyEnv
	default:
		return geminiAPIKeyEnv
	}
}

func defaultModelFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-haiku-4-5"
	default:
		return "gemini-2.5-flash"
	}
}

// Defaults returns the configuration used when no file or env overrides exist.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Capture: CaptureConfig{UTCOffsetHours: 8},
		Feeds: FeedsConfig{
			MaxPerFeed: 2,
			Timeout:    15 * time.Second,
			Sources: []SourceConfig{
				{Name: "technews-semiconductor", URL: "https://technews.tw/category/semiconductor/feed/"},
				{Name: "bnext", URL: "https://www.bnext.com.tw/rss"},
			},
		},
		Store: StoreConfig{
			Driver: DriverCSV,
			Path:   "semi_market_data.csv",
			Table:  "intelligence_records",
		},
		Fetcher: FetcherConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			MaxBodyBytes: 5 << 20,
		},
		Extractor: ExtractorConfig{
			Provider:      ProviderGemini,
			Timeout:       30 * time.Second,
			MaxInputChars: 3000,
		},
		Mail: MailConfig{
			Host:          "smtp-mail.outlook.com",
			Port:          587,
			SenderName:    "AI 情報機器人",
			SubjectPrefix: "【半導體監測報】自動掃描完成",
		},
	}
}
