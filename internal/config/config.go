// Package config provides YAML-based configuration loading for the
// concierge, with secrets overlaid from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level concierge configuration, loaded from config.yaml.
// Secrets never live here; see Secrets.
type Config struct {
	TenantID string         `yaml:"tenant_id"`
	Hotel    HotelConfig    `yaml:"hotel"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Chat     ChatConfig     `yaml:"chat"`
	PMS      PMSConfig      `yaml:"pms"`
	Mail     MailConfig     `yaml:"mail"`
	LLM      LLMConfig      `yaml:"llm"`
	Weather  WeatherConfig  `yaml:"weather"`
}

// HotelConfig carries property-level constants used in guest-facing text.
type HotelConfig struct {
	Name       string `yaml:"name"`
	FrontDesk  string `yaml:"front_desk"`  // phone shown in cancelled-order replies
	BookingURL string `yaml:"booking_url"` // official site hand-off for future dates
	ReviewURL  string `yaml:"review_url"`  // link sent with review requests
	Location   string `yaml:"location"`    // township name for forecasts
}

// DatabaseConfig selects the local store. A DSN with @tcp( is MySQL,
// anything else is a SQLite path.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig holds the webhook/admin HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ChatConfig points at the messaging platform API.
type ChatConfig struct {
	APIBase string `yaml:"api_base"`
}

// PMSConfig points at the back-office booking API.
type PMSConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MailConfig points at the mail-archive search service.
type MailConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LLMConfig names the generative models used for the conversational
// fallback and for image understanding.
type LLMConfig struct {
	Model       string `yaml:"model"`
	VisionModel string `yaml:"vision_model"`
}

// WeatherConfig points at the CWA open-data forecast service.
type WeatherConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Secrets are read from the environment only (a .env file is honored).
type Secrets struct {
	ChannelSecret string // webhook signature key
	AccessToken   string // messaging API bearer token
	LLMKey        string
	WeatherKey    string
	MailToken     string
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSecrets loads a .env file if present and reads secret values from the
// environment. A missing .env is not an error.
func LoadSecrets() Secrets {
	_ = godotenv.Load()
	return Secrets{
		ChannelSecret: os.Getenv("CHANNEL_SECRET"),
		AccessToken:   os.Getenv("CHANNEL_ACCESS_TOKEN"),
		LLMKey:        os.Getenv("GOOGLE_API_KEY"),
		WeatherKey:    os.Getenv("CWA_API_KEY"),
		MailToken:     os.Getenv("MAIL_ARCHIVE_TOKEN"),
	}
}

// PMSTimeout returns the effective PMS call timeout. PMS_API_TIMEOUT in the
// environment (seconds) overrides the YAML value.
func (c *Config) PMSTimeout() time.Duration {
	secs := c.PMS.TimeoutSeconds
	if env := os.Getenv("PMS_API_TIMEOUT"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			secs = n
		}
	}
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.TenantID == "" {
		c.TenantID = "ktw"
	}
	if c.Hotel.Location == "" {
		c.Hotel.Location = "車城鄉"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "concierge.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Chat.APIBase == "" {
		c.Chat.APIBase = "https://api.line.me/v2/bot"
	}
	if c.PMS.TimeoutSeconds == 0 {
		c.PMS.TimeoutSeconds = 5
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = c.LLM.Model
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://opendata.cwa.gov.tw/api/v1/rest/datastore"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Hotel.Name == "" {
		errs = append(errs, "hotel.name is required")
	}
	if c.PMS.BaseURL == "" {
		errs = append(errs, "pms.base_url is required")
	}
	if c.PMS.TimeoutSeconds < 0 {
		errs = append(errs, "pms.timeout_seconds must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
