package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// PathEnv names the optional YAML config file
const PathEnv = "STANDUP_CONFIG"

// maxTurnDuration matches the longest turn a client may request, in seconds
const maxTurnDuration = 24 * 60 * 60

// Config holds server settings. Values come from defaults, then the YAML
// file, then non-empty environment variables.
type Config struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
	LogLevel  string `yaml:"log_level"`

	Discord DiscordConfig `yaml:"discord"`
	Feed    FeedConfig    `yaml:"feed"`
	Standup StandupConfig `yaml:"standup"`
}

type DiscordConfig struct {
	APIURL       string `yaml:"api_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BotToken     string `yaml:"bot_token"`
}

// FeedConfig configures the session lifecycle feed. An empty NATSURL disables it.
type FeedConfig struct {
	NATSURL       string `yaml:"nats_url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	BufferSize    int    `yaml:"buffer_size"`
}

type StandupConfig struct {
	LeadIn          time.Duration `yaml:"lead_in"`
	DefaultDuration int           `yaml:"default_duration"`
	ValidateTimeout time.Duration `yaml:"validate_timeout"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Port:      "3001",
		StaticDir: "app/dist",
		LogLevel:  "info",
		Discord: DiscordConfig{
			APIURL: "https://discord.com/api",
		},
		Feed: FeedConfig{
			Stream:        "STANDUP_EVENTS",
			SubjectPrefix: "standup.events",
			BufferSize:    1024,
		},
		Standup: StandupConfig{
			LeadIn:          5 * time.Second,
			DefaultDuration: 30,
			ValidateTimeout: 10 * time.Second,
		},
	}
}

// NewConfigFromEnv loads the file named by STANDUP_CONFIG, if any, and applies
// environment overrides.
func NewConfigFromEnv() (Config, error) {
	return Load(os.Getenv(PathEnv))
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	parse := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	c.Port = getEnv("PORT", c.Port)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Discord.APIURL = getEnv("DISCORD_API_URL", c.Discord.APIURL)
	c.Discord.ClientID = getEnv("VITE_DISCORD_CLIENT_ID", c.Discord.ClientID)
	c.Discord.ClientSecret = getEnv("DISCORD_CLIENT_SECRET", c.Discord.ClientSecret)
	c.Discord.BotToken = getEnv("DISCORD_BOT_TOKEN", c.Discord.BotToken)

	c.Feed.NATSURL = getEnv("NATS_URL", c.Feed.NATSURL)
	c.Feed.Stream = getEnv("FEED_STREAM", c.Feed.Stream)
	c.Feed.SubjectPrefix = getEnv("FEED_SUBJECT_PREFIX", c.Feed.SubjectPrefix)
	parse(getEnvAsInt("FEED_BUFFER_SIZE", &c.Feed.BufferSize))

	parse(getEnvAsDuration("STANDUP_LEAD_IN", &c.Standup.LeadIn))
	parse(getEnvAsInt("STANDUP_DEFAULT_DURATION", &c.Standup.DefaultDuration))
	parse(getEnvAsDuration("VALIDATE_TIMEOUT", &c.Standup.ValidateTimeout))
	return errors.Join(errs...)
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Standup.LeadIn < 0 {
		errs = append(errs, errors.New("standup lead_in must not be negative"))
	}
	if c.Standup.DefaultDuration <= 0 || c.Standup.DefaultDuration > maxTurnDuration {
		errs = append(errs, fmt.Errorf("standup default_duration must be between 1 and %d seconds", maxTurnDuration))
	}
	if c.Standup.ValidateTimeout <= 0 {
		errs = append(errs, errors.New("standup validate_timeout must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, info when unset
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt overwrites dst when key is set; unset keys leave it alone
func getEnvAsInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = intValue
	return nil
}

// getEnvAsDuration accepts Go durations ("5s") or whole seconds ("5")
func getEnvAsDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
		return nil
	}
	secs, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, value)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}
