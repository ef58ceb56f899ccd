package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"coinsentinel/internal/logger"
)

type Config struct {
	Telegram struct {
		Token       string        `yaml:"token" validate:"required"`
		Endpoint    string        `yaml:"endpoint"`
		PollTimeout int           `yaml:"poll_timeout" default:"60"`
		SendTimeout time.Duration `yaml:"send_timeout" default:"10s"`
	} `yaml:"telegram"`

	News struct {
		APIKey   string        `yaml:"api_key" validate:"required"`
		BaseURL  string        `yaml:"base_url" default:"https://newsapi.org"`
		PageSize int           `yaml:"page_size" default:"5" validate:"min=1,max=100"`
		Timeout  time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"news"`

	LLM struct {
		APIKey      string  `yaml:"api_key" validate:"required"`
		BaseURL     string  `yaml:"base_url" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
		Model       string  `yaml:"model" default:"gemini-2.0-flash"`
		Temperature float32 `yaml:"temperature" default:"0.2"`
		MaxTokens   int     `yaml:"max_tokens" default:"200"`
	} `yaml:"llm"`

	Prices struct {
		BaseURL  string        `yaml:"base_url" default:"https://api.coingecko.com"`
		Currency string        `yaml:"currency" default:"usd"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"prices"`

	Store struct {
		Driver   string `yaml:"driver" default:"redis" validate:"oneof=redis memory"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"coinsentinel"`
	} `yaml:"store"`

	Updates struct {
		IntervalMinutes  int           `yaml:"interval_minutes" default:"30" validate:"min=1,max=1440"`
		Concurrency      int           `yaml:"concurrency" default:"4" validate:"min=1"`
		RunTimeout       time.Duration `yaml:"run_timeout" default:"10m"`
		SentimentTimeout time.Duration `yaml:"sentiment_timeout" default:"45s"`
	} `yaml:"updates"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Addr    string `yaml:"addr" default:":9090"`
	} `yaml:"metrics"`

	Log logger.Config `yaml:"log"`
}

// Load builds the configuration from an optional YAML file, struct defaults,
// a .env file and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	setString("NEWS_API_KEY", &c.News.APIKey)
	setString("GEMINI_API_KEY", &c.LLM.APIKey)
	setString("OPENAI_API_KEY", &c.LLM.APIKey)
	setString("LLM_BASE_URL", &c.LLM.BaseURL)
	setString("LLM_MODEL", &c.LLM.Model)
	setString("STORE_DRIVER", &c.Store.Driver)
	setString("REDIS_ADDR", &c.Store.Addr)
	setString("REDIS_PASSWORD", &c.Store.Password)
	setString("LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("CHECK_INTERVAL_MINUTES"); v != "" {
		interval, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHECK_INTERVAL_MINUTES: %w", err)
		}
		c.Updates.IntervalMinutes = interval
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// CronSpec returns the schedule for the periodic watchlist update. "@every"
// keeps the period fixed even when the interval does not divide an hour.
func (c *Config) CronSpec() string {
	return fmt.Sprintf("@every %dm", c.Updates.IntervalMinutes)
}
