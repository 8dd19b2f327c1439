package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. STOCKLENS_CACHE_DIR.
const EnvPrefix = "STOCKLENS"

// Config holds all application configuration.
type Config struct {
	Cache struct {
		Dir          string        `yaml:"dir" validate:"required"`
		MaxAge       time.Duration `yaml:"max_age" split_words:"true" validate:"gte=0"`
		RefetchEmpty bool          `yaml:"refetch_empty" split_words:"true"`
	} `yaml:"cache"`
	DataSource struct {
		Provider      string        `yaml:"provider" validate:"oneof=yahoo rest"`
		BaseURL       string        `yaml:"base_url" split_words:"true" validate:"required_if=Provider rest,omitempty,url"`
		APIKey        string        `yaml:"api_key" split_words:"true"`
		Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
		RatePerSecond float64       `yaml:"rate_per_second" split_words:"true" validate:"gt=0"`
	} `yaml:"data_source" split_words:"true"`
	Load struct {
		Years int `yaml:"years" validate:"min=1,max=50"`
	} `yaml:"load"`
	Watchlist []string `yaml:"watchlist" validate:"dive,required"`
	Schedule  struct {
		WarmCron string `yaml:"warm_cron" split_words:"true" validate:"cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" split_words:"true"`
	} `yaml:"database"`
	Notify struct {
		TelegramBotToken string `yaml:"telegram_bot_token" split_words:"true"`
		TelegramChatID   string `yaml:"telegram_chat_id" split_words:"true" validate:"required_with=TelegramBotToken"`
		Always           bool   `yaml:"always"`
	} `yaml:"notify"`
	Server struct {
		Addr string `yaml:"addr" validate:"required,hostname_port"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// Load starts from Defaults, overlays the YAML file, then .env and
// environment variables. A missing file is not an error. Keys present in
// the file or environment win even when empty, so `sqlite_path: ""`
// disables the recorder.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if cfg.Proxy == "" {
		cfg.Proxy = os.Getenv("HTTPS_PROXY")
	}
	cfg.DataSource.Provider = strings.ToLower(strings.TrimSpace(cfg.DataSource.Provider))

	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	c := &Config{}
	c.Cache.Dir = "data/ohlcv"
	c.DataSource.Provider = "yahoo"
	c.DataSource.Timeout = 30 * time.Second
	c.DataSource.RatePerSecond = 2
	c.Load.Years = 5
	c.Watchlist = []string{"AAPL", "MSFT", "AMZN"}
	c.Schedule.WarmCron = "0 0 22 * * 1-5"
	c.Database.SQLitePath = "data/stocklens.db"
	c.Server.Addr = "127.0.0.1:8080"
	return c
}

// cronParser accepts the six-field form used by the scheduler.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a cron expression with the same rules the scheduler uses.
func ParseCron(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := ParseCron(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks ranges and formats of all fields.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if", "required_with":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "cron":
		return fmt.Sprintf("%s is not a valid cron spec: %q", field, fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
