package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "THINGIVERSE_AUTH_"

// Config holds the server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR" default:":8080" validate:"required"`
	PublicURL  string `yaml:"public_url" env:"PUBLIC_URL" default:"http://localhost:8080" validate:"required,url"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET" secret:"true" validate:"required,min=16"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL" default:"24h" validate:"gt=0"`

	TokenStore  TokenStoreConfig  `yaml:"token_store" envPrefix:"TOKEN_STORE_"`
	Thingiverse ThingiverseConfig `yaml:"thingiverse" envPrefix:"THINGIVERSE_"`
}

// TokenStoreConfig selects where request tokens live during the handshake.
type TokenStoreConfig struct {
	Backend       string        `yaml:"backend" env:"BACKEND" default:"cookie" validate:"oneof=cookie redis memory"`
	TTL           time.Duration `yaml:"ttl" env:"TTL" default:"10m" validate:"gt=0"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD" secret:"true"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" validate:"gte=0"`
}

// ThingiverseConfig carries the OAuth client registration. Empty endpoint
// fields fall back to the strategy defaults.
type ThingiverseConfig struct {
	ClientID             string `yaml:"client_id" env:"CLIENT_ID" validate:"required"`
	ClientSecret         string `yaml:"client_secret" env:"CLIENT_SECRET" secret:"true" validate:"required"`
	CallbackURL          string `yaml:"callback_url" env:"CALLBACK_URL" validate:"omitempty,url"`
	RequestTokenURL      string `yaml:"request_token_url" env:"REQUEST_TOKEN_URL" validate:"omitempty,url"`
	AccessTokenURL       string `yaml:"access_token_url" env:"ACCESS_TOKEN_URL" validate:"omitempty,url"`
	UserAuthorizationURL string `yaml:"user_authorization_url" env:"USER_AUTHORIZATION_URL" validate:"omitempty,url"`
	SessionKey           string `yaml:"session_key" env:"SESSION_KEY"`
}

// Load builds a Config from struct defaults, then the YAML file at path (if
// path is non-empty), then THINGIVERSE_AUTH_* environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration required to serve logins.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// CallbackURL returns the configured callback or one derived from PublicURL.
func (c *Config) CallbackURL() string {
	if c.Thingiverse.CallbackURL != "" {
		return c.Thingiverse.CallbackURL
	}
	return strings.TrimRight(c.PublicURL, "/") + "/auth/thingiverse/callback"
}

// String returns a string representation of the config with secret fields redacted.
func (c *Config) String() string {
	var sb strings.Builder
	writeRedacted(&sb, reflect.ValueOf(*c))
	return sb.String()
}

func writeRedacted(sb *strings.Builder, v reflect.Value) {
	t := v.Type()
	sb.WriteString(t.Name() + "{")
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(field.Name + ": ")
		value := v.Field(i)
		switch {
		case field.Tag.Get("secret") == "true":
			if value.IsZero() {
				sb.WriteString(`""`)
			} else {
				sb.WriteString("***REDACTED***")
			}
		case value.Kind() == reflect.Struct:
			writeRedacted(sb, value)
		default:
			fmt.Fprintf(sb, "%v", value.Interface())
		}
	}
	sb.WriteString("}")
}
