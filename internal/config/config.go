package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataFile   string         `yaml:"data_file"`
	WagersFile string         `yaml:"wagers_file"`
	RosterFile string         `yaml:"roster_file"`
	Postgres   PostgresConfig `yaml:"postgres"`
	Yahoo      YahooConfig    `yaml:"yahoo"`
	Kalshi     KalshiConfig   `yaml:"kalshi"`
	Server     ServerConfig   `yaml:"server"`
	Log        LogConfig      `yaml:"log"`
	Payout     PayoutConfig   `yaml:"payout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type YahooConfig struct {
	ClientID     string            `yaml:"client_id"`
	ClientSecret string            `yaml:"client_secret"`
	RedirectURI  string            `yaml:"redirect_uri"`
	TokenFile    string            `yaml:"token_file"`
	Weeks        int               `yaml:"weeks"`
	LeagueIDs    map[string]string `yaml:"league_ids"` // season -> league id
}

type KalshiConfig struct {
	APIKeyID       string `yaml:"api_key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	UseDemo        bool   `yaml:"use_demo"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	EncryptionKey  string   `yaml:"encryption_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type PayoutConfig struct {
	Step int `yaml:"step"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DataFile:   "data.js",
		WagersFile: "js/wagers-data.js",
		RosterFile: "js/roster-data.js",
		Yahoo: YahooConfig{
			RedirectURI: "oob",
			TokenFile:   ".yahoo_token.json",
			Weeks:       17,
		},
		Server: ServerConfig{
			Port: 5001,
			AllowedOrigins: []string{
				"https://adennis4.github.io",
				"http://localhost:8000",
				"http://localhost:5500",
				"http://127.0.0.1:5500",
				"http://localhost:3000",
			},
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Payout: PayoutConfig{Step: 10},
	}
}

// Load reads the YAML file at configPath over the defaults, then applies
// environment overrides. An empty path or a missing file leaves the defaults.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := config.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str(&c.Postgres.DSN, "DATABASE_URL")
	str(&c.Server.EncryptionKey, "ENCRYPTION_KEY")
	str(&c.Yahoo.ClientID, "YAHOO_CLIENT_ID")
	str(&c.Yahoo.ClientSecret, "YAHOO_CLIENT_SECRET")
	str(&c.Yahoo.RedirectURI, "YAHOO_REDIRECT_URI")
	str(&c.Kalshi.APIKeyID, "KALSHI_API_KEY_ID")
	str(&c.Kalshi.PrivateKeyPath, "KALSHI_PRIVATE_KEY_PATH")
	str(&c.Log.Level, "LOG_LEVEL")

	if v := getenv("KALSHI_USE_DEMO"); v != "" {
		c.Kalshi.UseDemo = strings.EqualFold(v, "true")
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}
