package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultStorePath   = "analysis_results.csv"
	DefaultHTTPAddr    = ":8005"
	DefaultMaxUploadMB = 32
)

type Config struct {
	StorePath   string
	DbDsn       string
	HTTPAddr    string
	TgToken     string
	Attributes  []string
	MaxUploadMB int64
	LogLevel    string
}

var (
	config *Config
	once   sync.Once
)

// GetConfig returns the process configuration, read once from the
// environment and an optional .env file.
func GetConfig() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.WithError(err).Warn("invalid configuration, using defaults")
			cfg = FromEnv(func(string) string { return "" })
		}
		config = cfg
	})
	return config
}

// Load reads the given env files (.env when none are given) into the
// process environment and builds the configuration. Missing files are
// not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				log.WithField("file", f).Debug("env file not found")
				continue
			}
			return nil, errors.Wrapf(err, "loading %s", f)
		}
	}
	cfg := FromEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from getenv, applying defaults.
func FromEnv(getenv func(string) string) *Config {
	cfg := &Config{
		StorePath:   getenv("STORE_PATH"),
		DbDsn:       getenv("DB_DSN"),
		HTTPAddr:    getenv("HTTP_ADDR"),
		TgToken:     getenv("TG_TOKEN"),
		Attributes:  ParseAttributes(getenv("ATTRIBUTES")),
		MaxUploadMB: DefaultMaxUploadMB,
		LogLevel:    getenv("LOG_LEVEL"),
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if v := getenv("MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadMB = n
		} else {
			cfg.MaxUploadMB = -1
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be a positive integer")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	return nil
}

// ParseAttributes splits a comma separated attribute list into canonical
// names. An empty list selects the default attributes.
func ParseAttributes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, models.CanonicalAttribute(part))
	}
	if len(out) == 0 {
		return append([]string{}, models.DefaultAttributes...)
	}
	return out
}
