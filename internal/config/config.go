// Package config loads edgeview settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Endpoint presets for the edge-detection service.
const (
	CloudEndpoint = "https://europe-central2-optimistic-host-320114.cloudfunctions.net/detect-edges"
	LocalEndpoint = "http://localhost:5000/im_size"
)

var presets = map[string]string{
	"cloud": CloudEndpoint,
	"local": LocalEndpoint,
}

// Config holds the settings shared by every edgeview command. The yaml tags
// name the keys of the optional config file.
type Config struct {
	ListenAddr     string        `yaml:"listen_addr"`
	Endpoint       string        `yaml:"endpoint"`
	ServiceURL     string        `yaml:"service_url"`
	FormField      string        `yaml:"form_field"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	AccentColor    string        `yaml:"accent_color"`
	DevServiceAddr string        `yaml:"dev_service_addr"`
	LogLevel       string        `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		Endpoint:       "cloud",
		FormField:      "image",
		RequestTimeout: 2 * time.Minute,
		MaxUploadBytes: 32 << 20,
		SessionTTL:     30 * time.Minute,
		AccentColor:    "#0000ff",
		DevServiceAddr: ":5000",
		LogLevel:       "info",
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = getEnv("EDGEVIEW_ADDR", c.ListenAddr)
	c.Endpoint = getEnv("EDGEVIEW_ENDPOINT", c.Endpoint)
	c.ServiceURL = getEnv("EDGEVIEW_SERVICE_URL", c.ServiceURL)
	c.FormField = getEnv("EDGEVIEW_FORM_FIELD", c.FormField)
	c.AccentColor = getEnv("EDGEVIEW_ACCENT_COLOR", c.AccentColor)
	c.DevServiceAddr = getEnv("EDGEVIEW_DEV_ADDR", c.DevServiceAddr)
	c.LogLevel = getEnv("EDGEVIEW_LOG_LEVEL", c.LogLevel)

	var err error
	if c.RequestTimeout, err = getDuration("EDGEVIEW_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.SessionTTL, err = getDuration("EDGEVIEW_SESSION_TTL", c.SessionTTL); err != nil {
		return err
	}
	if raw := getEnv("EDGEVIEW_MAX_UPLOAD_BYTES", ""); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid EDGEVIEW_MAX_UPLOAD_BYTES %q: %w", raw, err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		if _, ok := presets[c.Endpoint]; !ok {
			return fmt.Errorf("unknown endpoint preset %q (want cloud or local)", c.Endpoint)
		}
	}
	if _, err := parseServiceURL(c.DetectURL()); err != nil {
		return err
	}
	if c.FormField == "" {
		return errors.New("form field must not be empty")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	return nil
}

// DetectURL returns the edge service URL: ServiceURL when set, otherwise the
// endpoint preset.
func (c *Config) DetectURL() string {
	if c.ServiceURL != "" {
		return c.ServiceURL
	}
	return presets[c.Endpoint]
}

// Debug reports whether verbose logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}

func parseServiceURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing scheme or host", raw)
	}
	return parsed, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
