// Package config resolves server settings from defaults, an optional TOML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	LogLevel       string
	LogFormat      string
	CatalogPath    string
	SessionTTL     time.Duration
	MaxSessions    int
	MediaDelay     time.Duration
	TextDelay      time.Duration
	MaxUploadBytes int64
	AdminUser      string
	AdminPass      string
	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64
}

func Default() Config {
	return Config{
		Port:           "8080",
		LogLevel:       "info",
		LogFormat:      "console",
		SessionTTL:     2 * time.Hour,
		MaxSessions:    10000,
		MediaDelay:     2 * time.Second,
		TextDelay:      1500 * time.Millisecond,
		MaxUploadBytes: 50 << 20,
	}
}

// FileConfig mirrors the TOML file. Unset keys keep the defaults.
type FileConfig struct {
	Server  ServerFile  `toml:"server"`
	Session SessionFile `toml:"session"`
	Detect  DetectFile  `toml:"detect"`
	Admin   AdminFile   `toml:"admin"`
}

type ServerFile struct {
	Port      *string `toml:"port"`
	LogLevel  *string `toml:"log-level"`
	LogFormat *string `toml:"log-format"`
	Catalog   *string `toml:"catalog"`
	Seed      *int64  `toml:"seed"`
}

type SessionFile struct {
	TTL         *string `toml:"ttl"`
	MaxSessions *int    `toml:"max-sessions"`
}

type DetectFile struct {
	MediaDelay     *string `toml:"media-delay"`
	TextDelay      *string `toml:"text-delay"`
	MaxUploadBytes *int64  `toml:"max-upload-bytes"`
}

type AdminFile struct {
	User *string `toml:"user"`
	Pass *string `toml:"pass"`
}

// LoadDotenv loads .env style files into the process environment. Missing
// files are skipped.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", f, err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFile reads a TOML config. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return fc, nil
}

// Load layers defaults, the TOML file at path (if any) and the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := fc.apply(&c); err != nil {
			return Config{}, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// FromEnv is Load without a config file.
func FromEnv() (Config, error) {
	return Load("")
}

func (fc FileConfig) apply(c *Config) error {
	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Server.LogLevel)
	setString(&c.LogFormat, fc.Server.LogFormat)
	setString(&c.CatalogPath, fc.Server.Catalog)
	if fc.Server.Seed != nil {
		c.Seed = *fc.Server.Seed
	}
	if fc.Session.MaxSessions != nil {
		c.MaxSessions = *fc.Session.MaxSessions
	}
	if fc.Detect.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.Detect.MaxUploadBytes
	}
	setString(&c.AdminUser, fc.Admin.User)
	setString(&c.AdminPass, fc.Admin.Pass)

	var errs []error
	errs = append(errs, setDuration(&c.SessionTTL, "session.ttl", fc.Session.TTL))
	errs = append(errs, setDuration(&c.MediaDelay, "detect.media-delay", fc.Detect.MediaDelay))
	errs = append(errs, setDuration(&c.TextDelay, "detect.text-delay", fc.Detect.TextDelay))
	return errors.Join(errs...)
}

func (c *Config) applyEnv() error {
	c.Port = getenv("PORT", c.Port)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("LOG_FORMAT", c.LogFormat)
	c.CatalogPath = getenv("CATALOG_PATH", c.CatalogPath)
	c.AdminUser = getenv("ADMIN_USER", c.AdminUser)
	c.AdminPass = getenv("ADMIN_PASS", c.AdminPass)

	var errs []error
	errs = append(errs, envDuration(&c.SessionTTL, "SESSION_TTL"))
	errs = append(errs, envDuration(&c.MediaDelay, "MEDIA_DELAY"))
	errs = append(errs, envDuration(&c.TextDelay, "TEXT_DELAY"))
	errs = append(errs, envInt(&c.MaxSessions, "MAX_SESSIONS"))
	errs = append(errs, envInt64(&c.MaxUploadBytes, "MAX_UPLOAD_BYTES"))
	errs = append(errs, envInt64(&c.Seed, "RANDOM_SEED"))
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, errors.New("max sessions must be positive"))
	}
	if c.MediaDelay < 0 || c.TextDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if (c.AdminUser == "") != (c.AdminPass == "") {
		errs = append(errs, errors.New("admin user and password must be set together"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// AdminEnabled reports whether the stats endpoint is exposed.
func (c Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, key string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	return setDuration(dst, key, nonEmpty(v))
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
