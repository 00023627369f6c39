// Package config собирает настройки приложения: значения по умолчанию,
// затем YAML-файл, затем переменные окружения.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config - настройки приложения.
type Config struct {
	Addr        string `yaml:"addr"`
	Storage     string `yaml:"storage"`
	DatabaseURL string `yaml:"database_url"`

	// Seed заполняет in-memory хранилище демонстрационными данными.
	Seed bool `yaml:"seed"`

	MediaRoot string `yaml:"media_root"`

	SessionKey    string `yaml:"session_key"`
	CSRFKey       string `yaml:"csrf_key"`
	SecureCookies bool   `yaml:"secure_cookies"`

	PostsPerPage    int           `yaml:"posts_per_page"`
	CommentsPerPage int           `yaml:"comments_per_page"`
	IndexCacheTTL   time.Duration `yaml:"index_cache_ttl"`
	Cache           string        `yaml:"cache"`
	RedisURL        string        `yaml:"redis_url"`

	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	GormLogLevel string `yaml:"gorm_log_level"`

	RateLimit RateLimit `yaml:"rate_limit"`
}

// RateLimit ограничивает частоту POST-запросов входа и регистрации с одного адреса.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default возвращает настройки для локального запуска.
func Default() Config {
	return Config{
		Addr:            ":8080",
		Storage:         StorageInMemory,
		Seed:            true,
		MediaRoot:       "media",
		PostsPerPage:    10,
		CommentsPerPage: 10,
		IndexCacheTTL:   20 * time.Second,
		Cache:           CacheMemory,
		LogLevel:        "info",
		LogFormat:       "text",
		GormLogLevel:    "warn",
		RateLimit:       RateLimit{PerSecond: 1, Burst: 10},
	}
}

// Load читает файл path (если он задан) поверх значений по умолчанию и
// применяет переменные окружения.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Annotatef(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Annotatef(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, errors.Trace(err)
	}
	return cfg, errors.Trace(cfg.Validate())
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Addr = ":" + port
	}
	strs := map[string]*string{
		"DATABASE_URL":          &c.DatabaseURL,
		"YATUBE_ADDR":           &c.Addr,
		"YATUBE_STORAGE":        &c.Storage,
		"YATUBE_MEDIA_ROOT":     &c.MediaRoot,
		"YATUBE_SESSION_KEY":    &c.SessionKey,
		"YATUBE_CSRF_KEY":       &c.CSRFKey,
		"YATUBE_CACHE":          &c.Cache,
		"YATUBE_REDIS_URL":      &c.RedisURL,
		"YATUBE_LOG_LEVEL":      &c.LogLevel,
		"YATUBE_LOG_FORMAT":     &c.LogFormat,
		"YATUBE_GORM_LOG_LEVEL": &c.GormLogLevel,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("YATUBE_SECURE_COOKIES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NotValidf("YATUBE_SECURE_COOKIES %q", v)
		}
		c.SecureCookies = b
	}
	if v, ok := lookup("YATUBE_INDEX_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NotValidf("YATUBE_INDEX_CACHE_TTL %q", v)
		}
		c.IndexCacheTTL = d
	}
	return nil
}

// Validate проверяет, что для выбранных бэкендов заданы нужные параметры.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageInMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.NotValidf("empty database_url for postgres storage")
		}
	default:
		return errors.NotValidf("storage %q", c.Storage)
	}
	switch c.Cache {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return errors.NotValidf("empty redis_url for redis cache")
		}
	default:
		return errors.NotValidf("cache %q", c.Cache)
	}
	if c.PostsPerPage < 1 || c.CommentsPerPage < 1 {
		return errors.NotValidf("page size")
	}
	if c.IndexCacheTTL < 0 {
		return errors.NotValidf("negative index_cache_ttl")
	}
	if len(c.SessionKey) > 0 && len(c.SessionKey) < 32 {
		return errors.NotValidf("session_key shorter than 32 bytes")
	}
	if len(c.CSRFKey) > 0 && len(c.CSRFKey) != 32 {
		return errors.NotValidf("csrf_key must be exactly 32 bytes")
	}
	return nil
}
