// Package config loads mediamap.yaml, .env files and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/postgis"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given
const DefaultPath = "mediamap.yaml"

// Config is the full runtime configuration
type Config struct {
	Map struct {
		AccessToken           string          `yaml:"access_token"`
		Style                 string          `yaml:"style"`
		PreserveDrawingBuffer bool            `yaml:"preserve_drawing_buffer"`
		Viewport              models.Viewport `yaml:"viewport"`
		Scale                 float64         `yaml:"scale"`
	} `yaml:"map"`
	Dataset struct {
		// Source is "sample", "postgis" or a .yaml/.json file path
		Source   string        `yaml:"source"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"dataset"`
	PostGIS postgis.Config `yaml:"postgis"`
	Redis   struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Session  string `yaml:"session"`
	} `yaml:"redis"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`

	// Source names the file the config was read from, empty for defaults
	Source string `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.Map.Style = "streets"
	cfg.Map.Scale = 1
	cfg.Dataset.Source = "sample"
	cfg.Dataset.CacheTTL = 10 * time.Minute
	cfg.PostGIS = postgis.Config{Host: "localhost", Port: 5432, User: "postgres", DBName: "mediamap"}
	cfg.Redis.Session = "default"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Export.Dir = "."
	return cfg
}

// Load reads .env files, then path (or DefaultPath, then its .example
// sibling), then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil && !explicit {
		path += ".example"
		data, err = os.ReadFile(path)
	}
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Source = path
	case explicit:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("MAP_ACCESS_TOKEN", &c.Map.AccessToken)
	str("MEDIAMAP_DATASET", &c.Dataset.Source)
	str("PG_HOST", &c.PostGIS.Host)
	num("PG_PORT", &c.PostGIS.Port)
	str("PG_USER", &c.PostGIS.User)
	str("PG_PASSWORD", &c.PostGIS.Password)
	str("PG_DATABASE", &c.PostGIS.DBName)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASS", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	str("REDIS_SESSION", &c.Redis.Session)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("METRICS_ADDR", &c.Metrics.Addr)
}

// Validate checks the viewport and the dataset source
func (c *Config) Validate() error {
	var errs []error
	vp := c.Map.Viewport
	if b := vp.Bounds; b != nil {
		if !b.BottomLeft.Valid() || !b.TopRight.Valid() {
			errs = append(errs, errors.New("map.viewport.bounds: corners out of range"))
		}
		if b.BottomLeft.Lat > b.TopRight.Lat {
			errs = append(errs, errors.New("map.viewport.bounds: bottom_left is north of top_right"))
		}
	}
	if vp.Center != nil && !vp.Center.Valid() {
		errs = append(errs, errors.New("map.viewport.center: out of range"))
	}
	if vp.Zoom < 0 || vp.Zoom > 22 {
		errs = append(errs, fmt.Errorf("map.viewport.zoom: %v not in [0, 22]", vp.Zoom))
	}
	if c.Map.Scale < 0 {
		errs = append(errs, errors.New("map.scale: must not be negative"))
	}
	if c.Dataset.Source == "" {
		errs = append(errs, errors.New("dataset.source: empty"))
	}
	if c.Dataset.Source == "postgis" && c.PostGIS.Host == "" {
		errs = append(errs, errors.New("postgis.host: required for the postgis dataset"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RedisClient opens a client when redis.addr is set, nil otherwise
func (c *Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB})
}
