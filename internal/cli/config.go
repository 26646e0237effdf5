package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/pipeline"
	"github.com/matzehuels/layerstack/pkg/proxy"
)

// Cache backends selectable in the config file.
const (
	backendFile   = "file"
	backendMemory = "memory"
	backendRedis  = "redis"
	backendMongo  = "mongo"
	backendNone   = "none"
)

// envRedisAddr overrides cache.redis_addr and selects the redis backend.
const envRedisAddr = "LAYERSTACK_REDIS_ADDR"

// Config is the layerstack configuration file.
//
//	[acquire]
//	origin = "https://app.example.com"
//	proxy = "http://localhost:8080"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
type Config struct {
	Acquire AcquireConfig `toml:"acquire"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Cache   CacheConfig   `toml:"cache"`
	Export  ExportConfig  `toml:"export"`
}

type AcquireConfig struct {
	Origin      string   `toml:"origin"`
	Proxy       string   `toml:"proxy"`
	Concurrency int      `toml:"concurrency"`
	Attempts    int      `toml:"attempts"`
	Timeout     duration `toml:"timeout"`
}

type ProxyConfig struct {
	Addr      string   `toml:"addr"`
	AllowList []string `toml:"allow"`
	Enforce   bool     `toml:"enforce"`
}

type CacheConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

type ExportConfig struct {
	Preset     string `toml:"preset"`
	Format     string `toml:"format"`
	Quality    int    `toml:"quality"`
	Background string `toml:"background"`
}

// duration decodes TOML strings such as "15s".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func defaultConfig() Config {
	return Config{
		Acquire: AcquireConfig{
			Concurrency: acquire.DefaultConcurrency,
			Attempts:    acquire.DefaultAttempts,
		},
		Proxy: ProxyConfig{Addr: proxy.DefaultAddr},
		Cache: CacheConfig{Backend: backendFile},
		Export: ExportConfig{
			Preset:     string(pipeline.DefaultPreset),
			Format:     string(pipeline.DefaultFormat),
			Background: pipeline.DefaultBackground,
		},
	}
}

// loadConfig reads the config file at path. An empty path means the default
// location, which may be absent; an explicit path must exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return applyEnv(cfg), nil
		}
		path = filepath.Join(dir, "config.toml")
	}

	md, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("%s: unknown keys %v", path, undecoded)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if addr := os.Getenv(envRedisAddr); addr != "" {
		cfg.Cache.Backend = backendRedis
		cfg.Cache.RedisAddr = addr
	}
	return cfg
}

// writeConfig encodes cfg as TOML to path, creating parent directories.
func writeConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
