// Package cli implements the layerstack command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/layerstack/pkg/acquire"
	"github.com/matzehuels/layerstack/pkg/buildinfo"
	"github.com/matzehuels/layerstack/pkg/cache"
	"github.com/matzehuels/layerstack/pkg/compositor"
	"github.com/matzehuels/layerstack/pkg/export"
	"github.com/matzehuels/layerstack/pkg/httputil"
	"github.com/matzehuels/layerstack/pkg/pipeline"
	"github.com/matzehuels/layerstack/pkg/prewarm"
)

// appName is the application name used for directories and display.
const appName = "layerstack"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		config: defaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Layerstack composes layered images and exports them",
		Long:         `Layerstack stacks transformed image layers over a background, previews the result at any size and exports it at fixed social-media resolutions.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/layerstack/config.toml)")

	root.AddCommand(c.exportCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.prewarmCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

// newCache opens the configured cache backend.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.config.Cache
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case "", backendFile:
		dir := cfg.Dir
		if dir == "" {
			var err error
			if dir, err = cacheDir(); err != nil {
				c.Logger.Warn("no cache directory, caching disabled", "err", err)
				return cache.NewNullCache(), nil
			}
		}
		return cache.NewFileCache(dir)
	case backendMemory:
		return cache.NewMemoryCache(), nil
	case backendRedis:
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case backendMongo:
		return cache.NewMongoCache(ctx, cache.MongoOptions{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	case backendNone:
		return cache.NewNullCache(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q (use file, memory, redis, mongo or none)", cfg.Backend)
}

// acquireFlags are the image acquisition flags shared by several commands.
type acquireFlags struct {
	origin  string
	proxy   string
	noCache bool
}

func (f *acquireFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.origin, "origin", "", "base URL for relative image URLs (overrides config)")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "image proxy base URL for cross-origin images (overrides config)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the image and artifact cache")
}

// session bundles the objects a command needs to load and compose images.
type session struct {
	cache  cache.Cache
	warmer *prewarm.Warmer
	loader *acquire.Loader
}

func (s *session) Close() error { return s.cache.Close() }

func (c *CLI) newSession(ctx context.Context, flags acquireFlags) (*session, error) {
	ac := c.config.Acquire
	if flags.origin != "" {
		ac.Origin = flags.origin
	}
	if flags.proxy != "" {
		ac.Proxy = flags.proxy
	}

	store, err := c.newCache(ctx, flags.noCache)
	if err != nil {
		return nil, err
	}
	client := httputil.NewClient(ac.Timeout.Duration)
	warmer := prewarm.New(prewarm.Options{
		Cache:  store,
		Client: client,
		Logger: c.Logger,
	})
	loader, err := acquire.New(acquire.Options{
		Origin:      ac.Origin,
		ProxyBase:   ac.Proxy,
		Cache:       warmer,
		Client:      client,
		Logger:      c.Logger,
		Concurrency: ac.Concurrency,
		Attempts:    ac.Attempts,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{cache: store, warmer: warmer, loader: loader}, nil
}

func (s *session) runner(logger *log.Logger) *pipeline.Runner {
	comp := compositor.New(compositor.Options{Loader: s.loader, Logger: logger})
	return pipeline.NewRunner(export.New(comp, logger), s.cache, nil, logger)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/layerstack/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory (~/.config/layerstack/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
