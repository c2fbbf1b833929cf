// Package config loads romcatalog settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryanm101/romcatalog/internal/logging"
	"github.com/ryanm101/romcatalog/internal/tracing"
)

const (
	defaultDBPath         = "romcatalog.db"
	defaultCacheDir       = ".romcatalog-cache"
	defaultProvider       = "gamesdb"
	defaultConcurrency    = 5
	defaultFreshness      = 7 * 24 * time.Hour
	defaultTimeout        = 30 * time.Second
	defaultEmuMoviesTTL   = 9*time.Minute + 30*time.Second
	defaultRefreshWorkers = 4
	defaultGamesDBURL     = "https://legacy.thegamesdb.net/api/"
	defaultEmuMoviesURL   = "https://api.gamesdbase.com/"
	defaultTwitchTokenURL = "https://id.twitch.tv/oauth2/token"
	providerGamesDB       = "gamesdb"
	providerIGDB          = "igdb"
)

// Config holds application configuration.
type Config struct {
	CacheDir        string              `yaml:"cache_dir"`
	DBPath          string              `yaml:"db_path"`
	CollectionRoot  string              `yaml:"collection_root"`
	PlatformRoots   map[string]string   `yaml:"platform_roots"`   // folder path -> platform id
	PlatformAliases map[string][]string `yaml:"platform_aliases"` // platform id -> extra path aliases
	PlatformsFile   string              `yaml:"platforms_file"`
	ArcadeDat       string              `yaml:"arcade_dat"`
	Catalog         CatalogConfig       `yaml:"catalog"`
	EmuMovies       EmuMoviesConfig     `yaml:"emumovies"`
	IGDB            IGDBConfig          `yaml:"igdb"`
	Refresh         RefreshConfig       `yaml:"refresh"`
	Metrics         MetricsConfig       `yaml:"metrics"`
	Logging         logging.Config      `yaml:"logging"`
	Tracing         tracing.Config      `yaml:"tracing"`
}

// CatalogConfig configures the game metadata catalog.
type CatalogConfig struct {
	Provider    string        `yaml:"provider"` // "gamesdb" or "igdb"
	Concurrency int           `yaml:"concurrency"`
	Freshness   time.Duration `yaml:"freshness"`
	Timeout     time.Duration `yaml:"timeout"`
	GamesDBURL  string        `yaml:"gamesdb_url"`
}

// EmuMoviesConfig configures the authenticated media catalog.
// Leaving the username empty disables it.
type EmuMoviesConfig struct {
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	URL      string        `yaml:"url"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// IGDBConfig holds Twitch client credentials for IGDB.
type IGDBConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
}

// RefreshConfig configures refresh passes.
type RefreshConfig struct {
	Workers int `yaml:"workers"`
}

// MetricsConfig configures how refresh passes export Prometheus metrics.
// Both are off when empty.
type MetricsConfig struct {
	Addr     string `yaml:"addr"`     // serve /metrics during a pass
	Textfile string `yaml:"textfile"` // write a .prom file after a pass
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		CacheDir: defaultCacheDir,
		DBPath:   defaultDBPath,
		Catalog: CatalogConfig{
			Provider:    defaultProvider,
			Concurrency: defaultConcurrency,
			Freshness:   defaultFreshness,
			Timeout:     defaultTimeout,
		},
		Refresh: RefreshConfig{Workers: defaultRefreshWorkers},
		Logging: logging.DefaultConfig(),
		Tracing: tracing.DefaultConfig(),
	}
}

// configPaths returns the list of paths to search for config file.
func configPaths() []string {
	paths := []string{
		".romcatalog.yaml",
		".romcatalog.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "romcatalog", "config.yaml"),
			filepath.Join(home, ".config", "romcatalog", "config.yml"),
			filepath.Join(home, ".romcatalog.yaml"),
		)
	}

	return paths
}

// Load loads configuration from file or returns defaults.
// Priority: env ROMCATALOG_CONFIG > search paths > defaults; env overrides apply last.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if envPath := os.Getenv("ROMCATALOG_CONFIG"); envPath != "" {
		if err := cfg.loadFromFile(envPath); err != nil {
			return nil, err
		}
		cfg.applyEnvOverrides()
		return cfg, cfg.Validate()
	}

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// LoadFile loads configuration from an explicit path, then applies env overrides.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.loadFromFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROMCATALOG_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("ROMCATALOG_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("EMUMOVIES_USERNAME"); v != "" {
		c.EmuMovies.Username = v
	}
	if v := os.Getenv("EMUMOVIES_PASSWORD"); v != "" {
		c.EmuMovies.Password = v
	}
	if v := os.Getenv("IGDB_CLIENT_ID"); v != "" {
		c.IGDB.ClientID = v
	}
	if v := os.Getenv("IGDB_CLIENT_SECRET"); v != "" {
		c.IGDB.ClientSecret = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Enabled = true
		c.Tracing.Endpoint = v
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.GetCatalogProvider() {
	case providerGamesDB:
	case providerIGDB:
		if c.IGDB.ClientID == "" || c.IGDB.ClientSecret == "" {
			return fmt.Errorf("catalog provider igdb requires igdb.client_id and igdb.client_secret")
		}
	default:
		return fmt.Errorf("unknown catalog provider %q", c.Catalog.Provider)
	}
	if c.EmuMovies.Username != "" && c.EmuMovies.Password == "" {
		return fmt.Errorf("emumovies.username is set but emumovies.password is empty")
	}
	return nil
}

// GetDBPath returns the database path, applying defaults.
func (c *Config) GetDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return defaultDBPath
}

// GetCacheDir returns the catalog cache root.
func (c *Config) GetCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return defaultCacheDir
}

// GetCatalogProvider returns the game catalog name.
func (c *Config) GetCatalogProvider() string {
	if c.Catalog.Provider != "" {
		return c.Catalog.Provider
	}
	return defaultProvider
}

// GetConcurrency returns the per-provider request limit.
func (c *Config) GetConcurrency() int {
	if c.Catalog.Concurrency > 0 {
		return c.Catalog.Concurrency
	}
	return defaultConcurrency
}

// GetFreshness returns how long cached documents stay fresh.
func (c *Config) GetFreshness() time.Duration {
	if c.Catalog.Freshness > 0 {
		return c.Catalog.Freshness
	}
	return defaultFreshness
}

// GetTimeout returns the per-request HTTP timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Catalog.Timeout > 0 {
		return c.Catalog.Timeout
	}
	return defaultTimeout
}

// GetGamesDBURL returns the GamesDB API base URL.
func (c *Config) GetGamesDBURL() string {
	if c.Catalog.GamesDBURL != "" {
		return c.Catalog.GamesDBURL
	}
	return defaultGamesDBURL
}

// EmuMoviesEnabled reports whether media catalog credentials are configured.
func (c *Config) EmuMoviesEnabled() bool {
	return c.EmuMovies.Username != ""
}

// GetEmuMoviesURL returns the media catalog base URL.
func (c *Config) GetEmuMoviesURL() string {
	if c.EmuMovies.URL != "" {
		return c.EmuMovies.URL
	}
	return defaultEmuMoviesURL
}

// GetEmuMoviesTokenTTL returns the media catalog session validity window.
func (c *Config) GetEmuMoviesTokenTTL() time.Duration {
	if c.EmuMovies.TokenTTL > 0 {
		return c.EmuMovies.TokenTTL
	}
	return defaultEmuMoviesTTL
}

// GetTwitchTokenURL returns the OAuth endpoint used for IGDB tokens.
func (c *Config) GetTwitchTokenURL() string {
	if c.IGDB.TokenURL != "" {
		return c.IGDB.TokenURL
	}
	return defaultTwitchTokenURL
}

// GetRefreshWorkers returns the number of entities refreshed in parallel.
func (c *Config) GetRefreshWorkers() int {
	if c.Refresh.Workers > 0 {
		return c.Refresh.Workers
	}
	return defaultRefreshWorkers
}
