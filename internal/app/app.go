// Package app constructs the long-lived components of romcatalog in a
// fixed order and owns their lifetimes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/catalog/emumovies"
	"github.com/ryanm101/romcatalog/internal/catalog/gamesdb"
	"github.com/ryanm101/romcatalog/internal/catalog/igdb"
	"github.com/ryanm101/romcatalog/internal/config"
	"github.com/ryanm101/romcatalog/internal/dat"
	"github.com/ryanm101/romcatalog/internal/db"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/logging"
	"github.com/ryanm101/romcatalog/internal/merge"
	"github.com/ryanm101/romcatalog/internal/platform"
	"github.com/ryanm101/romcatalog/internal/refresh"
	"github.com/ryanm101/romcatalog/internal/token"
	"github.com/ryanm101/romcatalog/internal/tracing"
)

// App holds every component built from a Config. Nothing here is a
// package-level singleton; limiters and token caches live on the App.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Platforms  *platform.Catalog
	Classifier *platform.Classifier
	Arcade     *dat.ArcadeIndex // nil without arcade_dat
	Resolver   *library.Resolver
	Scanner    *library.Scanner
	State      *db.DB

	GamesDB   *gamesdb.Client
	IGDB      *igdb.Provider    // nil unless catalog.provider is igdb
	EmuMovies *emumovies.Client // nil without credentials

	Refresher *refresh.Refresher

	stopTracing func(context.Context) error
}

// New builds an App in dependency order: logger, platform catalog,
// classifier, arcade index, resolver, state database, limiters, token
// caches, catalog clients, providers, refresher.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	a.Logger = logging.Setup(cfg.Logging)

	stop, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.stopTracing = stop

	if err := a.initLibrary(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.State, err = db.Open(ctx, cfg.GetDBPath())
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	if err := a.initCatalogs(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.initRefresher()

	a.Logger.Debug("app initialized",
		"platforms", a.Platforms.Len(),
		"catalog", cfg.GetCatalogProvider(),
		"emumovies", a.EmuMovies != nil,
		"db", a.State.Path(),
	)
	return a, nil
}

func (a *App) initLibrary() error {
	cfg := a.Config

	catalogTable, err := platform.LoadCatalog(cfg.PlatformsFile)
	if err != nil {
		return fmt.Errorf("failed to load platforms: %w", err)
	}
	if len(cfg.PlatformAliases) > 0 {
		catalogTable, err = catalogTable.WithAliases(cfg.PlatformAliases)
		if err != nil {
			return fmt.Errorf("failed to apply platform aliases: %w", err)
		}
	}
	a.Platforms = catalogTable
	a.Classifier = platform.NewClassifier(catalogTable)

	opts := library.ResolverOptions{
		CollectionRoot: cfg.CollectionRoot,
		PlatformRoots:  cfg.PlatformRoots,
	}
	if cfg.ArcadeDat != "" {
		a.Arcade, err = dat.LoadArcadeIndex(cfg.ArcadeDat)
		if err != nil {
			return fmt.Errorf("failed to load arcade DAT: %w", err)
		}
		opts.Names = a.Arcade
		opts.Bios = a.Arcade
	}

	a.Resolver = library.NewResolver(a.Classifier, opts)
	a.Scanner = library.NewScanner(a.Resolver, logging.Component("scanner"))
	return nil
}

func (a *App) initCatalogs() error {
	cfg := a.Config
	cacheRoot := cfg.GetCacheDir()
	freshness := cfg.GetFreshness()
	hc := &http.Client{Timeout: cfg.GetTimeout()}

	// One limiter per provider family.
	gamesDBLimiter := catalog.NewLimiter(cfg.GetConcurrency())

	gamesLog := logging.Component(gamesdb.ProviderName)
	games := catalog.NewClient(gamesdb.ProviderName, gamesDBLimiter,
		catalog.NewDiskCache(cacheRoot, gamesdb.ProviderName, freshness),
		catalog.WithHTTPClient(hc), catalog.WithLogger(gamesLog))
	platforms := catalog.NewClient(gamesdb.PlatformProviderName, gamesDBLimiter,
		catalog.NewDiskCache(cacheRoot, gamesdb.PlatformProviderName, freshness),
		catalog.WithHTTPClient(hc), catalog.WithLogger(gamesLog))
	a.GamesDB = gamesdb.New(cfg.GetGamesDBURL(), games, platforms)

	if cfg.GetCatalogProvider() == igdb.ProviderName {
		if cfg.IGDB.ClientID == "" || cfg.IGDB.ClientSecret == "" {
			return errors.New("igdb catalog requires client credentials")
		}
		log := logging.Component(igdb.ProviderName)
		twitch := igdb.NewTwitch(cfg.GetTwitchTokenURL(), cfg.IGDB.ClientID, cfg.IGDB.ClientSecret, hc)
		tokens := token.New(igdb.ProviderName, igdb.DefaultTokenTTL, twitch, token.WithLogger(log))
		api := catalog.NewClient(igdb.ProviderName, catalog.NewLimiter(cfg.GetConcurrency()),
			catalog.NewDiskCache(cacheRoot, igdb.ProviderName, freshness),
			catalog.WithHTTPClient(hc), catalog.WithTokenSource(tokens), catalog.WithLogger(log))
		a.IGDB = igdb.New(cfg.IGDB.ClientID, api)
	}

	if cfg.EmuMoviesEnabled() {
		log := logging.Component(emumovies.ProviderName)
		login := emumovies.NewLogin(cfg.GetEmuMoviesURL(), cfg.EmuMovies.Username, cfg.EmuMovies.Password, hc)
		tokens := token.New(emumovies.ProviderName, cfg.GetEmuMoviesTokenTTL(), login, token.WithLogger(log))
		api := catalog.NewClient(emumovies.ProviderName, catalog.NewLimiter(cfg.GetConcurrency()),
			catalog.NewDiskCache(cacheRoot, emumovies.ProviderName, freshness),
			catalog.WithHTTPClient(hc), catalog.WithTokenSource(tokens), catalog.WithLogger(log))
		a.EmuMovies = emumovies.New(cfg.GetEmuMoviesURL(), api, tokens)
	}
	return nil
}

func (a *App) initRefresher() {
	log := logging.Component("refresh")

	var remote refresh.GameCatalog = refresh.NewGamesDBCatalog(a.GamesDB)
	if a.IGDB != nil {
		remote = refresh.NewIGDBCatalog(a.IGDB)
	}

	opts := refresh.Options{
		Providers: []refresh.Provider{
			refresh.NewLocalProvider(a.Resolver),
			refresh.NewRemoteProvider(remote, a.Platforms, log),
		},
		Platforms:    a.Platforms,
		PlatformDocs: a.GamesDB,
		State:        a.State,
		Merger:       merge.New(logging.Component("merge")),
		Workers:      a.Config.GetRefreshWorkers(),
		Logger:       log,
	}
	if a.EmuMovies != nil {
		opts.Media = a.EmuMovies
	}
	a.Refresher = refresh.New(opts)
}

// Close releases the database and flushes traces.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.State != nil {
		if err := a.State.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if a.stopTracing != nil {
		if err := a.stopTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
