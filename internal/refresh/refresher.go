package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/catalog/gamesdb"
	"github.com/ryanm101/romcatalog/internal/db"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/logging"
	"github.com/ryanm101/romcatalog/internal/merge"
	"github.com/ryanm101/romcatalog/internal/metrics"
	"github.com/ryanm101/romcatalog/internal/platform"
	"github.com/ryanm101/romcatalog/internal/token"
	"github.com/ryanm101/romcatalog/internal/tracing"
)

// DefaultWorkers is the refresh pool size when none is configured.
const DefaultWorkers = 4

// Outcome is the result of refreshing one entity.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeNoData  Outcome = "no_data"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Terminal reports whether the outcome advances the refresh timestamp.
func (o Outcome) Terminal() bool {
	return o == OutcomeUpdated || o == OutcomeNoData
}

// StateStore persists refresh outcomes.
type StateStore interface {
	MarkRefreshed(ctx context.Context, st db.RefreshState) error
	RecordFailure(ctx context.Context, path, kind, passID string, failure error) error
}

// PlatformCatalog fetches platform documents by catalog platform id.
type PlatformCatalog interface {
	EnsurePlatformCached(ctx context.Context, id int) (string, error)
}

// MediaCatalog searches an image-only catalog.
type MediaCatalog interface {
	Media(ctx context.Context, name, platform string) ([]library.ImageRef, error)
}

// Options configures a Refresher.
type Options struct {
	// Providers run in order for every game; later providers overwrite
	// unlocked fields written by earlier ones.
	Providers    []Provider
	Platforms    *platform.Catalog
	PlatformDocs PlatformCatalog // nil disables platform refresh
	Media        MediaCatalog    // nil disables media search
	State        StateStore      // nil keeps no state
	Merger       *merge.Merger
	Workers      int
	Logger       *slog.Logger
}

// Refresher applies providers to entities.
type Refresher struct {
	providers    []Provider
	catalogs     []GameCatalog
	platforms    *platform.Catalog
	platformDocs PlatformCatalog
	media        MediaCatalog
	state        StateStore
	merger       *merge.Merger
	workers      int
	logger       *slog.Logger
}

// New returns a Refresher.
func New(opts Options) *Refresher {
	r := &Refresher{
		providers:    opts.Providers,
		platforms:    opts.Platforms,
		platformDocs: opts.PlatformDocs,
		media:        opts.Media,
		state:        opts.State,
		merger:       opts.Merger,
		workers:      opts.Workers,
		logger:       logging.OrDiscard(opts.Logger),
	}
	if r.merger == nil {
		r.merger = merge.New(r.logger)
	}
	if r.workers <= 0 {
		r.workers = DefaultWorkers
	}
	for _, p := range r.providers {
		if rp, ok := p.(*RemoteProvider); ok {
			r.catalogs = append(r.catalogs, rp.Catalog())
		}
	}
	return r
}

type passIDKey struct{}

// WithPassID attaches a refresh pass id to ctx.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey{}, id)
}

// PassID returns the pass id carried by ctx, if any.
func PassID(ctx context.Context) string {
	id, _ := ctx.Value(passIDKey{}).(string)
	return id
}

// isNoData reports errors that end a provider's turn without failing the
// entity: confirmed absence and malformed documents.
func isNoData(err error) bool {
	return errors.Is(err, catalog.ErrNoData) || errors.Is(err, catalog.ErrParse)
}

// RefreshGame runs every provider over g in order and merges their
// documents. Network and authentication failures abort the entity and leave
// its refresh timestamp untouched. A malformed player count aborts it too.
func (r *Refresher) RefreshGame(ctx context.Context, g *library.GameEntity) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		metrics.RefreshOutcomes.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, err
	}

	ctx, span := tracing.StartSpan(ctx, "refresh.game", trace.WithAttributes(
		attribute.String("path", g.Path),
		attribute.String("platform", g.PlatformID),
	))
	outcome, err := r.refreshGame(ctx, g)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	tracing.EndSpan(span, err)

	metrics.RefreshOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (r *Refresher) refreshGame(ctx context.Context, g *library.GameEntity) (Outcome, error) {
	passID := PassID(ctx)
	logger := r.logger.With("path", g.Path, "pass_id", passID)

	var last *catalog.Document
	for _, p := range r.providers {
		doc, err := p.FetchGame(ctx, g)
		if err != nil {
			if isNoData(err) {
				if errors.Is(err, catalog.ErrParse) {
					logger.Warn("unparsable document treated as no data", "provider", p.Name(), "error", err)
				} else {
					logger.Debug("provider has no data", "provider", p.Name())
				}
				continue
			}
			r.recordFailure(ctx, g.Path, db.KindGame, err, logger)
			return OutcomeFailed, fmt.Errorf("%s: %w", p.Name(), err)
		}

		if err := r.merger.MergeGame(g, doc); err != nil {
			r.recordFailure(ctx, g.Path, db.KindGame, err, logger)
			return OutcomeFailed, err
		}
		last = doc
	}

	st := db.RefreshState{Path: g.Path, Kind: db.KindGame, Outcome: string(OutcomeNoData), PassID: passID}
	if last != nil {
		st.Outcome = string(OutcomeUpdated)
		st.Provider = last.Provider
		st.RemoteID = last.RemoteID
	}
	r.markRefreshed(ctx, st, logger)

	logger.Debug("game refreshed", "outcome", st.Outcome, "provider", st.Provider, "remote_id", st.RemoteID)
	return Outcome(st.Outcome), nil
}

// RefreshPlatform merges the catalog's platform document into p and sets
// its images.
func (r *Refresher) RefreshPlatform(ctx context.Context, p *library.PlatformEntity) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, err
	}

	ctx, span := tracing.StartSpan(ctx, "refresh.platform", trace.WithAttributes(
		attribute.String("path", p.Path),
		attribute.String("platform", p.PlatformID),
	))
	outcome, err := r.refreshPlatform(ctx, p)
	tracing.EndSpan(span, err)

	metrics.RefreshOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (r *Refresher) refreshPlatform(ctx context.Context, p *library.PlatformEntity) (Outcome, error) {
	passID := PassID(ctx)
	logger := r.logger.With("path", p.Path, "pass_id", passID)
	st := db.RefreshState{Path: p.Path, Kind: db.KindPlatform, Outcome: string(OutcomeNoData), PassID: passID}

	catalogID := r.platformCatalogID(p)
	if catalogID == 0 || r.platformDocs == nil {
		r.markRefreshed(ctx, st, logger)
		return OutcomeNoData, nil
	}

	path, err := r.platformDocs.EnsurePlatformCached(ctx, catalogID)
	if err != nil {
		if isNoData(err) {
			r.markRefreshed(ctx, st, logger)
			return OutcomeNoData, nil
		}
		r.recordFailure(ctx, p.Path, db.KindPlatform, err, logger)
		return OutcomeFailed, err
	}

	doc, err := gamesdb.LoadPlatform(path)
	if err != nil {
		if isNoData(err) {
			logger.Warn("platform document has no data", "remote_id", catalogID, "error", err)
			r.markRefreshed(ctx, st, logger)
			return OutcomeNoData, nil
		}
		r.recordFailure(ctx, p.Path, db.KindPlatform, err, logger)
		return OutcomeFailed, err
	}
	if err := r.merger.MergePlatform(p, doc); err != nil {
		r.recordFailure(ctx, p.Path, db.KindPlatform, err, logger)
		return OutcomeFailed, err
	}

	images, err := gamesdb.ExtractImagesFile(path, gamesdb.KindPlatform)
	if err != nil {
		logger.Warn("platform images unavailable", "remote_id", catalogID, "error", err)
	} else {
		p.SetImages(images)
	}

	st.Outcome = string(OutcomeUpdated)
	st.Provider = doc.Provider
	st.RemoteID = doc.RemoteID
	r.markRefreshed(ctx, st, logger)
	return OutcomeUpdated, nil
}

// platformCatalogID prefers the entity's recorded id over the table's.
func (r *Refresher) platformCatalogID(p *library.PlatformEntity) int {
	if raw := p.ExternalIDs[library.ProviderGamesDB]; raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			return id
		}
	}
	if r.platforms != nil {
		if def, ok := r.platforms.Get(p.PlatformID); ok {
			return def.GamesDBID
		}
	}
	return 0
}

// Images collects image candidates for an identified game from the cached
// documents of every catalog that knows it and from the media catalog, and
// stores them on g grouped by category.
func (r *Refresher) Images(ctx context.Context, g *library.GameEntity) ([]library.ImageRef, error) {
	var refs []library.ImageRef
	for _, c := range r.catalogs {
		id := g.ExternalID(c.ExternalKey())
		if id == "" {
			continue
		}
		path, err := c.EnsureGameCached(ctx, id)
		if err != nil {
			if isNoData(err) {
				continue
			}
			return nil, err
		}
		images, err := c.ExtractImages(path)
		if err != nil {
			if isNoData(err) {
				r.logger.Warn("unparsable image list", "provider", c.Name(), "remote_id", id, "error", err)
				continue
			}
			return nil, err
		}
		refs = append(refs, images...)
	}

	if r.media != nil && r.platforms != nil {
		if def, ok := r.platforms.Get(g.PlatformID); ok && def.MediaPlatform != "" {
			media, err := r.media.Media(ctx, g.Name, def.MediaPlatform)
			if err != nil {
				return nil, err
			}
			refs = append(refs, media...)
		}
	}

	g.SetImages(refs)
	return refs, nil
}

// Failure is one entity that could not be refreshed.
type Failure struct {
	Path string
	Err  error
}

// Summary reports a refresh pass.
type Summary struct {
	PassID   string
	Total    int
	Updated  int
	NoData   int
	Failed   int
	Skipped  int
	Failures []Failure
	Duration time.Duration
}

func (s *Summary) add(outcome Outcome) {
	switch outcome {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeNoData:
		s.NoData++
	case OutcomeFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// RefreshAll refreshes games on a worker pool. A failed entity never stops
// the others, but an authentication failure cancels the rest of the pass
// and is returned. Entities not started are counted as skipped.
func (r *Refresher) RefreshAll(ctx context.Context, games []*library.GameEntity) (*Summary, error) {
	start := time.Now()
	defer metrics.RecordRefreshPass(start)

	passID := uuid.NewString()
	ctx = WithPassID(ctx, passID)
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logger := r.logger.With("pass_id", passID)
	logger.Info("refresh pass started", "games", len(games), "workers", r.workers)

	summary := &Summary{PassID: passID, Total: len(games)}
	var mu sync.Mutex

	jobs := make(chan *library.GameEntity)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range jobs {
				outcome, err := r.RefreshGame(ctx, g)
				if errors.Is(err, token.ErrAuth) {
					cancel(err)
				}

				mu.Lock()
				summary.add(outcome)
				if outcome == OutcomeFailed {
					summary.Failures = append(summary.Failures, Failure{Path: g.Path, Err: err})
				}
				mu.Unlock()
			}
		}()
	}

	started := 0
feed:
	for _, g := range games {
		select {
		case jobs <- g:
			started++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if notStarted := len(games) - started; notStarted > 0 {
		summary.Skipped += notStarted
		metrics.RefreshOutcomes.WithLabelValues(string(OutcomeSkipped)).Add(float64(notStarted))
	}
	summary.Duration = time.Since(start)

	logger.Info("refresh pass finished",
		"updated", summary.Updated,
		"no_data", summary.NoData,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)

	if cause := context.Cause(ctx); cause != nil {
		return summary, cause
	}
	return summary, nil
}

func (r *Refresher) markRefreshed(ctx context.Context, st db.RefreshState, logger *slog.Logger) {
	if r.state == nil {
		return
	}
	if err := r.state.MarkRefreshed(context.WithoutCancel(ctx), st); err != nil {
		logger.Warn("failed to store refresh state", "error", err)
	}
}

func (r *Refresher) recordFailure(ctx context.Context, path, kind string, failure error, logger *slog.Logger) {
	logger.Warn("refresh failed", "error", failure)
	if r.state == nil {
		return
	}
	if err := r.state.RecordFailure(context.WithoutCancel(ctx), path, kind, PassID(ctx), failure); err != nil {
		logger.Warn("failed to store refresh failure", "error", err)
	}
}
