package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/metrics"
)

// Scheduler runs periodic feed updates in the background, decoupled from
// the render path so network latency never blocks the display. A cron job
// purges expired cache entries.
type Scheduler struct {
	cache    Cache
	fetcher  Fetcher
	registry Registry

	updateInterval   time.Duration
	headlinesPerFeed int
	maxWorkers       int
	cacheTTL         time.Duration
	purgeSchedule    string
	onUpdate         func() // called after a cycle that changed the cache

	cron   *cron.Cron
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Cache interface for headline storage
type Cache interface {
	ReplaceBatch(ctx context.Context, feedName string, headlines []domain.Headline) error
	PurgeExpired(ctx context.Context, window time.Duration) (int64, error)
}

// Fetcher interface for feed retrieval
type Fetcher interface {
	Fetch(ctx context.Context, f domain.Feed, limit int) ([]domain.Headline, error)
}

// Registry interface for feed enumeration and logo resolution
type Registry interface {
	Enabled() []domain.Feed
	ResolveLogo(feedName string) string
}

// Config holds scheduler configuration
type Config struct {
	UpdateInterval   time.Duration
	HeadlinesPerFeed int
	MaxWorkers       int
	CacheTTL         time.Duration
	PurgeSchedule    string
	OnUpdate         func()
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cache Cache, fetcher Fetcher, registry Registry, cfg Config) *Scheduler {
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = 5 * time.Minute
	}
	if cfg.HeadlinesPerFeed == 0 {
		cfg.HeadlinesPerFeed = 2
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 2 * cfg.UpdateInterval
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = "@every 10m"
	}

	return &Scheduler{
		cache:            cache,
		fetcher:          fetcher,
		registry:         registry,
		updateInterval:   cfg.UpdateInterval,
		headlinesPerFeed: cfg.HeadlinesPerFeed,
		maxWorkers:       cfg.MaxWorkers,
		cacheTTL:         cfg.CacheTTL,
		purgeSchedule:    cfg.PurgeSchedule,
		onUpdate:         cfg.OnUpdate,
	}
}

// Start begins the background fetch loop and the cache maintenance job
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.fetchWorker(ctx)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.purgeSchedule, func() { s.purgeCache(ctx) }); err != nil {
		return err
	}
	s.cron.Start()

	lgr.Printf("[INFO] scheduler started with update interval %v, purge schedule %q",
		s.updateInterval, s.purgeSchedule)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// fetchWorker periodically updates all enabled feeds
func (s *Scheduler) fetchWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	// run immediately on start
	s.updateAllFeeds(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateAllFeeds(ctx)
		}
	}
}

// updateAllFeeds fetches every enabled feed with a bounded worker pool.
// A failed feed is skipped for the cycle, leaving its cached batch intact.
func (s *Scheduler) updateAllFeeds(ctx context.Context) {
	feeds := s.registry.Enabled()
	if len(feeds) == 0 {
		lgr.Printf("[WARN] no enabled feeds to update")
		return
	}

	lgr.Printf("[INFO] updating %d feeds", len(feeds))

	changed := false
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for _, f := range feeds {
		g.Go(func() error {
			if s.updateFeed(gctx, f) {
				mu.Lock()
				changed = true
				mu.Unlock()
			}
			return nil // per-feed errors are logged, never abort the cycle
		})
	}
	_ = g.Wait()

	lgr.Printf("[INFO] feed update completed")

	if changed && s.onUpdate != nil {
		s.onUpdate()
	}
}

// updateFeed fetches and caches headlines for a single feed, returns true
// when the cache was updated
func (s *Scheduler) updateFeed(ctx context.Context, f domain.Feed) bool {
	lgr.Printf("[DEBUG] updating feed: %s", f.Name)
	metrics.FetchAttempts.WithLabelValues(f.Name).Inc()

	st := time.Now()
	headlines, err := s.fetcher.Fetch(ctx, f, s.headlinesPerFeed)
	metrics.FetchDuration.Observe(time.Since(st).Seconds())
	if err != nil {
		lgr.Printf("[ERROR] failed to fetch feed %s: %v", f.Name, err)
		metrics.FetchErrors.WithLabelValues(f.Name).Inc()
		return false
	}

	if len(headlines) == 0 {
		lgr.Printf("[WARN] no headlines in feed %s", f.Name)
		return false
	}

	// resolve source logo once per feed, missing logo is never fatal
	logo := s.registry.ResolveLogo(f.Name)
	for i := range headlines {
		headlines[i].LogoFile = logo
	}

	if err := s.cache.ReplaceBatch(ctx, f.Name, headlines); err != nil {
		lgr.Printf("[ERROR] failed to cache headlines for %s: %v", f.Name, err)
		return false
	}

	lgr.Printf("[INFO] cached %d headlines from feed: %s", len(headlines), f.Name)
	return true
}

// purgeCache removes expired headlines from the cache
func (s *Scheduler) purgeCache(ctx context.Context) {
	removed, err := s.cache.PurgeExpired(ctx, s.cacheTTL)
	if err != nil {
		lgr.Printf("[ERROR] cache purge failed: %v", err)
		return
	}
	if removed > 0 {
		metrics.CachePurged.Add(float64(removed))
		lgr.Printf("[INFO] purged %d expired headlines", removed)
	}
}

// RefreshNow triggers an immediate update of all enabled feeds
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	lgr.Printf("[INFO] triggered immediate feed refresh")
	s.updateAllFeeds(ctx)
	return nil
}
