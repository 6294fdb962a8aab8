package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/samber/lo"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/config"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/metrics"
)

// FPS bounds for the frame loop
const (
	minFPS = 30
	maxFPS = 200
)

// HeadlineSource provides fresh headlines from the cache
type HeadlineSource interface {
	GetFresh(ctx context.Context, window time.Duration) ([]domain.Headline, error)
}

// FrameSink receives rendered frames, implemented by the host display
type FrameSink interface {
	PushFrame(f Frame)
}

// Frame is one rendered ticker state handed to the display
type Frame struct {
	Offset         float64    `json:"offset"`
	Width          int        `json:"width"`
	Segments       []Segment  `json:"segments"` // visible portion only
	TextColor      config.RGB `json:"text_color"`
	SeparatorColor config.RGB `json:"separator_color"`
}

// Service runs the frame-paced render loop. It rebuilds the scroll buffer
// when the scheduler publishes new headlines and rotates to the next batch
// after the configured number of full display cycles.
type Service struct {
	source    HeadlineSource
	renderer  *Renderer
	durations *DurationController
	sink      FrameSink

	fps               float64
	pxPerSecond       float64
	rotationEnabled   bool
	rotationThreshold int
	batchSize         int
	cacheTTL          time.Duration
	feedOrder         []string
	colors            config.ColorsConfig

	mu        sync.RWMutex
	headlines []domain.Headline
	batch     int
	buffer    Buffer
	scroll    *Scroll
	duration  time.Duration
	cycles    int // complete display cycles since last rotation
	rebuiltAt time.Time

	reload chan struct{}
}

// ServiceConfig holds ticker service configuration
type ServiceConfig struct {
	Display   config.DisplayConfig
	CacheTTL  time.Duration
	FeedOrder []string // enabled feed names in display order
	Sink      FrameSink
}

// NewService creates the ticker service
func NewService(source HeadlineSource, cfg ServiceConfig) *Service {
	fps := cfg.Display.TargetFPS
	if fps < minFPS {
		fps = minFPS
	}
	if fps > maxFPS {
		fps = maxFPS
	}

	pxPerSecond := cfg.Display.Scroll.EffectivePixelsPerSecond()

	return &Service{
		source:            source,
		renderer:          NewRenderer(cfg.Display.FontSize, cfg.Display.Logos.Size, cfg.Display.Logos.ShowLogos()),
		durations:         NewDurationController(cfg.Display.Duration),
		sink:              cfg.Sink,
		fps:               fps,
		pxPerSecond:       pxPerSecond,
		rotationEnabled:   cfg.Display.Rotation.IsEnabled(),
		rotationThreshold: cfg.Display.Rotation.Threshold,
		batchSize:         cfg.Display.Rotation.BatchSize,
		cacheTTL:          cfg.CacheTTL,
		feedOrder:         cfg.FeedOrder,
		colors:            cfg.Display.Colors,
		scroll:            NewScroll(cfg.Display.Width, pxPerSecond/fps),
		reload:            make(chan struct{}, 1),
	}
}

// Run drives the frame loop until the context is cancelled
func (s *Service) Run(ctx context.Context) error {
	s.refresh(ctx)

	lgr.Printf("[INFO] ticker started at %.0f fps, %.1f px/s", s.fps, s.pxPerSecond)

	frames := time.NewTicker(time.Duration(float64(time.Second) / s.fps))
	defer frames.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Printf("[INFO] ticker stopped")
			return nil
		case <-s.reload:
			s.refresh(ctx)
		case <-frames.C:
			s.Advance()
		}
	}
}

// Notify asks the service to reload headlines from the cache. Called by
// the scheduler after a fetch cycle changed the cache, non-blocking.
func (s *Service) Notify() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// Advance renders one frame: moves the scroll position and rotates to the
// next headline batch when enough display cycles completed.
func (s *Service) Advance() Frame {
	s.mu.Lock()

	if len(s.buffer.Segments) == 0 {
		s.mu.Unlock()
		return Frame{}
	}

	metrics.FramesRendered.Inc()

	if s.scroll.Advance() {
		s.cycles++
		lgr.Printf("[DEBUG] display cycle complete, %d/%d before rotation", s.cycles, s.rotationThreshold)
		if s.rotationEnabled && s.cycles >= s.rotationThreshold {
			s.rotateLocked()
		}
	}

	frame := s.frameLocked()
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.PushFrame(frame)
	}
	return frame
}

// frameLocked builds the current visible frame, callers hold mu
func (s *Service) frameLocked() Frame {
	start, end := s.scroll.Window()
	return Frame{
		Offset:         s.scroll.Offset(),
		Width:          s.buffer.Width,
		Segments:       s.buffer.Visible(start, end),
		TextColor:      s.colors.Text,
		SeparatorColor: s.colors.Separator,
	}
}

// refresh reloads headlines from the cache and rebuilds the scroll buffer
func (s *Service) refresh(ctx context.Context) {
	headlines, err := s.source.GetFresh(ctx, s.cacheTTL)
	if err != nil {
		lgr.Printf("[ERROR] failed to load headlines: %v", err)
		return
	}

	ordered := s.orderHeadlines(headlines)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.headlines = ordered
	s.batch = 0
	s.rebuildLocked()

	metrics.HeadlineCount.Set(float64(len(ordered)))
	lgr.Printf("[INFO] ticker content updated: %d headlines, width %d px, duration %v",
		len(ordered), s.buffer.Width, s.duration)
}

// orderHeadlines arranges cached headlines in configured feed display order
func (s *Service) orderHeadlines(headlines []domain.Headline) []domain.Headline {
	byFeed := lo.GroupBy(headlines, func(h domain.Headline) string { return h.FeedName })

	ordered := make([]domain.Headline, 0, len(headlines))
	for _, name := range s.feedOrder {
		ordered = append(ordered, byFeed[name]...)
		delete(byFeed, name)
	}
	// feeds removed from config may still have fresh cache entries, skip them
	return ordered
}

// rotateLocked advances to the next headline batch, callers hold mu.
// With a single batch there is nothing to rotate to and the scroll keeps
// its position.
func (s *Service) rotateLocked() {
	batches := s.batchCountLocked()
	if batches <= 1 {
		return
	}
	s.batch = (s.batch + 1) % batches
	lgr.Printf("[INFO] rotating to headline batch %d/%d", s.batch+1, batches)
	s.rebuildLocked()
}

// rebuildLocked recomposes the scroll buffer for the current batch and
// resets scroll position and cycle count, callers hold mu
func (s *Service) rebuildLocked() {
	batch := s.currentBatchLocked()
	s.buffer = s.renderer.Compose(batch)
	s.scroll.SetContent(s.buffer.Width)
	s.duration = s.durations.Duration(s.buffer.Width, s.pxPerSecond)
	s.cycles = 0
	s.rebuiltAt = time.Now()

	metrics.TickerDuration.Set(s.duration.Seconds())
}

// batchCountLocked returns how many batches the headline list splits into
func (s *Service) batchCountLocked() int {
	if s.batchSize <= 0 || len(s.headlines) == 0 {
		return 1
	}
	return (len(s.headlines) + s.batchSize - 1) / s.batchSize
}

// currentBatchLocked returns the headline slice for the active batch
func (s *Service) currentBatchLocked() []domain.Headline {
	if s.batchSize <= 0 {
		return s.headlines
	}
	start := s.batch * s.batchSize
	if start >= len(s.headlines) {
		return s.headlines
	}
	end := start + s.batchSize
	if end > len(s.headlines) {
		end = len(s.headlines)
	}
	return s.headlines[start:end]
}

// State returns a snapshot of the ticker for the status API
func (s *Service) State() domain.TickerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.TickerState{
		Offset:            s.scroll.Offset(),
		ContentWidth:      s.buffer.Width,
		Headlines:         len(s.headlines),
		Cycles:            s.cycles,
		Batch:             s.batch,
		RotationThreshold: s.rotationThreshold,
		Duration:          s.duration,
		LastRebuild:       s.rebuiltAt,
	}
}

// Headlines returns the current headline list in display order
func (s *Service) Headlines() []domain.Headline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]domain.Headline, len(s.headlines))
	copy(res, s.headlines)
	return res
}

// CurrentFrame returns the visible frame without advancing the scroll
func (s *Service) CurrentFrame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameLocked()
}
