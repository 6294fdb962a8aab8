package ticker

import (
	"time"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/config"
)

// DurationController decides how long the ticker is displayed: a fixed
// configured value, or dynamically from content width and scroll speed.
type DurationController struct {
	fixed   time.Duration
	dynamic bool
	min     time.Duration
	max     time.Duration
	buffer  float64
}

// NewDurationController creates a controller from display configuration
func NewDurationController(cfg config.DurationConfig) *DurationController {
	return &DurationController{
		fixed:   cfg.Seconds,
		dynamic: cfg.Dynamic.Enabled,
		min:     cfg.Dynamic.Min,
		max:     cfg.Dynamic.Max,
		buffer:  cfg.Dynamic.Buffer,
	}
}

// Duration computes the display duration for the given content width and
// effective scroll rate. Dynamic durations are inflated by the buffer
// ratio and always clamped to [min, max].
func (c *DurationController) Duration(contentWidth int, pxPerSecond float64) time.Duration {
	if !c.dynamic || pxPerSecond <= 0 || contentWidth <= 0 {
		return c.fixed
	}

	secs := float64(contentWidth) / pxPerSecond * (1 + c.buffer)
	d := time.Duration(secs * float64(time.Second))

	if d < c.min {
		d = c.min
	}
	if d > c.max {
		d = c.max
	}
	return d
}
