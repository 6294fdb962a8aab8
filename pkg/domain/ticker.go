package domain

import "time"

// TickerState is a snapshot of the scrolling ticker, mutated once per
// render frame and once per rotation cycle.
type TickerState struct {
	Offset            float64       `json:"offset"`
	ContentWidth      int           `json:"content_width"`
	Headlines         int           `json:"headlines"`
	Cycles            int           `json:"cycles"`
	Batch             int           `json:"batch"`
	RotationThreshold int           `json:"rotation_threshold"`
	Duration          time.Duration `json:"duration"`
	LastRebuild       time.Time     `json:"last_rebuild"`
}
