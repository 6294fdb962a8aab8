package ticker

// Scroll tracks the horizontal position of the ticker content. The content
// starts just past the right edge of the display and a cycle completes when
// the last pixel has scrolled off the left edge, i.e. after content width
// plus display width pixels.
type Scroll struct {
	displayWidth int
	pxPerFrame   float64
	contentWidth int
	offset       float64
	cycles       int
}

// NewScroll creates a scroll state for the given display width and speed
func NewScroll(displayWidth int, pxPerFrame float64) *Scroll {
	return &Scroll{displayWidth: displayWidth, pxPerFrame: pxPerFrame}
}

// SetContent sets the scrollable content width and resets the position
func (s *Scroll) SetContent(width int) {
	s.contentWidth = width
	s.Reset()
}

// Advance moves the content by one frame step, reporting whether a full
// display cycle completed on this step
func (s *Scroll) Advance() bool {
	if s.contentWidth <= 0 {
		return false
	}

	s.offset += s.pxPerFrame
	span := float64(s.contentWidth + s.displayWidth)
	if s.offset >= span {
		s.offset -= span
		s.cycles++
		return true
	}
	return false
}

// Window returns the content pixel range currently visible on the display
func (s *Scroll) Window() (start, end int) {
	start = int(s.offset) - s.displayWidth
	return start, start + s.displayWidth
}

// Offset returns the current scroll offset in pixels
func (s *Scroll) Offset() float64 { return s.offset }

// Cycles returns the number of completed display cycles since last reset
func (s *Scroll) Cycles() int { return s.cycles }

// Reset moves the content back to the starting position
func (s *Scroll) Reset() {
	s.offset = 0
	s.cycles = 0
}
