package ticker

import (
	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
)

// layout constants, in pixels
const (
	itemGap      = 32 // gap between headlines in the scroll buffer
	elementGap   = 16 // trailing pad within a headline
	logoSpacing  = 4  // space between logo and title
	infoFontSize = 6  // small font for feed name prefixes
)

// Segment is a single headline laid out for the scroll buffer. Exactly one
// of LogoFile or Prefix/Separator is set: a logo replaces both the feed
// name prefix and the bullet separator.
type Segment struct {
	FeedName  string `json:"feed_name"`
	Title     string `json:"title"`
	Prefix    string `json:"prefix,omitempty"`    // "Feed: " when no logo
	Separator string `json:"separator,omitempty"` // " • " when no logo
	LogoFile  string `json:"logo_file,omitempty"`
	Width     int    `json:"width"` // px, including trailing pad
}

// Buffer is the composed scroll content
type Buffer struct {
	Segments []Segment
	Width    int // px, including gaps between segments
}

// Visible returns the segments intersecting the pixel window [start, end)
func (b Buffer) Visible(start, end int) []Segment {
	var visible []Segment
	x := 0
	for _, seg := range b.Segments {
		segStart, segEnd := x, x+seg.Width
		if segEnd > start && segStart < end {
			visible = append(visible, seg)
		}
		x = segEnd + itemGap
	}
	return visible
}

// Renderer lays out headlines using a monospace cell font model: every
// glyph occupies fontSize pixels, matching the square bitmap fonts used
// on LED matrices.
type Renderer struct {
	fontSize  int
	logoSize  int
	showLogos bool
}

// NewRenderer creates a renderer for the given font and logo sizes
func NewRenderer(fontSize, logoSize int, showLogos bool) *Renderer {
	return &Renderer{fontSize: fontSize, logoSize: logoSize, showLogos: showLogos}
}

// Compose lays out headlines into a scroll buffer. Headlines with a logo
// render as "[Logo] Title", the rest as "Feed: Title •".
func (r *Renderer) Compose(headlines []domain.Headline) Buffer {
	segments := make([]Segment, 0, len(headlines))
	total := 0

	for _, h := range headlines {
		seg := Segment{FeedName: h.FeedName, Title: h.Title}

		if r.showLogos && h.LogoFile != "" {
			seg.LogoFile = h.LogoFile
			seg.Width = r.logoSize + logoSpacing + textWidth(h.Title, r.fontSize)
		} else {
			seg.Prefix = h.FeedName + ": "
			seg.Separator = " • "
			seg.Width = textWidth(seg.Prefix, infoFontSize) +
				textWidth(h.Title, r.fontSize) +
				textWidth(seg.Separator, r.fontSize)
		}
		seg.Width += elementGap

		if len(segments) > 0 {
			total += itemGap
		}
		total += seg.Width
		segments = append(segments, seg)
	}

	return Buffer{Segments: segments, Width: total}
}

// textWidth returns the pixel width of s in a monospace cell font
func textWidth(s string, fontSize int) int {
	return len([]rune(s)) * fontSize
}
