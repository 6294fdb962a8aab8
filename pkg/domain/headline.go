package domain

import "time"

// Headline is a single ticker entry produced from a feed item.
// Headlines are ephemeral, recreated on every fetch cycle and kept
// in the cache only for the configured freshness window.
type Headline struct {
	FeedName  string
	Title     string
	Link      string
	GUID      string
	Published time.Time
	FetchedAt time.Time
	LogoFile  string // resolved logo file name, empty when no logo found
}
