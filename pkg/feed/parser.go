package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/mmcdole/gofeed"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
)

// Parser fetches and parses RSS/Atom feeds into headlines
type Parser struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	titleLimit int
}

// NewParser creates a new feed parser. Failed fetches are retried up to
// maxRetries times with backoff before the feed is skipped for the cycle.
func NewParser(timeout time.Duration, userAgent string, maxRetries, titleLimit int) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:  userAgent,
		maxRetries: maxRetries,
		titleLimit: titleLimit,
	}
}

// Fetch retrieves a feed and returns up to limit cleaned headlines.
// Items without a usable title are dropped.
func (p *Parser) Fetch(ctx context.Context, f domain.Feed, limit int) ([]domain.Headline, error) {
	parsed, err := p.parse(ctx, f.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.Name, err)
	}

	now := time.Now()
	seen := make(map[string]struct{}, limit)
	headlines := make([]domain.Headline, 0, limit)
	for _, item := range parsed.Items {
		if len(headlines) >= limit {
			break
		}

		title := CleanTitle(item.Title, p.titleLimit)
		if title == "" {
			continue
		}

		h := domain.Headline{
			FeedName:  f.Name,
			Title:     title,
			Link:      item.Link,
			FetchedAt: now,
		}

		// GUID fallback chain: guid, link, feed-title pair
		switch {
		case item.GUID != "":
			h.GUID = item.GUID
		case item.Link != "":
			h.GUID = item.Link
		default:
			h.GUID = fmt.Sprintf("%s-%s", f.Name, title)
		}

		// feeds sometimes repeat an item within one document
		if _, dup := seen[h.GUID]; dup {
			continue
		}
		seen[h.GUID] = struct{}{}

		if item.PublishedParsed != nil {
			h.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			h.Published = *item.UpdatedParsed
		}

		headlines = append(headlines, h)
	}

	return headlines, nil
}

// parse fetches the feed body with retries and parses it
func (p *Parser) parse(ctx context.Context, url string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed

	retrier := repeater.NewBackoff(p.maxRetries, 500*time.Millisecond, repeater.WithMaxDelay(5*time.Second))
	err := retrier.Do(ctx, func() error {
		body, err := p.fetch(ctx, url)
		if err != nil {
			return err // retry
		}
		defer body.Close()

		parsed, err := gofeed.NewParser().Parse(body)
		if err != nil {
			// malformed XML won't get better on retry
			return &criticalError{err: fmt.Errorf("parse feed: %w", err)}
		}
		feed = parsed
		return nil
	}, errCritical)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// errCritical is the terminating error registered with repeater, retries
// stop as soon as an attempt returns an error matching it
var errCritical = errors.New("critical error")

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// Is matches errCritical so repeater treats the wrapped error as terminating
func (e *criticalError) Is(target error) bool {
	return target == errCritical
}
