package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Sports</title>
    <item>
      <title>First headline &amp; more</title>
      <link>https://example.com/1</link>
      <guid>guid-1</guid>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Second headline</title>
      <link>https://example.com/2</link>
    </item>
    <item>
      <title>Third headline</title>
      <link>https://example.com/3</link>
    </item>
  </channel>
</rss>`

func TestParserFetch(t *testing.T) {
	t.Run("successful fetch with limit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, testRSS)
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 1, 100)
		headlines, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 2)
		require.NoError(t, err)
		require.Len(t, headlines, 2, "limit caps the number of headlines")

		assert.Equal(t, "Test", headlines[0].FeedName)
		assert.Equal(t, "First headline & more", headlines[0].Title)
		assert.Equal(t, "https://example.com/1", headlines[0].Link)
		assert.Equal(t, "guid-1", headlines[0].GUID)
		assert.Equal(t, 2006, headlines[0].Published.Year())
		assert.False(t, headlines[0].FetchedAt.IsZero())

		assert.Equal(t, "https://example.com/2", headlines[1].GUID, "link used when guid missing")
		assert.True(t, headlines[1].Published.IsZero())
	})

	t.Run("guid falls back to feed-title pair", func(t *testing.T) {
		rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
			<item><title>No identifiers here</title></item></channel></rss>`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, rss)
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 1, 100)
		headlines, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 5)
		require.NoError(t, err)
		require.Len(t, headlines, 1)
		assert.Equal(t, "Test-No identifiers here", headlines[0].GUID)
	})

	t.Run("items without usable title dropped", func(t *testing.T) {
		rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
			<item><title>&lt;img src="x.png"/&gt;</title><link>https://example.com/1</link></item>
			<item><title>Real one</title><link>https://example.com/2</link></item>
			</channel></rss>`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, rss)
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 1, 100)
		headlines, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 5)
		require.NoError(t, err)
		require.Len(t, headlines, 1)
		assert.Equal(t, "Real one", headlines[0].Title)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, testRSS)
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 3, 100)
		headlines, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 1)
		require.NoError(t, err)
		assert.Len(t, headlines, 1)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 2, 100)
		_, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status code: 503")
		assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	})

	t.Run("malformed feed not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			fmt.Fprint(w, "this is not xml at all")
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 3, 100)
		_, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse feed")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "malformed XML won't get better on retry")
	})

	t.Run("repeated items collapsed", func(t *testing.T) {
		rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
			<item><title>Same story</title><link>https://example.com/1</link><guid>dup</guid></item>
			<item><title>Same story again</title><link>https://example.com/1b</link><guid>dup</guid></item>
			<item><title>Different story</title><link>https://example.com/2</link><guid>other</guid></item>
			</channel></rss>`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, rss)
		}))
		defer srv.Close()

		p := NewParser(5*time.Second, "test-agent", 1, 100)
		headlines, err := p.Fetch(context.Background(), domain.Feed{Name: "Test", URL: srv.URL}, 5)
		require.NoError(t, err)
		require.Len(t, headlines, 2, "duplicate guid within one document kept once")
		assert.Equal(t, "Same story", headlines[0].Title)
		assert.Equal(t, "Different story", headlines[1].Title)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, testRSS)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := NewParser(5*time.Second, "test-agent", 1, 100)
		_, err := p.Fetch(ctx, domain.Feed{Name: "Test", URL: srv.URL}, 1)
		require.Error(t, err)
	})
}
