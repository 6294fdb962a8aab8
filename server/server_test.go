package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/ticker"
)

type mockTicker struct {
	state     domain.TickerState
	headlines []domain.Headline
	frame     ticker.Frame
}

func (m *mockTicker) State() domain.TickerState    { return m.state }
func (m *mockTicker) Headlines() []domain.Headline { return m.headlines }
func (m *mockTicker) CurrentFrame() ticker.Frame   { return m.frame }

type mockScheduler struct {
	refreshed bool
	err       error
}

func (m *mockScheduler) RefreshNow(_ context.Context) error {
	m.refreshed = true
	return m.err
}

type mockRegistry struct {
	feeds []domain.Feed
	logos map[string]string
}

func (m *mockRegistry) All() []domain.Feed                 { return m.feeds }
func (m *mockRegistry) ResolveLogo(feedName string) string { return m.logos[feedName] }

type mockCache struct {
	last time.Time
	err  error
}

func (m *mockCache) LastUpdate(_ context.Context) (time.Time, error) { return m.last, m.err }

type mockConfig struct{}

func (m *mockConfig) GetServerConfig() (string, time.Duration) { return ":0", 30 * time.Second }

func setupTestServer(t *testing.T, tick *mockTicker, sched *mockScheduler, reg *mockRegistry) *httptest.Server {
	t.Helper()
	return setupTestServerWithCache(t, tick, sched, reg, &mockCache{})
}

func setupTestServerWithCache(t *testing.T, tick *mockTicker, sched *mockScheduler, reg *mockRegistry, cache *mockCache) *httptest.Server {
	t.Helper()

	srv := New(&mockConfig{}, tick, sched, reg, cache, "test-version", false)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, target interface{}) {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // test URL
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestServer_Status(t *testing.T) {
	lastUpdate := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	tick := &mockTicker{state: domain.TickerState{
		Headlines: 4,
		Duration:  45 * time.Second,
	}}
	ts := setupTestServerWithCache(t, tick, &mockScheduler{}, &mockRegistry{}, &mockCache{last: lastUpdate})

	var status map[string]interface{}
	getJSON(t, ts.URL+"/api/v1/status", &status)

	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "test-version", status["version"])
	assert.InDelta(t, 4, status["headlines"], 0.0001)
	assert.InDelta(t, 45.0, status["duration"], 0.0001)
	assert.Equal(t, lastUpdate.Format(time.RFC3339), status["last_update"], "last update comes from the cache")
}

func TestServer_Headlines(t *testing.T) {
	tick := &mockTicker{headlines: []domain.Headline{
		{FeedName: "MLB", Title: "first", Link: "https://example.com/1", LogoFile: "mlbn.png"},
		{FeedName: "NFL", Title: "second"},
	}}
	ts := setupTestServer(t, tick, &mockScheduler{}, &mockRegistry{})

	var headlines []map[string]interface{}
	getJSON(t, ts.URL+"/api/v1/headlines", &headlines)

	require.Len(t, headlines, 2)
	assert.Equal(t, "MLB", headlines[0]["feed"])
	assert.Equal(t, "first", headlines[0]["title"])
	assert.Equal(t, "mlbn.png", headlines[0]["logo"])
	assert.Equal(t, "NFL", headlines[1]["feed"])
	assert.NotContains(t, headlines[1], "logo", "empty logo omitted")
}

func TestServer_Feeds(t *testing.T) {
	reg := &mockRegistry{
		feeds: []domain.Feed{
			{Name: "MLB", URL: "https://example.com/mlb", Enabled: true},
			{Name: "My Team", URL: "https://example.com/rss", Enabled: false, Custom: true},
		},
		logos: map[string]string{"MLB": "mlbn.png"},
	}
	ts := setupTestServer(t, &mockTicker{}, &mockScheduler{}, reg)

	var feeds []map[string]interface{}
	getJSON(t, ts.URL+"/api/v1/feeds", &feeds)

	require.Len(t, feeds, 2)
	assert.Equal(t, "MLB", feeds[0]["name"])
	assert.Equal(t, true, feeds[0]["enabled"])
	assert.Equal(t, "mlbn.png", feeds[0]["logo"])
	assert.Equal(t, true, feeds[1]["custom"])
	assert.Equal(t, false, feeds[1]["enabled"])
}

func TestServer_Ticker(t *testing.T) {
	tick := &mockTicker{state: domain.TickerState{
		Offset:            12.5,
		ContentWidth:      640,
		Headlines:         6,
		Cycles:            2,
		Batch:             1,
		RotationThreshold: 3,
		Duration:          60 * time.Second,
	}}
	ts := setupTestServer(t, tick, &mockScheduler{}, &mockRegistry{})

	var state map[string]interface{}
	getJSON(t, ts.URL+"/api/v1/ticker", &state)

	assert.InDelta(t, 12.5, state["offset"], 0.0001)
	assert.InDelta(t, 640, state["content_width"], 0.0001)
	assert.InDelta(t, 2, state["cycles"], 0.0001)
	assert.InDelta(t, 1, state["batch"], 0.0001)
	assert.InDelta(t, 3, state["rotation_threshold"], 0.0001)
	assert.InDelta(t, 60.0, state["duration"], 0.0001)
}

func TestServer_Frame(t *testing.T) {
	tick := &mockTicker{frame: ticker.Frame{
		Offset: 100,
		Width:  500,
		Segments: []ticker.Segment{
			{FeedName: "MLB", Title: "visible one", LogoFile: "mlbn.png", Width: 120},
		},
	}}
	ts := setupTestServer(t, tick, &mockScheduler{}, &mockRegistry{})

	var frame map[string]interface{}
	getJSON(t, ts.URL+"/api/v1/frame", &frame)

	assert.InDelta(t, 100, frame["offset"], 0.0001)
	assert.InDelta(t, 500, frame["width"], 0.0001)
	segments, ok := frame["segments"].([]interface{})
	require.True(t, ok)
	require.Len(t, segments, 1)
}

func TestServer_Refresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sched := &mockScheduler{}
		ts := setupTestServer(t, &mockTicker{}, sched, &mockRegistry{})

		resp, err := http.Post(ts.URL+"/api/v1/refresh", "application/json", http.NoBody)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, sched.refreshed)
	})

	t.Run("failure returns 500", func(t *testing.T) {
		sched := &mockScheduler{err: fmt.Errorf("fetch broke")}
		ts := setupTestServer(t, &mockTicker{}, sched, &mockRegistry{})

		resp, err := http.Post(ts.URL+"/api/v1/refresh", "application/json", http.NoBody)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body["error"], "fetch broke")
	})

	t.Run("get method rejected", func(t *testing.T) {
		ts := setupTestServer(t, &mockTicker{}, &mockScheduler{}, &mockRegistry{})

		resp, err := http.Get(ts.URL + "/api/v1/refresh") //nolint:gosec // test URL
		require.NoError(t, err)
		defer resp.Body.Close()

		// wrong method falls through the route group to its catch-all
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_Ping(t *testing.T) {
	ts := setupTestServer(t, &mockTicker{}, &mockScheduler{}, &mockRegistry{})

	resp, err := http.Get(ts.URL + "/ping") //nolint:gosec // test URL
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	ts := setupTestServer(t, &mockTicker{}, &mockScheduler{}, &mockRegistry{})

	resp, err := http.Get(ts.URL + "/metrics") //nolint:gosec // test URL
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_AppInfoHeader(t *testing.T) {
	ts := setupTestServer(t, &mockTicker{}, &mockScheduler{}, &mockRegistry{})

	resp, err := http.Get(ts.URL + "/api/v1/status") //nolint:gosec // test URL
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "ledmatrix-news", resp.Header.Get("App-Name"))
	assert.Equal(t, "test-version", resp.Header.Get("App-Version"))
}

func TestServer_RunShutdown(t *testing.T) {
	srv := New(&mockConfig{}, &mockTicker{}, &mockScheduler{}, &mockRegistry{}, &mockCache{}, "test", false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
