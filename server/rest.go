package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// statusHandler returns server status with a ticker summary
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	state := s.ticker.State()

	lastUpdate, err := s.cache.LastUpdate(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to get last cache update: %v", err)
	}

	status := map[string]interface{}{
		"status":       "ok",
		"version":      s.version,
		"time":         time.Now().UTC(),
		"headlines":    state.Headlines,
		"duration":     state.Duration.Seconds(),
		"last_update":  lastUpdate,
		"last_rebuild": state.LastRebuild,
	}
	renderJSON(w, r, http.StatusOK, status)
}

// headlinesHandler returns current headlines in display order
func (s *Server) headlinesHandler(w http.ResponseWriter, r *http.Request) {
	headlines := s.ticker.Headlines()

	type headlineResp struct {
		Feed      string    `json:"feed"`
		Title     string    `json:"title"`
		Link      string    `json:"link,omitempty"`
		Published time.Time `json:"published,omitempty"`
		Logo      string    `json:"logo,omitempty"`
	}

	resp := make([]headlineResp, len(headlines))
	for i, h := range headlines {
		resp[i] = headlineResp{
			Feed:      h.FeedName,
			Title:     h.Title,
			Link:      h.Link,
			Published: h.Published,
			Logo:      h.LogoFile,
		}
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// feedsHandler returns the merged feed registry view
func (s *Server) feedsHandler(w http.ResponseWriter, r *http.Request) {
	feeds := s.registry.All()

	type feedResp struct {
		Name    string `json:"name"`
		URL     string `json:"url"`
		Enabled bool   `json:"enabled"`
		Custom  bool   `json:"custom"`
		Logo    string `json:"logo,omitempty"`
	}

	resp := make([]feedResp, len(feeds))
	for i, f := range feeds {
		resp[i] = feedResp{
			Name:    f.Name,
			URL:     f.URL,
			Enabled: f.Enabled,
			Custom:  f.Custom,
			Logo:    s.registry.ResolveLogo(f.Name),
		}
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// tickerHandler returns the full ticker state
func (s *Server) tickerHandler(w http.ResponseWriter, r *http.Request) {
	state := s.ticker.State()
	resp := map[string]interface{}{
		"offset":             state.Offset,
		"content_width":      state.ContentWidth,
		"headlines":          state.Headlines,
		"cycles":             state.Cycles,
		"batch":              state.Batch,
		"rotation_threshold": state.RotationThreshold,
		"duration":           state.Duration.Seconds(),
		"last_rebuild":       state.LastRebuild,
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// frameHandler returns the currently visible ticker frame
func (s *Server) frameHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.ticker.CurrentFrame())
}

// refreshHandler triggers an immediate fetch of all feeds
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.RefreshNow(r.Context()); err != nil {
		log.Printf("[ERROR] failed to refresh feeds: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "refreshed"})
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
