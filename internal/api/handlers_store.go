package api

import (
	_ "embed"
	"net/http"
	"strconv"

	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

//go:embed static/index.html
var indexHTML []byte

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}

// ClearStore handles POST /clear-store.
func (h *Handler) ClearStore(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	twincore.JSON(w, http.StatusOK, map[string]string{"message": "Emails cleared"})
}

// GetStore handles GET /store. With ?since=T only emails stamped at or after
// T (Unix seconds) are returned.
func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()["since"]
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		twincore.JSON(w, http.StatusOK, store.State{Emails: h.store.List()})
		return
	}
	if len(values) > 1 {
		twincore.JSON(w, http.StatusBadRequest, map[string]string{
			"message": "Bad since query param, expected single value",
		})
		return
	}

	since, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil || strconv.FormatInt(since, 10) != values[0] {
		twincore.JSON(w, http.StatusBadRequest, map[string]string{
			"message": "Bad since query param, expected integer representing epoch timestamp in seconds",
		})
		return
	}
	twincore.JSON(w, http.StatusOK, store.State{Emails: h.store.Since(since)})
}

// HealthCheck handles GET /health-check.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
