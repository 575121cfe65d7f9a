package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LogRequests logs one line per request with method, path, status and
// duration.
func LogRequests(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	}
}

// QueryFloat reads an optional float query parameter, returning fallback
// when absent. A malformed value gets a 400 and ok == false.
func QueryFloat(w http.ResponseWriter, r *http.Request, key string, fallback float64) (float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		http.Error(w, "expected "+key+" to be a number", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// QueryInt reads an optional integer query parameter, returning fallback
// when absent. A malformed value gets a 400 and ok == false.
func QueryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "expected "+key+" to be an integer", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// QueryBool reads an optional boolean query parameter, false when absent.
// A malformed value gets a 400 and ok == false.
func QueryBool(w http.ResponseWriter, r *http.Request, key string) (bool, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		http.Error(w, "expected "+key+" to be a boolean", http.StatusBadRequest)
		return false, false
	}
	return v, true
}
