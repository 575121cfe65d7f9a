// Package reportserver exposes a saved call tree over HTTP so a report can
// be inspected without re-running the collection. It is strictly
// read-only: the store is loaded per request and never written.
package reportserver

import (
	"net/http"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/cmakestat/internal/httputil"
	"github.com/getsentry/cmakestat/internal/report"
	"github.com/getsentry/cmakestat/internal/treestore"
)

type Server struct {
	store treestore.FileStore
}

func New(store treestore.FileStore) *Server {
	return &Server{store: store}
}

func (s *Server) NewRouter() (http.Handler, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", s.getHealth},
		{http.MethodGet, "/report", s.getReport},
		{http.MethodGet, "/tree", s.getTree},
	}

	router := httprouter.New()

	for _, route := range routes {
		handler := compress(httputil.LogRequests(route.handler))

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	opts, ok := reportOptions(w, r)
	if !ok {
		return
	}

	forest, err := s.store.Load()
	if err != nil {
		s.serverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	err = report.Render(w, forest, opts)
	if err != nil {
		log.Err(err).Msg("error rendering report")
	}
}

func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	forest, err := s.store.Load()
	if err != nil {
		s.serverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(forest)
	if err != nil {
		log.Err(err).Msg("error encoding tree")
	}
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	sentry.CaptureException(err)
	log.Err(err).Msg("error loading the tree store")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func reportOptions(w http.ResponseWriter, r *http.Request) (report.Options, bool) {
	var opts report.Options
	var ok bool
	if opts.Threshold, ok = httputil.QueryFloat(w, r, "threshold", 0); !ok {
		return opts, false
	}
	if opts.MaxDepth, ok = httputil.QueryInt(w, r, "depth", 0); !ok {
		return opts, false
	}
	if opts.Width, ok = httputil.QueryInt(w, r, "width", 0); !ok {
		return opts, false
	}
	if opts.SortByDuration, ok = httputil.QueryBool(w, r, "sort"); !ok {
		return opts, false
	}
	if opts.SinglePath, ok = httputil.QueryBool(w, r, "one"); !ok {
		return opts, false
	}
	return opts, true
}
