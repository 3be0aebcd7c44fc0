package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/session"
)

// stateSource is the read side of a session.
type stateSource interface {
	Keys() []mirror.Key
	Snapshot(key mirror.Key) (map[string]schema.Value, bool)
	Stale(key mirror.Key) bool
	State() session.State
	Synced() bool
	Version() schema.ProtocolVersion
}

type entityJSON struct {
	Key    string                  `json:"key"`
	Kind   string                  `json:"kind"`
	ID     string                  `json:"id,omitempty"`
	Stale  bool                    `json:"stale,omitempty"`
	Fields map[string]schema.Value `json:"fields"`
}

type healthJSON struct {
	State   string `json:"state"`
	Synced  bool   `json:"synced"`
	Version string `json:"version,omitempty"`
}

// newRouter serves the mirror and metrics of src.
//
//	GET /healthz             200 when connected and synced, 503 otherwise
//	GET /metrics             Prometheus metrics
//	GET /state               every entity
//	GET /state/{kind}        entities of one kind
//	GET /state/{kind}/{id}   one entity; ids may contain slashes
func newRouter(src stateSource, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h := healthJSON{State: src.State().String(), Synced: src.Synced()}
		if v := src.Version(); !v.IsZero() {
			h.Version = v.String()
		}
		status := http.StatusOK
		if src.State() != session.Connected || !h.Synced {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, logger, status, h)
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, entities(src, ""))
	})

	r.Get("/state/{kind}", func(w http.ResponseWriter, r *http.Request) {
		list := entities(src, chi.URLParam(r, "kind"))
		if len(list) == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, logger, http.StatusOK, list)
	})

	r.Get("/state/{kind}/*", func(w http.ResponseWriter, r *http.Request) {
		key := mirror.Key{Kind: chi.URLParam(r, "kind"), ID: chi.URLParam(r, "*")}
		fields, ok := src.Snapshot(key)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, logger, http.StatusOK, entityJSON{
			Key: key.String(), Kind: key.Kind, ID: key.ID,
			Stale: src.Stale(key), Fields: fields,
		})
	})

	return r
}

// entities lists the mirror in key order, filtered by kind when set.
func entities(src stateSource, kind string) []entityJSON {
	out := []entityJSON{}
	for _, k := range src.Keys() {
		if kind != "" && k.Kind != kind {
			continue
		}
		fields, ok := src.Snapshot(k)
		if !ok {
			continue
		}
		out = append(out, entityJSON{Key: k.String(), Kind: k.Kind, ID: k.ID, Stale: src.Stale(k), Fields: fields})
	}
	return out
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Debug("write response failed", "error", err)
	}
}
