package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/session"
	"github.com/vango-dev/burp/pkg/telemetry"
)

type fakeSource struct {
	state   session.State
	synced  bool
	version schema.ProtocolVersion
	ents    map[mirror.Key]map[string]schema.Value
	stale   map[mirror.Key]bool
	order   []mirror.Key
}

func (f *fakeSource) Keys() []mirror.Key { return f.order }

func (f *fakeSource) Snapshot(key mirror.Key) (map[string]schema.Value, bool) {
	v, ok := f.ents[key]
	return v, ok
}

func (f *fakeSource) Stale(key mirror.Key) bool { return f.stale[key] }
func (f *fakeSource) State() session.State { return f.state }
func (f *fakeSource) Synced() bool { return f.synced }
func (f *fakeSource) Version() schema.ProtocolVersion { return f.version }

func newFakeSource() *fakeSource {
	prg := mirror.Key{Kind: "program", ID: "0"}
	tally := mirror.Key{Kind: "input", ID: "cam/1"}
	ver := mirror.Key{Kind: "version"}
	return &fakeSource{
		state:   session.Connected,
		synced:  true,
		version: schema.ProtocolVersion{Major: 2, Minor: 30},
		ents: map[mirror.Key]map[string]schema.Value{
			prg:   {"source": schema.U16(4)},
			tally: {"name": schema.String("Camera 1")},
			ver:   {"major": schema.U16(2), "minor": schema.U16(30)},
		},
		stale: map[mirror.Key]bool{tally: true},
		order: []mirror.Key{tally, prg, ver},
	}
}

func testRouter(src stateSource) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	telemetry.NewMetrics(telemetry.WithRegistry(reg))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newRouter(src, reg, logger), reg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		state  session.State
		synced bool
		want   int
	}{
		{"connected and synced", session.Connected, true, http.StatusOK},
		{"connected before dump", session.Connected, false, http.StatusServiceUnavailable},
		{"reconnecting", session.Reconnecting, true, http.StatusServiceUnavailable},
		{"disconnected", session.Disconnected, false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.state, src.synced = tt.state, tt.synced
			h, _ := testRouter(src)

			rec := get(t, h, "/healthz")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body healthJSON
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.State != tt.state.String() || body.Synced != tt.synced || body.Version != "2.30" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestStateAll(t *testing.T) {
	h, _ := testRouter(newFakeSource())

	rec := get(t, h, "/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var list []entityJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d entities, want 3", len(list))
	}
	if list[0].Key != "input/cam/1" || !list[0].Stale {
		t.Errorf("first entity = %+v", list[0])
	}
	if got := list[1].Fields["source"]; got != schema.U16(4) {
		t.Errorf("program source = %v, want 4", got)
	}
}

func TestStateByKind(t *testing.T) {
	h, _ := testRouter(newFakeSource())

	rec := get(t, h, "/state/program")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []entityJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "0" {
		t.Errorf("list = %+v", list)
	}

	if rec := get(t, h, "/state/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", rec.Code)
	}
}

func TestStateEntity(t *testing.T) {
	h, _ := testRouter(newFakeSource())

	tests := []struct {
		path string
		want int
		key  string
	}{
		{"/state/program/0", http.StatusOK, "program/0"},
		{"/state/input/cam/1", http.StatusOK, "input/cam/1"},
		{"/state/program/9", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			var e entityJSON
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
				t.Fatal(err)
			}
			if e.Key != tt.key {
				t.Errorf("key = %q, want %q", e.Key, tt.key)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := testRouter(newFakeSource())

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "burp_retransmits_total") {
		t.Errorf("metrics output missing burp_retransmits_total:\n%s", rec.Body.String())
	}
}
