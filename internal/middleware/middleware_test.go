// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package middleware

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
)

func init() { //nolint:gochecknoinits // test logging setup
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{"generates new id", "", false},
		{"preserves upstream id", "upstream-123", true},
		{"replaces oversized id", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID, logID, corrID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				logID = logging.RequestIDFromContext(r.Context())
				corrID = logging.CorrelationIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if tt.wantSame {
				if got != tt.header {
					t.Errorf("header = %q, want %q", got, tt.header)
				}
			} else if _, err := uuid.Parse(got); err != nil {
				t.Errorf("header %q is not a UUID: %v", got, err)
			}
			if ctxID != got || logID != got {
				t.Errorf("context ids = %q/%q, want %q", ctxID, logID, got)
			}
			if corrID == "" {
				t.Error("correlation id should be set")
			}
		})
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	pattern := "/api/v1/conversations/{id}/messages"
	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, pattern, "418"))

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+id+"/messages", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, pattern, "418"))
	if after-before != 3 {
		t.Errorf("requests recorded under pattern = %v, want 3", after-before)
	}
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))
	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200"))

	if after-before != 1 {
		t.Errorf("unmatched requests = %v, want 1", after-before)
	}
}

func TestStatusRecorder(t *testing.T) {
	t.Run("first status wins", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := newStatusRecorder(rec)
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
		if w.statusCode != http.StatusNotFound {
			t.Errorf("statusCode = %d, want 404", w.statusCode)
		}
	})

	t.Run("hijack unsupported", func(t *testing.T) {
		w := newStatusRecorder(httptest.NewRecorder())
		if _, _, err := w.Hijack(); err == nil {
			t.Error("expected error when the writer cannot hijack")
		}
	})

	t.Run("hijack forwarded", func(t *testing.T) {
		hj := &hijackableWriter{ResponseWriter: httptest.NewRecorder()}
		w := newStatusRecorder(hj)
		if _, _, err := w.Hijack(); err != nil {
			t.Fatalf("Hijack() error = %v", err)
		}
		if !hj.hijacked {
			t.Error("underlying Hijack not called")
		}
		if w.statusCode != http.StatusSwitchingProtocols {
			t.Errorf("statusCode = %d, want 101", w.statusCode)
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		rec := httptest.NewRecorder()
		if newStatusRecorder(rec).Unwrap() != rec {
			t.Error("Unwrap should return the wrapped writer")
		}
	})
}

type hijackableWriter struct {
	http.ResponseWriter
	hijacked bool
}

func (h *hijackableWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestAccessLog_PassesThrough(t *testing.T) {
	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "boom" {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
}
