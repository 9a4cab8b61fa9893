package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"auralytics/config"
	"auralytics/logger"
)

func newTestServer() *Server {
	cfg := config.Config{}
	cfg.ApplyDefaults()
	return NewServer(nil, cfg, logger.NewLogger())
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/aura/chat", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleChat_RejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"missing account", `{"messages": [{"role": "user", "content": "hola"}]}`},
		{"missing messages", `{"accountId": 1}`},
	}

	s := newTestServer()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/aura/chat", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			s.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
