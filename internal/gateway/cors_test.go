package gateway_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/gateway"
)

func TestCORS(t *testing.T) {
	dev := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://workbook.example.com", "http://localhost:*"},
	}
	tests := []struct {
		name       string
		cfg        config.CORSConfig
		method     string
		origin     string
		preflight  bool
		wantCode   int
		wantOrigin string
		wantInner  bool
	}{
		{"exact origin", dev, http.MethodGet, "https://workbook.example.com", false, http.StatusOK, "https://workbook.example.com", true},
		{"dev server on any port", dev, http.MethodGet, "http://localhost:5173", false, http.StatusOK, "http://localhost:5173", true},
		{"port wildcard needs a port", dev, http.MethodGet, "http://localhost:abc", false, http.StatusOK, "", true},
		{"other host passes without headers", dev, http.MethodGet, "https://evil.example", false, http.StatusOK, "", true},
		{"no origin", dev, http.MethodPatch, "", false, http.StatusOK, "", true},
		{"preflight allowed", dev, http.MethodOptions, "http://localhost:3000", true, http.StatusNoContent, "http://localhost:3000", false},
		{"preflight rejected", dev, http.MethodOptions, "https://evil.example", true, http.StatusForbidden, "", false},
		{"plain OPTIONS reaches the mux", dev, http.MethodOptions, "http://localhost:3000", false, http.StatusOK, "http://localhost:3000", true},
		{"wildcard", config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}, http.MethodGet, "https://any.example", false, http.StatusOK, "https://any.example", true},
		{"disabled", config.CORSConfig{Enabled: false, AllowedOrigins: []string{"*"}}, http.MethodOptions, "https://any.example", true, http.StatusOK, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := gateway.NewCORSMiddleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/v1/work_items", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("got allow-origin %q, want %q", got, tt.wantOrigin)
			}
			if called != tt.wantInner {
				t.Fatalf("inner handler called = %v, want %v", called, tt.wantInner)
			}
			if tt.cfg.Enabled && rec.Header().Get("Vary") != "Origin" {
				t.Fatalf("responses should vary on Origin, got %q", rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.CORSConfig
		wantMethods string
		wantHeaders string
		wantMaxAge  string
	}{
		{
			name:        "defaults",
			cfg:         config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
			wantMethods: "GET, POST, PATCH, DELETE, OPTIONS",
			wantHeaders: "Content-Type, Idempotency-Key, X-Trace-Id",
			wantMaxAge:  "3600",
		},
		{
			name: "configured",
			cfg: config.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: []string{"Content-Type"},
				MaxAge:         7200,
			},
			wantMethods: "GET, POST",
			wantHeaders: "Content-Type",
			wantMaxAge:  "7200",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := gateway.NewCORSMiddleware(tt.cfg)(http.NotFoundHandler())
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/actions/1/complete", nil)
			req.Header.Set("Origin", "http://localhost:5173")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			h := rec.Header()
			if h.Get("Access-Control-Allow-Methods") != tt.wantMethods ||
				h.Get("Access-Control-Allow-Headers") != tt.wantHeaders ||
				h.Get("Access-Control-Max-Age") != tt.wantMaxAge {
				t.Fatalf("unexpected preflight headers %v", h)
			}
			if !strings.Contains(h.Get("Access-Control-Expose-Headers"), "Idempotent-Replayed") {
				t.Fatalf("replay header should be exposed, got %q", h.Get("Access-Control-Expose-Headers"))
			}
		})
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	handler := gateway.RequestSizeLimitMiddleware(100)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range []struct {
		body string
		want int
	}{
		{`{"name":"障害対応"}`, http.StatusOK},
		{strings.Repeat("x", 200), http.StatusRequestEntityTooLarge},
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/work_items", strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Fatalf("body of %d bytes: got %d, want %d", len(tt.body), rec.Code, tt.want)
		}
	}
}
