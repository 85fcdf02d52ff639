package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{name: "direct public client", remote: "203.0.113.7:5000", xff: "1.2.3.4", want: "203.0.113.7"},
		{name: "trusted proxy forwards", remote: "10.0.0.2:5000", xff: "198.51.100.1, 10.0.0.2", want: "198.51.100.1"},
		{name: "trusted proxy real ip", remote: "127.0.0.1:5000", xri: "198.51.100.9", want: "198.51.100.9"},
		{name: "invalid forwarded value", remote: "10.0.0.2:5000", xff: "garbage", want: "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	if d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/api/dashboard?timeframe=today", nil)) {
		t.Fatal("ordinary request flagged")
	}
	if !d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/.env", nil)) {
		t.Fatal("dotenv scan not flagged")
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	if !d.DetectSuspiciousRequest(r) {
		t.Fatal("scanner user agent not flagged")
	}
	if d.GetMetrics().SuspiciousRequests != 2 {
		t.Fatalf("metrics = %+v", d.GetMetrics())
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing headers: %v", rr.Header())
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be sent over TLS")
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Header().Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", rr.Header().Get("Strict-Transport-Security"))
	}
}
