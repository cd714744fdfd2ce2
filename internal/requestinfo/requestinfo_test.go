package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnrich_AttachesInfo(t *testing.T) {
	var got *RequestInfo
	h := Enrich(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/forms/rhf-zod", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("RequestInfo missing from context")
	}
	if got.Geo.IP != "203.0.113.9" {
		t.Fatalf("IP = %q", got.Geo.IP)
	}
	if got.UA.Browser != "Chrome" || got.UA.Device != "Desktop" {
		t.Fatalf("UA = %+v", got.UA)
	}
	if got.UA.PrimaryLang != "en-us" {
		t.Fatalf("lang = %q", got.UA.PrimaryLang)
	}
	if got.Path != "/forms/rhf-zod" {
		t.Fatalf("path = %q", got.Path)
	}
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if ip := clientIP(req); ip.String() != "192.0.2.1" {
		t.Fatalf("clientIP = %v", ip)
	}
}

func TestInitGeo_EmptyPathDisables(t *testing.T) {
	if err := InitGeo(""); err != nil {
		t.Fatalf("InitGeo(\"\") = %v", err)
	}
	if g := lookupGeo(nil); g != (Geo{}) {
		t.Fatalf("lookupGeo(nil) = %+v", g)
	}
}
