package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCallServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/admin/v1/index" && r.Method == http.MethodGet:
			_, _ = rw.Write([]byte(`{"observer_sessions":2,"observer_dropped":0}` + "\n"))
		case r.URL.Path == "/admin/v1/snapshot" && r.Method == http.MethodPost:
			rw.WriteHeader(http.StatusServiceUnavailable)
			_, _ = rw.Write([]byte(`{"ok":false,"seq":7,"error":"busy"}` + "\n"))
		default:
			http.NotFound(rw, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := callServer(srv.Client(), http.MethodGet, srv.URL+"/", "/admin/v1/index", true, &out); err != nil {
		t.Fatalf("index: %v", err)
	}
	if !strings.Contains(out.String(), "\n  \"observer_sessions\": 2") {
		t.Fatalf("index output not indented: %q", out.String())
	}

	out.Reset()
	err := callServer(srv.Client(), http.MethodPost, srv.URL, "/admin/v1/snapshot", false, &out)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("snapshot: expected 503 error, got %v", err)
	}
	if got := out.String(); got != `{"ok":false,"seq":7,"error":"busy"}`+"\n" {
		t.Fatalf("snapshot body = %q", got)
	}
}
