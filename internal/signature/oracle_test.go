package signature

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPOracleSignRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req oracleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Digest != "abc123" {
			t.Fatalf("unexpected digest in request: %q", req.Digest)
		}
		_ = json.NewEncoder(w).Encode(oracleResponse{Signature: "signed-abc123"})
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL)
	sig, err := o.Sign("abc123")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if sig != "signed-abc123" {
		t.Fatalf("Sign() = %q, want %q", sig, "signed-abc123")
	}
}

func TestHTTPOracleSignNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL)
	if _, err := o.Sign("abc123"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestHTTPOracleSignEmptySignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(oracleResponse{Signature: ""})
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL)
	if _, err := o.Sign("abc123"); err == nil {
		t.Fatal("expected error on empty signature")
	}
}
