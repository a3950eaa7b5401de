package services

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"crc-submission-proxy/utils"
)

func TestTurnstileFailsClosedWithoutSecret(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := &TurnstileClient{Secret: "", Endpoint: server.URL, Client: utils.HTTPClient}
	if client.Verify("a-perfectly-shaped-token", "203.0.113.9") {
		t.Fatal("missing secret must fail closed")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("missing secret must not reach the verification service")
	}
}

func TestTurnstileRejectsEmptyToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := &TurnstileClient{Secret: "secret", Endpoint: server.URL, Client: utils.HTTPClient}
	if client.Verify("", "203.0.113.9") {
		t.Fatal("empty token must be rejected")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("empty token must not reach the verification service")
	}
}

func TestTurnstileVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("secret") != "secret" || r.PostForm.Get("remoteip") != "203.0.113.9" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("response") == "good-token" {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	client := &TurnstileClient{Secret: "secret", Endpoint: server.URL, Client: utils.HTTPClient}
	if !client.Verify("good-token", "203.0.113.9") {
		t.Fatal("valid token should verify")
	}
	if client.Verify("bad-token", "203.0.113.9") {
		t.Fatal("service rejection must propagate as false")
	}
}

func TestTurnstileServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := &TurnstileClient{Secret: "secret", Endpoint: server.URL, Client: utils.HTTPClient}
	if client.Verify("token", "") {
		t.Fatal("non-success responses must yield false")
	}
}
