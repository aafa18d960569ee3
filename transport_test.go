package apmagent

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSenderSuccess(t *testing.T) {
	var gotPath, gotEncoding, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotEncoding = r.Header.Get("Content-Encoding")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = ioutil.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := newHTTPSender(srv.URL+"/intake/v2/events", "s3cr3t", true)
	payload := []byte("fake-gzip-bytes")
	if err := s.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/intake/v2/events" {
		t.Errorf("path = %q, want /intake/v2/events", gotPath)
	}
	if gotEncoding != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", gotEncoding)
	}
	if gotAuth != "Bearer s3cr3t" {
		t.Errorf("Authorization = %q, want Bearer s3cr3t", gotAuth)
	}
	if string(gotBody) != string(payload) {
		t.Errorf("body = %q, want %q", gotBody, payload)
	}
}

func TestHTTPSenderNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	s := newHTTPSender(srv.URL, "", true)
	if err := s.Send([]byte("x")); err == nil {
		t.Fatal("Send() = nil error, want non-nil for 503 response")
	}
}

func TestDiscardSenderAlwaysSucceeds(t *testing.T) {
	var s discardSender
	if err := s.Send([]byte("anything")); err != nil {
		t.Errorf("discardSender.Send() = %v, want nil", err)
	}
}
