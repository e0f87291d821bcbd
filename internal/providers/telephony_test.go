package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStartOutboundCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Calls.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "secret" {
			t.Error("missing basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("To") != "+15550100" {
			t.Errorf("To = %q", r.PostForm.Get("To"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"sid": "CA999"}`)
	}))
	defer server.Close()

	tel, err := NewTelephony(TelephonyOptions{AccountSID: "AC123", AuthToken: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewTelephony: %v", err)
	}

	sid, err := tel.StartOutboundCall(context.Background(), OutboundCall{From: "+15550101", To: "+15550100"})
	if err != nil {
		t.Fatalf("StartOutboundCall: %v", err)
	}
	if sid != "CA999" {
		t.Fatalf("sid = %q", sid)
	}
}

func TestStartOutboundCallCarrierError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "invalid number"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	tel, err := NewTelephony(TelephonyOptions{AccountSID: "AC123", AuthToken: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewTelephony: %v", err)
	}
	if _, err := tel.StartOutboundCall(context.Background(), OutboundCall{To: "bogus"}); err == nil {
		t.Fatal("expected carrier error")
	}
}

func TestFetchRecording(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "audio-bytes")
	}))
	defer server.Close()

	tel, err := NewTelephony(TelephonyOptions{AccountSID: "AC123", AuthToken: "secret"})
	if err != nil {
		t.Fatalf("NewTelephony: %v", err)
	}
	body, err := tel.FetchRecording(context.Background(), server.URL+"/rec/1")
	if err != nil {
		t.Fatalf("FetchRecording: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("body = %q", data)
	}
}
