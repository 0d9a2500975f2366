package testutil

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Helper: echo server
// ---------------------------------------------------------------------------

func newEchoServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /raw", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"body":          string(body),
			"content_type":  r.Header.Get("Content-Type"),
			"authorization": r.Header.Get("Authorization"),
		})
	})

	mux.HandleFunc("GET /xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<?xml version="1.0"?><Result><MessageId>m-1</MessageId></Result>`))
	})

	mux.HandleFunc("PUT /config", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})

	return httptest.NewServer(mux)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPostFormKeepsOrder(t *testing.T) {
	srv := newEchoServer()
	defer srv.Close()

	c := NewTwinClient(t, srv)
	resp := c.PostForm("/raw",
		"Destination.ToAddresses.member.2", "b@example.com",
		"Destination.ToAddresses.member.1", "a+tag@example.com",
	).AssertStatus(http.StatusOK)

	body := resp.JSONMap()
	want := "Destination.ToAddresses.member.2=b%40example.com&Destination.ToAddresses.member.1=a%2Btag%40example.com"
	if body["body"] != want {
		t.Errorf("expected body %q, got %q", want, body["body"])
	}
	if body["content_type"] != "application/x-www-form-urlencoded" {
		t.Errorf("expected form content type, got %v", body["content_type"])
	}
}

func TestAuthenticatedDoesNotMutateOriginal(t *testing.T) {
	srv := newEchoServer()
	defer srv.Close()

	c := NewTwinClient(t, srv)
	authed := c.Authenticated()

	if got := authed.PostRaw("/raw", "", "").JSONMap()["authorization"]; got != SigV4Header {
		t.Errorf("expected SigV4 header, got %v", got)
	}
	if got := c.PostRaw("/raw", "", "").JSONMap()["authorization"]; got != "" {
		t.Errorf("expected no authorization on original client, got %v", got)
	}
}

func TestResponseXML(t *testing.T) {
	srv := newEchoServer()
	defer srv.Close()

	var out struct {
		XMLName   xml.Name `xml:"Result"`
		MessageID string   `xml:"MessageId"`
	}
	NewTwinClient(t, srv).Get("/xml").
		AssertStatus(http.StatusOK).
		AssertContentType("text/xml").
		AssertBodyContains("m-1").
		XML(&out)

	if out.MessageID != "m-1" {
		t.Errorf("expected MessageId m-1, got %q", out.MessageID)
	}
}

func TestPut(t *testing.T) {
	srv := newEchoServer()
	defer srv.Close()

	body := NewTwinClient(t, srv).Put("/config", map[string]any{"verbose": true}).JSONMap()
	if body["verbose"] != true {
		t.Errorf("expected verbose=true echoed, got %+v", body)
	}
}
