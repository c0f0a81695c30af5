package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FranksOps/verifis/internal/pipeline"
	"github.com/FranksOps/verifis/internal/source"
)

type fakeRunner struct {
	got pipeline.Request
	err error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, pipeline.ErrEmptyInput
	}
	return &pipeline.Result{Output: pipeline.Output{
		Sources:      []pipeline.Source{{Title: "T", URL: "https://bbc.com/x", Reliability: source.High, Domain: "bbc.com"}},
		TotalResults: 3,
	}}, nil
}

func newTestServer(r Runner) *httptest.Server {
	s := New(r, Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	return httptest.NewServer(s.Handler())
}

func TestSources(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(runner)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/sources", strings.NewReader(`{"text":"The sky is blue","mode":"page"}`))
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out pipeline.Output
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.TotalResults != 3 || len(out.Sources) != 1 || out.Sources[0].Domain != "bbc.com" {
		t.Errorf("unexpected output %+v", out)
	}
	if runner.got.Mode != pipeline.ModePage || runner.got.ClientIP != "198.51.100.7" {
		t.Errorf("unexpected request %+v", runner.got)
	}
}

func TestSourcesErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed json", `{"text":`, nil, http.StatusBadRequest},
		{"unknown mode", `{"text":"x","mode":"video"}`, nil, http.StatusBadRequest},
		{"empty text", `{"text":"  "}`, nil, http.StatusBadRequest},
		{"pipeline failure", `{"text":"x"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&fakeRunner{err: tt.err})
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/v1/sources", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var e errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
				t.Errorf("expected an error body, got %+v (%v)", e, err)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakeRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/sources")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(&fakeRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		xff, remote, want string
	}{
		{"", "192.0.2.1:5555", "192.0.2.1"},
		{"203.0.113.5", "192.0.2.1:5555", "203.0.113.5"},
		{" 203.0.113.5 , 10.0.0.2", "192.0.2.1:5555", "203.0.113.5"},
		{"", "[2001:db8::1]:443", "2001:db8::1"},
		{"", "pipe", "pipe"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := ClientIP(r); got != tt.want {
			t.Errorf("ClientIP(xff=%q, remote=%q) = %q, want %q", tt.xff, tt.remote, got, tt.want)
		}
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(&fakeRunner{}, Config{Addr: "127.0.0.1:0", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe: %v", err)
	}
}
