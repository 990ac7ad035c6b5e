package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rnwolf/dbr/internal/api"
)

func TestEventStream_ReceivesMutation(t *testing.T) {
	srv := httptest.NewServer(newBackend(t).NewHTTPHandler())
	defer srv.Close()
	c := NewHTTPClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := c.OpenEventStream(ctx, "", []string{"dbr.organization.*"}, "")
	if err != nil {
		t.Fatalf("OpenEventStream: %v", err)
	}
	defer stream.Close()

	org, err := c.CreateOrganization(ctx, &api.CreateOrganizationRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}

	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Topic != "dbr.organization.created" || ev.OrganizationID != org.ID {
		t.Errorf("event = %s/%s, want dbr.organization.created/%s", ev.Topic, ev.OrganizationID, org.ID)
	}
	if stream.LastID != "1" {
		t.Errorf("LastID = %q, want 1", stream.LastID)
	}
}

func TestEventStream_ParsesFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Last-Event-ID"); got != "4" {
			t.Errorf("Last-Event-ID = %q, want 4", got)
		}
		if got := r.URL.Query().Get("org"); got != "org-1" {
			t.Errorf("org = %q, want org-1", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ":keepalive\n\n")
		fmt.Fprint(w, "id:5\nevent:dbr.time.advanced\ndata:{\"id\":\"e5\",\"topic\":\"dbr.time.advanced\"}\n\n")
		fmt.Fprint(w, "id:6\nevent:dbr.schedule.created\ndata: {\"id\":\"e6\",\"topic\":\"dbr.schedule.created\"}\n\n")
	}))
	defer srv.Close()

	stream, err := NewHTTPClient(srv.URL).OpenEventStream(context.Background(), "org-1", nil, "4")
	if err != nil {
		t.Fatalf("OpenEventStream: %v", err)
	}
	defer stream.Close()

	for _, want := range []string{"e5", "e6"} {
		ev, err := stream.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.ID != want {
			t.Errorf("event id = %q, want %q", ev.ID, want)
		}
	}
	if stream.LastID != "6" {
		t.Errorf("LastID = %q, want 6", stream.LastID)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next at end = %v, want io.EOF", err)
	}
}

func TestEventStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).OpenEventStream(context.Background(), "", nil, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503 APIError", err)
	}
}
