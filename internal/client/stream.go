package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rnwolf/dbr/internal/model"
)

// EventStream reads events from the server's SSE endpoint.
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	// LastID is the id of the last event returned by Next. Pass it to
	// OpenEventStream to resume after a reconnect.
	LastID string
}

// OpenEventStream subscribes to GET /v1/events/stream. The subscription is
// registered on the server by the time this returns. An empty orgID
// streams every organization; topics may use "*" and ">" wildcards.
func (c *HTTPClient) OpenEventStream(ctx context.Context, orgID string, topics []string, lastID string) (*EventStream, error) {
	q := url.Values{}
	if orgID != "" {
		q.Set("org", orgID)
	}
	if len(topics) > 0 {
		q.Set("topics", strings.Join(topics, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+withQuery("/v1/events/stream", q), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &EventStream{body: resp.Body, scanner: sc, LastID: lastID}, nil
}

// Next blocks until the next event arrives. It returns io.EOF when the
// server closes the stream. Comment lines (keepalives) are skipped.
func (s *EventStream) Next() (*model.Event, error) {
	var id, data string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if data == "" {
				continue
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return nil, fmt.Errorf("decoding event %s: %w", id, err)
			}
			if id != "" {
				s.LastID = id
			}
			return &ev, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "data:"):
			if data != "" {
				data += "\n"
			}
			data += strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *EventStream) Close() error {
	return s.body.Close()
}
