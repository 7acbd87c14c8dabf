// Package catalog loads the canonical channel directory used to validate xmltv ids.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Channel is one entry of the channel directory. Only the id is required by the queue.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Closed  string `json:"closed,omitempty"`
}

// Catalog is an immutable set of canonical channel ids.
type Catalog struct {
	channels map[string]Channel
}

// New indexes channels by id. Later duplicates overwrite earlier ones.
func New(channels []Channel) *Catalog {
	idx := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		if ch.ID == "" {
			continue
		}
		idx[ch.ID] = ch
	}
	return &Catalog{channels: idx}
}

// Has reports whether id is a known channel.
func (c *Catalog) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.channels[id]
	return ok
}

// Find returns the channel with id.
func (c *Catalog) Find(id string) (Channel, bool) {
	if c == nil {
		return Channel{}, false
	}
	ch, ok := c.channels[id]
	return ch, ok
}

// Len returns the number of indexed channels.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.channels)
}

// Load reads a JSON array of channels from a local path or an http(s) URL.
// A nil client falls back to one with a 30 second timeout.
func Load(ctx context.Context, source string, client *http.Client) (*Catalog, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("catalog source is required")
	}

	var (
		body io.ReadCloser
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(ctx, source, client)
	} else {
		body, err = os.Open(source) // #nosec G304 -- operator-supplied catalog path.
	}
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck // read-only

	var channels []Channel
	if err := json.NewDecoder(body).Decode(&channels); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", source, err)
	}
	return New(channels), nil
}

func fetch(ctx context.Context, url string, client *http.Client) (io.ReadCloser, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck,gosec // body discarded on error
		return nil, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
