// Package qdrant is a minimal REST client for the Qdrant vector index.
// Each document owns one collection (its namespace); points are keyed by a
// UUID derived from the chunk content hash, so re-upserting identical
// content overwrites rather than duplicates.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Payload is the metadata stored with every vector record. Records missing
// required fields are rejected at this boundary instead of being trusted
// downstream.
type Payload struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

// Record is one vector to upsert. ID must be a UUID (or an unsigned
// integer rendered as one); Qdrant rejects arbitrary strings as point IDs.
type Record struct {
	ID      string
	Values  []float32
	Payload Payload
}

// Match is one similarity-search hit, most similar first.
type Match struct {
	ID      string
	Score   float32
	Payload Payload
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Namespace derives the transport-safe collection name for a document
// identifier by stripping every non-ASCII character.
func Namespace(documentID string) string {
	var b strings.Builder
	for _, r := range documentID {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EnsureNamespace creates the collection if it does not exist. Qdrant
// answers 200 for an existing collection with the same schema.
func (c *Client) EnsureNamespace(ctx context.Context, namespace string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+namespace, body, nil)
}

// Upsert writes records into the namespace. Identical IDs overwrite; when
// one batch repeats an ID, the last occurrence wins.
func (c *Client) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, rec := range records {
		if rec.ID == "" || len(rec.Values) == 0 {
			return fmt.Errorf("record %d is missing id or values", i)
		}
		points[i] = map[string]any{
			"id":     rec.ID,
			"vector": rec.Values,
			"payload": map[string]any{
				"text": rec.Payload.Text,
				"page": rec.Payload.Page,
			},
		}
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", namespace)
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil)
}

// Query returns up to topK nearest records. Ordering among equal scores is
// whatever the index decides.
func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int, includePayload bool) ([]Match, error) {
	if topK <= 0 {
		topK = 4
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": includePayload,
	}
	var resp struct {
		Result []struct {
			ID      any      `json:"id"`
			Score   float32  `json:"score"`
			Payload *Payload `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", namespace)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := Match{ID: fmt.Sprintf("%v", r.ID), Score: r.Score}
		if includePayload {
			if r.Payload == nil {
				return nil, fmt.Errorf("match %s has no payload", m.ID)
			}
			m.Payload = *r.Payload
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal qdrant request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build qdrant request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant %s %s status %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response failed: %w", err)
		}
	}
	return nil
}
