package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) embeddings(ctx context.Context, input any) (*embeddingResponse, error) {
	resp, err := c.post(ctx, "/embeddings", map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": input,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
	}

	parsed := &embeddingResponse{}
	if err := json.Unmarshal(raw, parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	return parsed, nil
}

// Embed returns the embedding vector for one text. The caller is expected
// to have normalized whitespace already.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	parsed, err := c.embeddings(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return parsed.Data[0].Embedding, nil
}

// EmbedBatch embeds multiple texts in one call, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	parsed, err := c.embeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(parsed.Data), len(texts))
	}
	out := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		out[i] = parsed.Data[i].Embedding
	}
	return out, nil
}
