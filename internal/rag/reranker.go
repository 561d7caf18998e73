package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Reranker scores documents against a query, higher is more relevant.
// Scores are returned in document order.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// HTTPReranker calls a text-embeddings-inference style /rerank endpoint.
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client

	initOnce sync.Once
	initErr  error
}

// NewHTTPReranker creates a reranker against baseURL. The endpoint is
// probed on first use; a failed probe disables the reranker for the
// lifetime of the process.
func NewHTTPReranker(baseURL, model string) *HTTPReranker {
	return &HTTPReranker{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	r.initOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
		if err != nil {
			r.initErr = err
			return
		}
		resp, err := r.client.Do(req)
		if err != nil {
			r.initErr = fmt.Errorf("reranker unreachable: %w", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			r.initErr = fmt.Errorf("reranker health returned status %d", resp.StatusCode)
		}
	})
	if r.initErr != nil {
		return nil, r.initErr
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: docs, Model: r.model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var results []rerankResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("parsing rerank response: %w", err)
	}

	scores := make([]float64, len(docs))
	for _, res := range results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.Score
		}
	}
	return scores, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
