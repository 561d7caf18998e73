package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartxdr/core/internal/config"
)

// Record is one ML-classified log event from the log store.
type Record struct {
	Timestamp   time.Time `json:"@timestamp"`
	SourceIP    string    `json:"source_ip"`
	Agent       string    `json:"agent"`
	SourceType  string    `json:"source_type"`
	Severity    string    `json:"ml_classification"` // INFO | WARNING | ERROR
	Probability float64   `json:"ml_probability"`
	MLInput     string    `json:"ml_input"`
}

// SearchQuery restricts a log-store search.
type SearchQuery struct {
	IndexPattern string
	From, To     time.Time
	SourceIP     string   // optional exact filter
	SourceTypes  []string // optional allow-list
	Limit        int
}

// LogStore fetches classified log records.
type LogStore interface {
	Search(ctx context.Context, q SearchQuery) ([]Record, error)
}

// OpenSearchStore queries an OpenSearch/Elasticsearch-compatible API.
type OpenSearchStore struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewOpenSearchStore builds a store from the log-store config.
func NewOpenSearchStore(cfg config.LogStoreConfig) *OpenSearchStore {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport
	if cfg.InsecureTLS {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &OpenSearchStore{
		baseURL:  cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout, Transport: transport},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *OpenSearchStore) Search(ctx context.Context, q SearchQuery) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5000
	}

	must := []map[string]any{
		{"range": map[string]any{"@timestamp": map[string]any{
			"gte": q.From.Format(time.RFC3339),
			"lte": q.To.Format(time.RFC3339),
		}}},
		{"terms": map[string]any{"ml_classification": []string{"INFO", "WARNING", "ERROR"}}},
	}
	if q.SourceIP != "" {
		must = append(must, map[string]any{"term": map[string]any{"source_ip": q.SourceIP}})
	}
	if len(q.SourceTypes) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"source_type": q.SourceTypes}})
	}

	body := map[string]any{
		"size":  limit,
		"query": map[string]any{"bool": map[string]any{"must": must}},
		"sort":  []map[string]any{{"@timestamp": map[string]any{"order": "desc"}}},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/_search", s.baseURL, q.IndexPattern)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("log store unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(payload)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("log store search returned status %d: %s", resp.StatusCode, msg)
	}

	var parsed searchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decoding log store response: %w", err)
	}

	records := make([]Record, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}
