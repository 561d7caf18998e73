package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartxdr/core/internal/config"
)

// EnrichmentReport is what the case-management system knows about an
// indicator: the raw analyzer outputs plus identification.
type EnrichmentReport struct {
	IOCValue   string         `json:"ioc_value"`
	IOCType    string         `json:"ioc_type"`
	RawData    map[string]any `json:"raw_data"`
	HTMLReport string         `json:"html_report,omitempty"`
	// DataSource names the intel source the report came from
	// (e.g. "primary" or "fallback").
	DataSource string `json:"data_source"`
}

// IOCRecord is the case system's view of the indicator itself.
type IOCRecord struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CaseAdapter is the boundary to the external case-management system.
// FetchEnrichment returns (nil, nil) when neither the primary nor the
// fallback intel source has a report.
type CaseAdapter interface {
	FetchEnrichment(ctx context.Context, caseID, iocID string) (*EnrichmentReport, error)
	GetIOC(ctx context.Context, caseID, iocID string) (*IOCRecord, error)
	PostComment(ctx context.Context, caseID, iocID, comment string) error
	UpdateIOC(ctx context.Context, caseID, iocID, description string, tags []string) error
}

// HTTPCaseAdapter talks to the case system's REST API.
type HTTPCaseAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPCaseAdapter builds an adapter from the case config.
func NewHTTPCaseAdapter(cfg config.CaseConfig) *HTTPCaseAdapter {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCaseAdapter{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *HTTPCaseAdapter) FetchEnrichment(ctx context.Context, caseID, iocID string) (*EnrichmentReport, error) {
	// The primary source is tried first; a 404 there falls through to
	// the fallback endpoint.
	for _, source := range []string{"primary", "fallback"} {
		path := fmt.Sprintf("/api/cases/%s/iocs/%s/enrichment?source=%s", caseID, iocID, source)
		var report EnrichmentReport
		status, err := a.do(ctx, http.MethodGet, path, nil, &report)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			continue
		}
		if report.RawData == nil {
			continue
		}
		report.DataSource = source
		return &report, nil
	}
	return nil, nil
}

func (a *HTTPCaseAdapter) GetIOC(ctx context.Context, caseID, iocID string) (*IOCRecord, error) {
	var rec IOCRecord
	status, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/cases/%s/iocs/%s", caseID, iocID), nil, &rec)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("ioc %s not found in case %s", iocID, caseID)
	}
	return &rec, nil
}

func (a *HTTPCaseAdapter) PostComment(ctx context.Context, caseID, iocID, comment string) error {
	body := map[string]string{"comment": comment}
	_, err := a.do(ctx, http.MethodPost, fmt.Sprintf("/api/cases/%s/iocs/%s/comments", caseID, iocID), body, nil)
	return err
}

func (a *HTTPCaseAdapter) UpdateIOC(ctx context.Context, caseID, iocID, description string, tags []string) error {
	body := map[string]any{"description": description, "tags": tags}
	_, err := a.do(ctx, http.MethodPatch, fmt.Sprintf("/api/cases/%s/iocs/%s", caseID, iocID), body, nil)
	return err
}

func (a *HTTPCaseAdapter) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		msg := string(raw)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return resp.StatusCode, fmt.Errorf("case api %s %s returned status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding case api response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
