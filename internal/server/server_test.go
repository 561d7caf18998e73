package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartxdr/core/internal/alerts"
	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/enrich"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/rag"
	"github.com/smartxdr/core/internal/vectordb"
)

type fakeRepo struct {
	docs        map[string]vectordb.Document
	order       []string
	statsErr    error
	softDeleted []string
	hardDeleted []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: map[string]vectordb.Document{}}
}

func (f *fakeRepo) Add(_ context.Context, id, content string, meta vectordb.Metadata) (string, error) {
	if id == "" {
		id = vectordb.DeriveID(meta.SourceID, meta.Version, content)
	}
	if _, exists := f.docs[id]; !exists {
		f.order = append(f.order, id)
	}
	f.docs[id] = vectordb.Document{ID: id, Content: content, Metadata: meta}
	return id, nil
}

func (f *fakeRepo) AddBatch(ctx context.Context, contents []string, metas []vectordb.Metadata, ids []string) ([]string, error) {
	out := make([]string, len(contents))
	for i := range contents {
		id := ""
		if len(ids) != 0 {
			id = ids[i]
		}
		created, err := f.Add(ctx, id, contents[i], metas[i])
		if err != nil {
			return nil, err
		}
		out[i] = created
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*vectordb.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (f *fakeRepo) Update(_ context.Context, id string, content *string, meta *vectordb.Metadata) (bool, error) {
	doc, ok := f.docs[id]
	if !ok {
		return false, nil
	}
	if content != nil {
		doc.Content = *content
	}
	if meta != nil {
		doc.Metadata = *meta
	}
	f.docs[id] = doc
	return true, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.docs[id]; !ok {
		return false, nil
	}
	delete(f.docs, id)
	f.hardDeleted = append(f.hardDeleted, id)
	return true, nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id string) (bool, error) {
	doc, ok := f.docs[id]
	if !ok {
		return false, nil
	}
	doc.Metadata.IsActive = false
	f.docs[id] = doc
	f.softDeleted = append(f.softDeleted, id)
	return true, nil
}

func (f *fakeRepo) Query(context.Context, string, int, map[string]string) (*vectordb.QueryResult, error) {
	return &vectordb.QueryResult{}, nil
}

func (f *fakeRepo) List(_ context.Context, where map[string]string, limit, offset int) ([]vectordb.Document, error) {
	var out []vectordb.Document
	for _, id := range f.order {
		doc, ok := f.docs[id]
		if !ok {
			continue
		}
		if v := where["source_id"]; v != "" && doc.Metadata.SourceID != v {
			continue
		}
		if v := where["source"]; v != "" && doc.Metadata.Source != v {
			continue
		}
		if v := where["is_active"]; v == "true" && !doc.Metadata.IsActive || v == "false" && doc.Metadata.IsActive {
			continue
		}
		out = append(out, doc)
	}
	if offset > 0 {
		if offset > len(out) {
			offset = len(out)
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context, where map[string]string) (int, error) {
	docs, _ := f.List(ctx, where, 0, 0)
	return len(docs), nil
}

func (f *fakeRepo) DeactivateOldVersions(_ context.Context, sourceID, keepVersion string) (int, error) {
	n := 0
	for id, doc := range f.docs {
		if doc.Metadata.SourceID != sourceID || doc.Metadata.Version == keepVersion || !doc.Metadata.IsActive {
			continue
		}
		doc.Metadata.IsActive = false
		f.docs[id] = doc
		n++
	}
	return n, nil
}

func (f *fakeRepo) Stats(context.Context) (vectordb.Stats, error) {
	if f.statsErr != nil {
		return vectordb.Stats{}, f.statsErr
	}
	return vectordb.Stats{Total: len(f.docs)}, nil
}

type fakeQueryService struct {
	result  *rag.Result
	err     error
	lastReq struct {
		query     string
		topK      int
		sessionID string
	}
}

func (f *fakeQueryService) Query(_ context.Context, text string, topK int, _ map[string]string, sessionID string) (*rag.Result, error) {
	f.lastReq.query = text
	f.lastReq.topK = topK
	f.lastReq.sessionID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAlertService struct {
	result  *alerts.Result
	lastReq struct {
		window    int
		sourceIP  string
		includeAI bool
	}
}

func (f *fakeAlertService) Summarize(_ context.Context, windowMinutes int, sourceIP, _ string, includeAI bool) (*alerts.Result, error) {
	f.lastReq.window = windowMinutes
	f.lastReq.sourceIP = sourceIP
	f.lastReq.includeAI = includeAI
	return f.result, nil
}

type fakeEnrichService struct {
	result     *enrich.Result
	err        error
	lastCase   string
	lastIOC    string
	lastUpdate bool
}

func (f *fakeEnrichService) EnrichIOC(_ context.Context, caseID, iocID string, updateDescription bool) (*enrich.Result, error) {
	f.lastCase = caseID
	f.lastIOC = iocID
	f.lastUpdate = updateDescription
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testServer(repo vectordb.Repository, ragSvc QueryService, alertSvc AlertService, enrichSvc EnrichService) *Server {
	return New(Options{
		Config: config.ServerConfig{Port: 0},
		Repo:   repo,
		RAG:    ragSvc,
		Alerts: alertSvc,
		Enrich: enrichSvc,
	})
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	s := testServer(newFakeRepo(), nil, nil, nil)
	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCORSHeaders(t *testing.T) {
	s := New(Options{
		Config: config.ServerConfig{AllowAllCORS: true},
		Repo:   newFakeRepo(),
	})

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestCreateAndGetDocument(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/documents", map[string]any{
		"content": "Block outbound SMB at the perimeter.",
		"metadata": map[string]any{
			"source":    "playbooks",
			"source_id": "pb-001",
			"version":   "v1",
			"tags":      []string{"network"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc vectordb.Document
	decodeBody(t, rec, &doc)
	if doc.ID == "" || doc.Content == "" {
		t.Fatalf("document = %+v", doc)
	}
	if !doc.Metadata.IsActive {
		t.Fatal("is_active should default to true")
	}

	rec = doRequest(t, s, http.MethodGet, "/rag/documents/"+doc.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/rag/documents/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing doc status = %d", rec.Code)
	}
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	if errResp.Status != "error" || errResp.ErrorType != "not_found" {
		t.Fatalf("error envelope = %+v", errResp)
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	s := testServer(newFakeRepo(), nil, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/documents", map[string]any{
		"content":  "",
		"metadata": map[string]any{"source_id": "pb-001"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorType != "validation" {
		t.Fatalf("error_type = %s", errResp.ErrorType)
	}

	rec = doRequest(t, s, http.MethodPost, "/rag/documents", map[string]any{
		"content": "text without source_id",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBatchCreate(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/documents/batch", []map[string]any{
		{"content": "chunk one", "metadata": map[string]any{"source_id": "pb-002", "version": "v1"}},
		{"content": "chunk two", "metadata": map[string]any{"source_id": "pb-002", "version": "v1"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DocumentIDs []string `json:"document_ids"`
		Count       int      `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 2 || len(resp.DocumentIDs) != 2 {
		t.Fatalf("response = %+v", resp)
	}

	rec = doRequest(t, s, http.MethodPost, "/rag/documents/batch", []map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", rec.Code)
	}
}

func TestCreateDocumentDeactivatesOldVersions(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)

	activeVersions := func() []string {
		t.Helper()
		docs, _ := repo.List(context.Background(),
			map[string]string{"source_id": "kb-1", "is_active": "true"}, 0, 0)
		var out []string
		for _, d := range docs {
			out = append(out, d.Metadata.Version)
		}
		return out
	}

	for _, version := range []string{"v1", "v2"} {
		rec := doRequest(t, s, http.MethodPost, "/rag/documents", map[string]any{
			"content":  "playbook revision " + version,
			"metadata": map[string]any{"source_id": "kb-1", "version": version},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	// Adding v2 with the default auto_deactivate_old retires v1.
	if got := activeVersions(); len(got) != 1 || got[0] != "v2" {
		t.Fatalf("active versions = %v, want [v2]", got)
	}

	// Opting out keeps the previous version active.
	rec := doRequest(t, s, http.MethodPost, "/rag/documents", map[string]any{
		"content":             "playbook revision v3",
		"metadata":            map[string]any{"source_id": "kb-1", "version": "v3"},
		"auto_deactivate_old": false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := activeVersions(); len(got) != 2 {
		t.Fatalf("active versions = %v, want v2 and v3", got)
	}
}

func TestBatchCreateDeactivatesOldVersions(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)

	for _, version := range []string{"v1", "v2"} {
		rec := doRequest(t, s, http.MethodPost, "/rag/documents/batch", []map[string]any{
			{"content": "chunk one " + version, "metadata": map[string]any{"source_id": "kb-9", "version": version}},
			{"content": "chunk two " + version, "metadata": map[string]any{"source_id": "kb-9", "version": version}},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}

	docs, _ := repo.List(context.Background(),
		map[string]string{"source_id": "kb-9", "is_active": "true"}, 0, 0)
	if len(docs) != 2 {
		t.Fatalf("active chunks = %d, want only the v2 pair", len(docs))
	}
	for _, d := range docs {
		if d.Metadata.Version != "v2" {
			t.Fatalf("active chunk has version %q, want v2", d.Metadata.Version)
		}
	}
}

func TestListDocumentsPagination(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)
	for i, content := range []string{"alpha", "beta", "gamma"} {
		meta := vectordb.Metadata{Source: "docs", SourceID: "s1", Version: "v1", IsActive: true}
		if i == 2 {
			meta.Tags = []string{"mitre", "network"}
		}
		if _, err := repo.Add(context.Background(), "", content, meta); err != nil {
			t.Fatal(err)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/rag/documents?page=1&page_size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Documents  []vectordb.Document `json:"documents"`
		Total      int                 `json:"total"`
		Page       int                 `json:"page"`
		PageSize   int                 `json:"page_size"`
		TotalPages int                 `json:"total_pages"`
	}
	decodeBody(t, rec, &resp)
	if resp.Total != 3 || resp.TotalPages != 2 || len(resp.Documents) != 2 {
		t.Fatalf("page 1 = %+v", resp)
	}

	rec = doRequest(t, s, http.MethodGet, "/rag/documents?page=2&page_size=2", nil)
	decodeBody(t, rec, &resp)
	if len(resp.Documents) != 1 || resp.Page != 2 {
		t.Fatalf("page 2 = %+v", resp)
	}

	rec = doRequest(t, s, http.MethodGet, "/rag/documents?tags=mitre,network", nil)
	decodeBody(t, rec, &resp)
	if resp.Total != 1 || resp.Documents[0].Content != "gamma" {
		t.Fatalf("tag filter = %+v", resp)
	}

	rec = doRequest(t, s, http.MethodGet, "/rag/documents?is_active=maybe", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad is_active status = %d", rec.Code)
	}
}

func TestUpdateDocument(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)
	id, err := repo.Add(context.Background(), "", "original", vectordb.Metadata{
		Source: "docs", SourceID: "s1", Version: "v1", IsActive: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodPut, "/rag/documents/"+id, map[string]any{
		"content":  "revised",
		"metadata": map[string]any{"version": "v2"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc vectordb.Document
	decodeBody(t, rec, &doc)
	if doc.Content != "revised" || doc.Metadata.Version != "v2" {
		t.Fatalf("document = %+v", doc)
	}
	if doc.Metadata.Source != "docs" {
		t.Fatal("unspecified metadata fields must be preserved")
	}

	rec = doRequest(t, s, http.MethodPut, "/rag/documents/missing", map[string]any{
		"content": "whatever",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing doc status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPut, "/rag/documents/"+id, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update status = %d", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	repo := newFakeRepo()
	s := testServer(repo, nil, nil, nil)
	id, _ := repo.Add(context.Background(), "", "to delete", vectordb.Metadata{SourceID: "s1", IsActive: true})

	rec := doRequest(t, s, http.MethodDelete, "/rag/documents/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(repo.softDeleted) != 1 || len(repo.hardDeleted) != 0 {
		t.Fatal("default delete must be soft")
	}

	rec = doRequest(t, s, http.MethodDelete, "/rag/documents/"+id+"?hard=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("hard delete status = %d", rec.Code)
	}
	if len(repo.hardDeleted) != 1 {
		t.Fatal("hard=true must delete permanently")
	}

	rec = doRequest(t, s, http.MethodDelete, "/rag/documents/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted doc status = %d", rec.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	svc := &fakeQueryService{result: &rag.Result{
		Answer:             "Isolate the host.",
		Sources:            []rag.Source{{ID: "d1", Source: "playbooks", Distance: 0.2}},
		Cost:               0.003,
		DocumentsRetrieved: 5,
		ProcessingTime:     42,
	}}
	s := testServer(newFakeRepo(), svc, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/query", map[string]any{
		"query": "what do I do about 10.0.0.5?", "top_k": 5, "session_id": "sess-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "success" || resp.Answer != "Isolate the host." {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Metadata.DocumentsRetrieved != 5 || resp.Metadata.ProcessingTimeMS != 42 {
		t.Fatalf("response = %+v", resp)
	}
	if svc.lastReq.topK != 5 || svc.lastReq.sessionID != "sess-1" {
		t.Fatalf("service call = %+v", svc.lastReq)
	}
}

func TestQueryValidation(t *testing.T) {
	svc := &fakeQueryService{result: &rag.Result{Answer: "x"}}
	s := testServer(newFakeRepo(), svc, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/query", map[string]any{"query": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty query status = %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/rag/query", map[string]any{"query": "q", "top_k": 21})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("top_k 21 status = %d", rec.Code)
	}
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorType != "validation" {
		t.Fatalf("error_type = %s", errResp.ErrorType)
	}
}

func TestQueryExcludesSourcesOnRequest(t *testing.T) {
	svc := &fakeQueryService{result: &rag.Result{
		Answer:  "answer",
		Sources: []rag.Source{{ID: "d1"}},
	}}
	s := testServer(newFakeRepo(), svc, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/rag/query", map[string]any{
		"query": "q", "include_sources": false,
	})
	var resp queryResponse
	decodeBody(t, rec, &resp)
	if resp.Sources != nil {
		t.Fatalf("sources = %+v, want omitted", resp.Sources)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind llm.ErrorKind
		want int
	}{
		{llm.KindRateLimit, http.StatusTooManyRequests},
		{llm.KindCostLimit, http.StatusTooManyRequests},
		{llm.KindValidation, http.StatusBadRequest},
		{llm.KindConnection, http.StatusServiceUnavailable},
		{llm.KindTimeout, http.StatusGatewayTimeout},
		{llm.KindAPIError, http.StatusBadGateway},
		{llm.KindOther, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &fakeQueryService{err: &llm.Error{Kind: tc.kind, Message: "boom"}}
		s := testServer(newFakeRepo(), svc, nil, nil)
		rec := doRequest(t, s, http.MethodPost, "/rag/query", map[string]any{"query": "q"})
		if rec.Code != tc.want {
			t.Errorf("kind %s: status = %d, want %d", tc.kind, rec.Code, tc.want)
		}
		var errResp errorResponse
		decodeBody(t, rec, &errResp)
		if errResp.ErrorType != string(tc.kind) {
			t.Errorf("kind %s: error_type = %s", tc.kind, errResp.ErrorType)
		}
	}
}

func TestStoreErrorMapsTo500(t *testing.T) {
	repo := newFakeRepo()
	repo.statsErr = &vectordb.StoreError{Op: "stats", Err: errors.New("disk gone")}
	s := testServer(repo, nil, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/rag/stats", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	if errResp.ErrorType != "store_error" {
		t.Fatalf("error_type = %s", errResp.ErrorType)
	}
}

func TestStatsEndpoint(t *testing.T) {
	repo := newFakeRepo()
	repo.Add(context.Background(), "", "doc", vectordb.Metadata{SourceID: "s1", IsActive: true})
	s := New(Options{
		Repo:    repo,
		Limiter: limits.New(10, 5.0),
	})

	rec := doRequest(t, s, http.MethodGet, "/rag/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Store  vectordb.Stats `json:"store"`
		Limits *limits.Stats  `json:"limits"`
	}
	decodeBody(t, rec, &resp)
	if resp.Store.Total != 1 {
		t.Fatalf("store total = %d", resp.Store.Total)
	}
	if resp.Limits == nil || resp.Limits.MaxDailyCost != 5.0 {
		t.Fatalf("limits = %+v", resp.Limits)
	}
}

func TestSummarizeAlertsEndpoint(t *testing.T) {
	svc := &fakeAlertService{result: &alerts.Result{Success: true, Status: "ok", Count: 7}}
	s := testServer(newFakeRepo(), nil, svc, nil)

	rec := doRequest(t, s, http.MethodPost, "/triage/summarize-alerts", map[string]any{
		"time_window_minutes": 30,
		"source_ip":           "10.0.0.9",
		"include_ai_analysis": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastReq.window != 30 || svc.lastReq.sourceIP != "10.0.0.9" || svc.lastReq.includeAI {
		t.Fatalf("service call = %+v", svc.lastReq)
	}

	// Empty body: defaults apply and AI analysis is on.
	rec = doRequest(t, s, http.MethodPost, "/triage/summarize-alerts", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastReq.window != 0 || !svc.lastReq.includeAI {
		t.Fatalf("service call = %+v", svc.lastReq)
	}
}

func TestExplainIOCEndpoint(t *testing.T) {
	svc := &fakeEnrichService{result: &enrich.Result{
		Status:    "success",
		RiskLevel: "HIGH",
		Summary:   "Known C2 infrastructure.",
	}}
	s := testServer(newFakeRepo(), nil, nil, svc)

	rec := doRequest(t, s, http.MethodPost, "/enrich/explain_ioc", map[string]any{
		"case_id": "case-9", "ioc_id": "ioc-3", "update_description": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastCase != "case-9" || svc.lastIOC != "ioc-3" {
		t.Fatalf("service call = %s/%s", svc.lastCase, svc.lastIOC)
	}
	var resp enrich.Result
	decodeBody(t, rec, &resp)
	if resp.RiskLevel != "HIGH" {
		t.Fatalf("response = %+v", resp)
	}

	rec = doRequest(t, s, http.MethodPost, "/enrich/explain_ioc", map[string]any{"case_id": "case-9"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ioc_id status = %d", rec.Code)
	}
}

func TestExplainIOCUpdateDescriptionDefaults(t *testing.T) {
	svc := &fakeEnrichService{result: &enrich.Result{Status: "success"}}
	s := testServer(newFakeRepo(), nil, nil, svc)

	// Omitted update_description means update.
	rec := doRequest(t, s, http.MethodPost, "/enrich/explain_ioc", map[string]any{
		"case_id": "case-1", "ioc_id": "ioc-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !svc.lastUpdate {
		t.Fatal("omitted update_description should default to true")
	}

	// An explicit false is honored.
	rec = doRequest(t, s, http.MethodPost, "/enrich/explain_ioc", map[string]any{
		"case_id": "case-1", "ioc_id": "ioc-1", "update_description": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastUpdate {
		t.Fatal("explicit update_description=false was ignored")
	}
}

func TestUnconfiguredServicesReport503(t *testing.T) {
	s := testServer(newFakeRepo(), nil, nil, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/rag/query"},
		{http.MethodPost, "/triage/summarize-alerts"},
		{http.MethodPost, "/enrich/explain_ioc"},
	} {
		rec := doRequest(t, s, tc.method, tc.path, map[string]any{"query": "q"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", tc.path, rec.Code)
		}
	}
}
