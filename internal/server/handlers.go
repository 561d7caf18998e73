package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartxdr/core/internal/rag"
	"github.com/smartxdr/core/internal/vectordb"
)

// maxTopK caps the number of results a single query may request.
const maxTopK = 20

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type documentMetadata struct {
	Source         string            `json:"source"`
	SourceID       string            `json:"source_id"`
	Version        string            `json:"version"`
	IsActive       *bool             `json:"is_active,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

func (m documentMetadata) toStoreMetadata() vectordb.Metadata {
	active := true
	if m.IsActive != nil {
		active = *m.IsActive
	}
	return vectordb.Metadata{
		Source:   m.Source,
		SourceID: m.SourceID,
		Version:  m.Version,
		IsActive: active,
		Tags:     m.Tags,
		Extra:    m.CustomMetadata,
	}
}

type createDocumentRequest struct {
	ID       string           `json:"id,omitempty"`
	Content  string           `json:"content"`
	Metadata documentMetadata `json:"metadata"`
	// AutoDeactivateOld soft-deletes other active versions of the same
	// source_id after a successful add. Defaults to true.
	AutoDeactivateOld *bool `json:"auto_deactivate_old,omitempty"`
}

func (req createDocumentRequest) autoDeactivate() bool {
	return req.AutoDeactivateOld == nil || *req.AutoDeactivateOld
}

func (req createDocumentRequest) validate() string {
	if strings.TrimSpace(req.Content) == "" {
		return "content must not be empty"
	}
	if req.Metadata.SourceID == "" {
		return "metadata.source_id is required"
	}
	return ""
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid JSON body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeValidationError(w, msg)
		return
	}

	id, err := s.repo.Add(r.Context(), req.ID, req.Content, req.Metadata.toStoreMetadata())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.autoDeactivate() && req.Metadata.Version != "" {
		if _, err := s.repo.DeactivateOldVersions(r.Context(), req.Metadata.SourceID, req.Metadata.Version); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var reqs []createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeValidationError(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(reqs) == 0 {
		writeValidationError(w, "batch must contain at least one document")
		return
	}

	contents := make([]string, len(reqs))
	metas := make([]vectordb.Metadata, len(reqs))
	ids := make([]string, len(reqs))
	hasIDs := false
	for i, req := range reqs {
		if msg := req.validate(); msg != "" {
			writeValidationError(w, "document "+strconv.Itoa(i)+": "+msg)
			return
		}
		contents[i] = req.Content
		metas[i] = req.Metadata.toStoreMetadata()
		ids[i] = req.ID
		if req.ID != "" {
			hasIDs = true
		}
	}
	if !hasIDs {
		ids = nil
	}

	created, err := s.repo.AddBatch(r.Context(), contents, metas, ids)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	deactivated := map[string]bool{}
	for _, req := range reqs {
		key := req.Metadata.SourceID + "\x00" + req.Metadata.Version
		if !req.autoDeactivate() || req.Metadata.Version == "" || deactivated[key] {
			continue
		}
		if _, err := s.repo.DeactivateOldVersions(r.Context(), req.Metadata.SourceID, req.Metadata.Version); err != nil {
			writeServiceError(w, err)
			return
		}
		deactivated[key] = true
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_ids": created,
		"count":        len(created),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if doc == nil {
		writeNotFound(w, "document not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	where := map[string]string{}
	for _, key := range []string{"source_id", "source", "version"} {
		if v := q.Get(key); v != "" {
			where[key] = v
		}
	}
	if v := q.Get("is_active"); v != "" {
		if v != "true" && v != "false" {
			writeValidationError(w, "is_active must be true or false")
			return
		}
		where["is_active"] = v
	}

	var tags []string
	if v := q.Get("tags"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	page := intParam(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := intParam(q.Get("page_size"), defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	docs, err := s.repo.List(r.Context(), where, 0, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	docs = filterByTags(docs, tags)

	total := len(docs)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	pageDocs := docs[start:end]
	if pageDocs == nil {
		pageDocs = []vectordb.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents":   pageDocs,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	})
}

// filterByTags keeps documents carrying every requested tag.
func filterByTags(docs []vectordb.Document, tags []string) []vectordb.Document {
	if len(tags) == 0 {
		return docs
	}
	out := docs[:0:0]
	for _, doc := range docs {
		have := make(map[string]bool, len(doc.Metadata.Tags))
		for _, t := range doc.Metadata.Tags {
			have[t] = true
		}
		all := true
		for _, t := range tags {
			if !have[t] {
				all = false
				break
			}
		}
		if all {
			out = append(out, doc)
		}
	}
	return out
}

func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

type updateMetadataRequest struct {
	Source         *string           `json:"source"`
	SourceID       *string           `json:"source_id"`
	Version        *string           `json:"version"`
	IsActive       *bool             `json:"is_active"`
	Tags           []string          `json:"tags"`
	CustomMetadata map[string]string `json:"custom_metadata"`
}

type updateDocumentRequest struct {
	Content  *string                `json:"content"`
	Metadata *updateMetadataRequest `json:"metadata"`
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Content == nil && req.Metadata == nil {
		writeValidationError(w, "content or metadata must be provided")
		return
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		writeValidationError(w, "content must not be empty")
		return
	}

	existing, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if existing == nil {
		writeNotFound(w, "document not found: "+id)
		return
	}

	var meta *vectordb.Metadata
	if req.Metadata != nil {
		merged := existing.Metadata
		if req.Metadata.Source != nil {
			merged.Source = *req.Metadata.Source
		}
		if req.Metadata.SourceID != nil {
			merged.SourceID = *req.Metadata.SourceID
		}
		if req.Metadata.Version != nil {
			merged.Version = *req.Metadata.Version
		}
		if req.Metadata.IsActive != nil {
			merged.IsActive = *req.Metadata.IsActive
		}
		if req.Metadata.Tags != nil {
			merged.Tags = req.Metadata.Tags
		}
		if req.Metadata.CustomMetadata != nil {
			merged.Extra = req.Metadata.CustomMetadata
		}
		meta = &merged
	}

	ok, err := s.repo.Update(r.Context(), id, req.Content, meta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeNotFound(w, "document not found: "+id)
		return
	}

	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hard := r.URL.Query().Get("hard") == "true"

	var ok bool
	var err error
	if hard {
		ok, err = s.repo.Delete(r.Context(), id)
	} else {
		ok, err = s.repo.SoftDelete(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeNotFound(w, "document not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"id":          id,
		"hard_delete": hard,
	})
}

type queryRequest struct {
	Query          string            `json:"query"`
	TopK           int               `json:"top_k"`
	Filters        map[string]string `json:"filters,omitempty"`
	IncludeSources *bool             `json:"include_sources,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
}

type queryMetadata struct {
	DocumentsRetrieved int   `json:"documents_retrieved"`
	ProcessingTimeMS   int64 `json:"processing_time_ms"`
}

type queryResponse struct {
	Status   string        `json:"status"`
	Answer   string        `json:"answer"`
	Sources  []rag.Source  `json:"sources,omitempty"`
	Cached   bool          `json:"cached"`
	Cost     float64       `json:"cost"`
	Metadata queryMetadata `json:"metadata"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.ragSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "connection", "query pipeline is not configured")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeValidationError(w, "query must not be empty")
		return
	}
	if req.TopK > maxTopK {
		writeValidationError(w, "top_k must not exceed "+strconv.Itoa(maxTopK))
		return
	}

	result, err := s.ragSvc.Query(r.Context(), req.Query, req.TopK, req.Filters, req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := queryResponse{
		Status: "success",
		Answer: result.Answer,
		Cached: result.Cached,
		Cost:   result.Cost,
		Metadata: queryMetadata{
			DocumentsRetrieved: result.DocumentsRetrieved,
			ProcessingTimeMS:   result.ProcessingTime,
		},
	}
	if req.IncludeSources == nil || *req.IncludeSources {
		resp.Sources = result.Sources
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.repo.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := map[string]any{"store": storeStats}
	if s.limiter != nil {
		out["limits"] = s.limiter.Snapshot()
	}
	if s.cache != nil {
		hits, misses, l1Size := s.cache.Stats()
		out["cache"] = map[string]any{
			"hits":    hits,
			"misses":  misses,
			"l1_size": l1Size,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type summarizeAlertsRequest struct {
	TimeWindowMinutes int    `json:"time_window_minutes"`
	SourceIP          string `json:"source_ip"`
	IndexPattern      string `json:"index_pattern"`
	IncludeAIAnalysis *bool  `json:"include_ai_analysis"`
}

func (s *Server) handleSummarizeAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alertSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "connection", "alert summarizer is not configured")
		return
	}

	var req summarizeAlertsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body: "+err.Error())
			return
		}
	}
	if req.TimeWindowMinutes < 0 {
		writeValidationError(w, "time_window_minutes must not be negative")
		return
	}
	includeAI := req.IncludeAIAnalysis == nil || *req.IncludeAIAnalysis

	result, err := s.alertSvc.Summarize(r.Context(), req.TimeWindowMinutes, req.SourceIP, req.IndexPattern, includeAI)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type explainIOCRequest struct {
	CaseID            string `json:"case_id"`
	IOCID             string `json:"ioc_id"`
	UpdateDescription *bool  `json:"update_description"` // default true
}

func (s *Server) handleExplainIOC(w http.ResponseWriter, r *http.Request) {
	if s.enrichSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "connection", "enrichment is not configured")
		return
	}

	var req explainIOCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.CaseID == "" || req.IOCID == "" {
		writeValidationError(w, "case_id and ioc_id are required")
		return
	}

	updateDescription := req.UpdateDescription == nil || *req.UpdateDescription

	result, err := s.enrichSvc.EnrichIOC(r.Context(), req.CaseID, req.IOCID, updateDescription)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
