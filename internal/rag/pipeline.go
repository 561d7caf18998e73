// Package rag composes retrieval, ranking, diversity selection, context
// assembly and LLM invocation into the query pipeline.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/smartxdr/core/internal/cache"
	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/prompts"
	"github.com/smartxdr/core/internal/vectordb"
)

// ConversationMemory supplies and records session history. Implementations
// live outside this package; a nil memory means stateless queries.
type ConversationMemory interface {
	// RecentContext returns a formatted history string (may be empty)
	// and infrastructure entities mentioned in it (system names, IPs,
	// device identifiers).
	RecentContext(ctx context.Context, sessionID string) (history string, entities []string, err error)
	// AddTurn appends one turn to a session. Role is "user" or
	// "assistant".
	AddTurn(ctx context.Context, sessionID, role, content string) error
}

// candidate is one retrieved document moving through the pipeline.
type candidate struct {
	ID       string
	Text     string
	Source   string
	Distance float64
	Score    float64
}

// Source describes a document that contributed to an answer.
type Source struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

// Result is the outcome of a successful query.
type Result struct {
	Answer             string   `json:"answer"`
	Cached             bool     `json:"cached"`
	Sources            []Source `json:"sources,omitempty"`
	Cost               float64  `json:"cost"`
	DocumentsRetrieved int      `json:"documents_retrieved"`
	ProcessingTime     int64    `json:"processing_time_ms"`
}

// Pipeline wires the query path together. All collaborators are passed
// in by the boot path; the pipeline itself is stateless per request.
type Pipeline struct {
	repo     vectordb.Repository
	client   *llm.Client
	cache    *cache.ResponseCache
	limiter  *limits.Limiter
	prompts  *prompts.Builder
	reranker Reranker
	memory   ConversationMemory

	retrieval config.RetrievalConfig
	chatModel string
	maxTokens int

	logger *slog.Logger
	now    func() time.Time
}

// Options bundles the pipeline's collaborators.
type Options struct {
	Repository vectordb.Repository
	Client     *llm.Client
	Cache      *cache.ResponseCache // nil disables caching
	Limiter    *limits.Limiter
	Prompts    *prompts.Builder
	Reranker   Reranker // nil disables cross-encoder re-ranking
	Memory     ConversationMemory
	Retrieval  config.RetrievalConfig
	ChatModel  string
	MaxTokens  int
	Logger     *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	return &Pipeline{
		repo:      opts.Repository,
		client:    opts.Client,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		prompts:   opts.Prompts,
		reranker:  opts.Reranker,
		memory:    opts.Memory,
		retrieval: opts.Retrieval,
		chatModel: opts.ChatModel,
		maxTokens: opts.MaxTokens,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Query answers a question over the knowledge base.
func (p *Pipeline) Query(ctx context.Context, text string, topK int, filters map[string]string, sessionID string) (*Result, error) {
	start := p.now()

	if topK <= 0 {
		topK = p.retrieval.DefaultResults
	}

	if p.limiter != nil && !p.limiter.CheckRateLimit() {
		return nil, &llm.Error{Kind: llm.KindRateLimit, Message: "rate limit exceeded, try again in a minute"}
	}

	history, entities := p.conversationContext(ctx, sessionID)
	contextHash := hashString(history)
	cacheKey := cache.Key(text, contextHash)

	if p.cache != nil {
		if answer, ok := p.cache.Get(ctx, cacheKey, text); ok {
			return &Result{
				Answer:         answer,
				Cached:         true,
				ProcessingTime: p.now().Sub(start).Milliseconds(),
			}, nil
		}
	}

	selected, retrieved, err := p.retrieve(ctx, text, entities, topK, filters, p.retrieval.RerankEnabled)
	if err != nil {
		return nil, err
	}

	contextText := assembleContext(selected, p.retrieval.MaxContextChars)
	if history != "" {
		contextText = "Previous conversation:\n" + history + "\n" + contextText
	}

	system, user, err := p.prompts.Build(prompts.RAG, map[string]string{
		"context": contextText,
		"query":   text,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	// Session-scoped answers depend on conversation state and are not
	// reusable; everything else is cached on success only.
	if p.cache != nil && sessionID == "" {
		p.cache.Set(ctx, cacheKey, resp.Content, text)
	}

	p.recordTurns(ctx, sessionID, text, resp.Content)

	return &Result{
		Answer:             resp.Content,
		Cached:             false,
		Sources:            sources(selected),
		Cost:               resp.Cost,
		DocumentsRetrieved: retrieved,
		ProcessingTime:     p.now().Sub(start).Milliseconds(),
	}, nil
}

// BuildContextFromQuery runs retrieval through context assembly without
// the LLM call, for callers that supply their own prompt.
func (p *Pipeline) BuildContextFromQuery(ctx context.Context, text string, topK int, filters map[string]string, useReranking bool) (string, []Source, error) {
	if topK <= 0 {
		topK = p.retrieval.DefaultResults
	}
	selected, _, err := p.retrieve(ctx, text, nil, topK, filters, useReranking)
	if err != nil {
		return "", nil, err
	}
	return assembleContext(selected, p.retrieval.MaxContextChars), sources(selected), nil
}

// retrieve runs vector search, threshold filtering, re-ranking and
// diversity selection. It returns the selected candidates and the raw
// retrieval count.
func (p *Pipeline) retrieve(ctx context.Context, text string, entities []string, topK int, filters map[string]string, useReranking bool) ([]candidate, int, error) {
	searchText := text
	if len(entities) > 0 {
		searchText = strings.Join(entities, " ") + " " + text
	}

	n := topK * 2
	if max := p.retrieval.MaxRerankCandidates; max > 0 && n > max {
		n = max
	}

	where := map[string]string{"is_active": "true"}
	for k, v := range filters {
		where[k] = v
	}

	res, err := p.repo.Query(ctx, searchText, n, where)
	if err != nil {
		return nil, 0, err
	}

	// Fallback threshold: drop anything too far to be useful at all.
	loose := make([]candidate, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		if res.Distances[i] >= p.retrieval.FallbackThreshold {
			continue
		}
		loose = append(loose, candidate{
			ID:       res.IDs[i],
			Text:     res.Documents[i],
			Source:   res.Metadatas[i].Source,
			Distance: res.Distances[i],
		})
	}
	if len(loose) == 0 {
		return nil, res.Len(), nil
	}

	// Strict filter, falling back to the loose set when it empties.
	strict := make([]candidate, 0, len(loose))
	for _, c := range loose {
		if c.Distance < p.retrieval.StrictThreshold {
			strict = append(strict, c)
		}
	}
	docs := strict
	if len(docs) == 0 {
		docs = loose
	}

	ranked := p.rank(ctx, text, docs, useReranking)
	return selectDiverse(ranked, topK), res.Len(), nil
}

// rank orders candidates best-first: by cross-encoder score when the
// reranker applies, by ascending distance otherwise. The distance order
// from retrieval is already ascending, so the fallback keeps it.
func (p *Pipeline) rank(ctx context.Context, query string, docs []candidate, useReranking bool) []candidate {
	if !useReranking || p.reranker == nil || len(docs) <= 3 {
		return docs
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = truncate(d.Text, 512)
	}
	scores, err := p.reranker.Rerank(ctx, query, texts)
	if err != nil {
		p.logger.Debug("reranker unavailable, keeping distance order", "error", err)
		return docs
	}

	for i := range docs {
		docs[i].Score = scores[i]
	}
	// Stable insertion sort descending by score, preserving retrieval
	// order on ties.
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && docs[j].Score > docs[j-1].Score; j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
	return docs
}

// complete routes an LLM call through the cost guard and records spend.
func (p *Pipeline) complete(ctx context.Context, system, user string) (*llm.CompletionResponse, error) {
	if p.limiter != nil {
		est := llm.EstimateCost(p.chatModel, llm.EstimateTokens(system+user), p.maxTokens)
		if !p.limiter.CheckDailyCost(est) {
			return nil, &llm.Error{Kind: llm.KindCostLimit, Message: "daily cost limit reached"}
		}
	}

	resp, err := p.client.Chat(ctx, system, user, p.chatModel, p.maxTokens, 0.2)
	if err != nil {
		return nil, err
	}
	if p.limiter != nil {
		p.limiter.RecordCall(resp.Cost)
	}
	return resp, nil
}

func (p *Pipeline) conversationContext(ctx context.Context, sessionID string) (string, []string) {
	if sessionID == "" || p.memory == nil {
		return "", nil
	}
	history, entities, err := p.memory.RecentContext(ctx, sessionID)
	if err != nil {
		p.logger.Debug("conversation memory unavailable", "session_id", sessionID, "error", err)
		return "", nil
	}
	return history, entities
}

// recordTurns persists the exchange best-effort; a memory failure never
// fails the query.
func (p *Pipeline) recordTurns(ctx context.Context, sessionID, question, answer string) {
	if sessionID == "" || p.memory == nil {
		return
	}
	if err := p.memory.AddTurn(ctx, sessionID, "user", question); err != nil {
		p.logger.Debug("recording user turn failed", "session_id", sessionID, "error", err)
		return
	}
	if err := p.memory.AddTurn(ctx, sessionID, "assistant", answer); err != nil {
		p.logger.Debug("recording assistant turn failed", "session_id", sessionID, "error", err)
	}
}

func sources(docs []candidate) []Source {
	out := make([]Source, len(docs))
	for i, d := range docs {
		out[i] = Source{ID: d.ID, Source: d.Source, Distance: d.Distance}
	}
	return out
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
