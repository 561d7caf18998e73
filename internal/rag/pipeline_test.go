package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/smartxdr/core/internal/cache"
	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/prompts"
	"github.com/smartxdr/core/internal/vectordb"
)

// fakeRepo serves a canned QueryResult and records the search text.
type fakeRepo struct {
	vectordb.Repository

	result   *vectordb.QueryResult
	err      error
	lastText string
	lastN    int
	lastWhr  map[string]string
}

func (f *fakeRepo) Query(_ context.Context, text string, n int, where map[string]string) (*vectordb.QueryResult, error) {
	f.lastText = text
	f.lastN = n
	f.lastWhr = where
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeProvider struct {
	reply string
	calls int
	last  llm.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	f.last = req
	return &llm.CompletionResponse{
		Content:      f.reply,
		Model:        req.Model,
		InputTokens:  100,
		OutputTokens: 50,
	}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type fakeReranker struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores[:len(docs)], nil
}

func queryResult(docs []string, distances []float64) *vectordb.QueryResult {
	r := &vectordb.QueryResult{}
	for i, d := range docs {
		r.Documents = append(r.Documents, d)
		r.Distances = append(r.Distances, distances[i])
		r.IDs = append(r.IDs, string(rune('a'+i)))
		r.Metadatas = append(r.Metadatas, vectordb.Metadata{Source: "doc.md"})
	}
	return r
}

func retrievalDefaults() config.RetrievalConfig {
	return config.RetrievalConfig{
		StrictThreshold:     1.0,
		FallbackThreshold:   1.4,
		MaxRerankCandidates: 10,
		MaxContextChars:     8000,
		DefaultResults:      5,
	}
}

func testPipeline(repo *fakeRepo, provider *fakeProvider, opts func(*Options)) *Pipeline {
	o := Options{
		Repository: repo,
		Client:     llm.NewClient(provider),
		Prompts:    prompts.NewBuilder(""),
		Retrieval:  retrievalDefaults(),
		ChatModel:  "gpt-4o-mini",
		MaxTokens:  512,
	}
	if opts != nil {
		opts(&o)
	}
	return New(o)
}

func TestQuerySuccess(t *testing.T) {
	repo := &fakeRepo{result: queryResult(
		[]string{"SSH brute force guidance", "Unrelated doc"},
		[]float64{0.4, 0.9},
	)}
	provider := &fakeProvider{reply: "Investigate the auth logs."}
	p := testPipeline(repo, provider, nil)

	res, err := p.Query(context.Background(), "how to handle brute force?", 2, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Investigate the auth logs." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.Cached {
		t.Fatal("first query must not be cached")
	}
	if len(res.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(res.Sources))
	}
	if res.DocumentsRetrieved != 2 {
		t.Fatalf("documents_retrieved = %d, want 2", res.DocumentsRetrieved)
	}
	if repo.lastWhr["is_active"] != "true" {
		t.Fatal("retrieval must filter on is_active=true")
	}
	if repo.lastN != 4 {
		t.Fatalf("retrieval n = %d, want top_k*2 = 4", repo.lastN)
	}

	user := provider.last.Messages[1].Content
	if !strings.Contains(user, "SSH brute force guidance") {
		t.Fatal("context missing from user prompt")
	}
	if !strings.Contains(user, "how to handle brute force?") {
		t.Fatal("query missing from user prompt")
	}
}

func TestQueryCandidateCap(t *testing.T) {
	repo := &fakeRepo{result: queryResult([]string{"d"}, []float64{0.5})}
	p := testPipeline(repo, &fakeProvider{reply: "ok"}, nil)

	if _, err := p.Query(context.Background(), "q", 20, nil, ""); err != nil {
		t.Fatal(err)
	}
	if repo.lastN != 10 {
		t.Fatalf("retrieval n = %d, want cap 10", repo.lastN)
	}
}

func TestQueryFallbackContext(t *testing.T) {
	// Everything beyond the fallback threshold.
	repo := &fakeRepo{result: queryResult([]string{"far away"}, []float64{1.6})}
	provider := &fakeProvider{reply: "general answer"}
	p := testPipeline(repo, provider, nil)

	res, err := p.Query(context.Background(), "obscure question", 3, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sources) != 0 {
		t.Fatal("fallback answer should cite no sources")
	}
	if !strings.Contains(provider.last.Messages[1].Content, "No relevant context found") {
		t.Fatal("fallback context missing from prompt")
	}
}

func TestQueryStrictFilterFallsBackToLoose(t *testing.T) {
	// All documents sit between strict (1.0) and fallback (1.4).
	repo := &fakeRepo{result: queryResult(
		[]string{"doc one", "doc two"},
		[]float64{1.1, 1.2},
	)}
	provider := &fakeProvider{reply: "ok"}
	p := testPipeline(repo, provider, nil)

	res, err := p.Query(context.Background(), "q", 2, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("loose set should survive when strict filter empties: %d sources", len(res.Sources))
	}
}

func TestQueryRateLimited(t *testing.T) {
	limiter := limits.New(1, 0)
	limiter.RecordCall(0)

	p := testPipeline(&fakeRepo{result: queryResult(nil, nil)}, &fakeProvider{}, func(o *Options) {
		o.Limiter = limiter
	})

	_, err := p.Query(context.Background(), "q", 1, nil, "")
	if err == nil {
		t.Fatal("expected rate-limit error")
	}
	if llm.KindOf(err) != llm.KindRateLimit {
		t.Fatalf("error kind = %s, want rate_limit", llm.KindOf(err))
	}
}

func TestQueryCostLimited(t *testing.T) {
	limiter := limits.New(0, 0.000001)
	limiter.RecordCall(0.000001)

	repo := &fakeRepo{result: queryResult([]string{"doc"}, []float64{0.3})}
	p := testPipeline(repo, &fakeProvider{}, func(o *Options) {
		o.Limiter = limiter
	})

	_, err := p.Query(context.Background(), "q", 1, nil, "")
	if llm.KindOf(err) != llm.KindCostLimit {
		t.Fatalf("error = %v, want cost_limit", err)
	}
}

func TestQueryCacheRoundTrip(t *testing.T) {
	repo := &fakeRepo{result: queryResult([]string{"doc"}, []float64{0.3})}
	provider := &fakeProvider{reply: "cached answer"}
	respCache := cache.New(cache.Options{})
	p := testPipeline(repo, provider, func(o *Options) {
		o.Cache = respCache
	})

	ctx := context.Background()
	first, err := p.Query(ctx, "same question", 1, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Fatal("first call should miss")
	}

	second, err := p.Query(ctx, "same question", 1, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Fatal("second call should hit the cache")
	}
	if second.Answer != "cached answer" {
		t.Fatalf("cached answer = %q", second.Answer)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}
}

func TestQuerySessionNotCached(t *testing.T) {
	repo := &fakeRepo{result: queryResult([]string{"doc"}, []float64{0.3})}
	provider := &fakeProvider{reply: "answer"}
	p := testPipeline(repo, provider, func(o *Options) {
		o.Cache = cache.New(cache.Options{})
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := p.Query(ctx, "session question", 1, nil, "session-1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Cached {
			t.Fatal("session-scoped answers must not be served from cache")
		}
	}
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
}

func TestRerankOrdersByScore(t *testing.T) {
	repo := &fakeRepo{result: queryResult(
		[]string{"alpha", "beta", "gamma", "delta"},
		[]float64{0.1, 0.2, 0.3, 0.4},
	)}
	rr := &fakeReranker{scores: []float64{0.1, 0.9, 0.5, 0.3}}
	p := testPipeline(repo, &fakeProvider{reply: "ok"}, func(o *Options) {
		o.Reranker = rr
		o.Retrieval.RerankEnabled = true
	})

	res, err := p.Query(context.Background(), "q", 4, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if rr.calls != 1 {
		t.Fatalf("reranker calls = %d, want 1", rr.calls)
	}
	if res.Sources[0].Source != "doc.md" {
		t.Fatal("sources missing")
	}
	// beta has the top score and must come first.
	if res.Sources[0].ID != "b" {
		t.Fatalf("top source = %s, want b", res.Sources[0].ID)
	}
}

func TestRerankSkippedForSmallSets(t *testing.T) {
	repo := &fakeRepo{result: queryResult(
		[]string{"one", "two", "three"},
		[]float64{0.1, 0.2, 0.3},
	)}
	rr := &fakeReranker{scores: []float64{1, 1, 1}}
	p := testPipeline(repo, &fakeProvider{reply: "ok"}, func(o *Options) {
		o.Reranker = rr
		o.Retrieval.RerankEnabled = true
	})

	if _, err := p.Query(context.Background(), "q", 3, nil, ""); err != nil {
		t.Fatal(err)
	}
	if rr.calls != 0 {
		t.Fatal("reranker must be skipped when 3 or fewer candidates")
	}
}

func TestRerankFailureDegradesToDistanceOrder(t *testing.T) {
	repo := &fakeRepo{result: queryResult(
		[]string{"alpha", "beta", "gamma", "delta"},
		[]float64{0.1, 0.2, 0.3, 0.4},
	)}
	rr := &fakeReranker{err: context.DeadlineExceeded}
	p := testPipeline(repo, &fakeProvider{reply: "ok"}, func(o *Options) {
		o.Reranker = rr
		o.Retrieval.RerankEnabled = true
	})

	res, err := p.Query(context.Background(), "q", 4, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sources[0].ID != "a" {
		t.Fatalf("top source = %s, want distance order", res.Sources[0].ID)
	}
}

type fakeMemory struct {
	history  string
	entities []string
	turns    []string // "role: content"
}

func (f *fakeMemory) RecentContext(_ context.Context, _ string) (string, []string, error) {
	return f.history, f.entities, nil
}

func (f *fakeMemory) AddTurn(_ context.Context, _, role, content string) error {
	f.turns = append(f.turns, role+": "+content)
	return nil
}

func TestSessionEntitiesEnhanceSearch(t *testing.T) {
	repo := &fakeRepo{result: queryResult([]string{"doc"}, []float64{0.3})}
	p := testPipeline(repo, &fakeProvider{reply: "ok"}, func(o *Options) {
		o.Memory = &fakeMemory{history: "we discussed fw-01", entities: []string{"fw-01", "10.0.0.1"}}
	})

	if _, err := p.Query(context.Background(), "what about its rules?", 1, nil, "s1"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(repo.lastText, "fw-01 10.0.0.1 ") {
		t.Fatalf("search text = %q, want entity prefix", repo.lastText)
	}
}

func TestSessionTurnsRecorded(t *testing.T) {
	repo := &fakeRepo{result: queryResult([]string{"doc"}, []float64{0.3})}
	mem := &fakeMemory{}
	p := testPipeline(repo, &fakeProvider{reply: "the answer"}, func(o *Options) {
		o.Memory = mem
	})

	if _, err := p.Query(context.Background(), "q1", 1, nil, "s1"); err != nil {
		t.Fatal(err)
	}
	want := []string{"user: q1", "assistant: the answer"}
	if len(mem.turns) != 2 || mem.turns[0] != want[0] || mem.turns[1] != want[1] {
		t.Fatalf("turns = %v, want %v", mem.turns, want)
	}

	// Stateless queries do not touch memory.
	mem.turns = nil
	if _, err := p.Query(context.Background(), "q2", 1, nil, ""); err != nil {
		t.Fatal(err)
	}
	if len(mem.turns) != 0 {
		t.Fatalf("turns = %v, want none for stateless query", mem.turns)
	}
}

func TestBuildContextFromQuery(t *testing.T) {
	repo := &fakeRepo{result: queryResult(
		[]string{"close doc", "far doc"},
		[]float64{0.2, 0.8},
	)}
	p := testPipeline(repo, &fakeProvider{}, nil)

	ctxText, srcs, err := p.BuildContextFromQuery(context.Background(), "q", 2, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ctxText, "[Context Quality: HIGH CONFIDENCE]") {
		t.Fatalf("context = %q, want HIGH CONFIDENCE marker", ctxText)
	}
	if !strings.Contains(ctxText, "[Document 1]\nclose doc") {
		t.Fatal("documents missing from context")
	}
	if len(srcs) != 2 {
		t.Fatalf("sources = %d, want 2", len(srcs))
	}
}
