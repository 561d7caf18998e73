package vectordb

import (
	"context"
	"fmt"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/smartxdr/core/internal/embeddings"
)

const collectionName = "security-docs"

// ChromemRepository implements Repository using chromem-go for similarity
// search plus a JSON-backed registry for exact lookups and listings.
type ChromemRepository struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
	registry   *registry
	dataDir    string
	now        func() time.Time
}

// NewChromemRepository creates a repository. When dataDir is non-empty the
// chromem store persists under dataDir/chromem and the document registry
// under dataDir/documents.json; otherwise everything is in-memory.
func NewChromemRepository(embedder embeddings.Embedder, dataDir string) (*ChromemRepository, error) {
	ef := embeddings.ToChromemFunc(embedder)

	var db *chromem.DB
	var err error
	if dataDir != "" {
		db, err = chromem.NewPersistentDB(dataDir+"/chromem", true)
		if err != nil {
			return nil, storeErr("open", err)
		}
	} else {
		db = chromem.NewDB()
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, storeErr("create collection", err)
	}

	reg := newRegistry()
	if dataDir != "" {
		if err := reg.load(dataDir); err != nil {
			return nil, storeErr("load registry", err)
		}
	}

	return &ChromemRepository{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
		registry:   reg,
		dataDir:    dataDir,
		now:        time.Now,
	}, nil
}

func (s *ChromemRepository) Add(ctx context.Context, id, content string, meta Metadata) (string, error) {
	ids, err := s.AddBatch(ctx, []string{content}, []Metadata{meta}, idSlice(id))
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func idSlice(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func (s *ChromemRepository) AddBatch(ctx context.Context, contents []string, metas []Metadata, ids []string) ([]string, error) {
	if len(contents) != len(metas) {
		return nil, fmt.Errorf("contents/metadatas size mismatch: %d vs %d", len(contents), len(metas))
	}
	if len(ids) != 0 && len(ids) != len(contents) {
		return nil, fmt.Errorf("ids size mismatch: %d vs %d", len(ids), len(contents))
	}

	now := s.now().UTC()
	docs := make([]Document, len(contents))
	chromDocs := make([]chromem.Document, len(contents))

	for i, content := range contents {
		if content == "" {
			return nil, fmt.Errorf("document %d has empty content", i)
		}
		meta := metas[i]
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = now
		}
		meta.UpdatedAt = now

		id := ""
		if len(ids) != 0 {
			id = ids[i]
		}
		if id == "" {
			id = DeriveID(meta.SourceID, meta.Version, content)
		}

		docs[i] = Document{ID: id, Content: content, Metadata: meta}
		chromDocs[i] = chromem.Document{
			ID:       id,
			Content:  content,
			Metadata: meta.flatten(),
		}
	}

	if err := s.collection.AddDocuments(ctx, chromDocs, 1); err != nil {
		return nil, storeErr("add", err)
	}

	out := make([]string, len(docs))
	for i, doc := range docs {
		s.registry.put(doc)
		out[i] = doc.ID
	}
	if err := s.persistRegistry(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ChromemRepository) Get(_ context.Context, id string) (*Document, error) {
	doc, ok := s.registry.get(id)
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *ChromemRepository) Update(ctx context.Context, id string, content *string, meta *Metadata) (bool, error) {
	existing, ok := s.registry.get(id)
	if !ok {
		return false, nil
	}

	updated := existing
	if content != nil {
		if *content == "" {
			return false, fmt.Errorf("update with empty content")
		}
		updated.Content = *content
	}
	if meta != nil {
		created := existing.Metadata.CreatedAt
		updated.Metadata = *meta
		updated.Metadata.CreatedAt = created
	}
	updated.Metadata.UpdatedAt = s.now().UTC()

	// chromem has no in-place update; re-adding under the same ID replaces
	// the document and refreshes its embedding.
	chromDoc := chromem.Document{
		ID:       id,
		Content:  updated.Content,
		Metadata: updated.Metadata.flatten(),
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{chromDoc}, 1); err != nil {
		return false, storeErr("update", err)
	}

	s.registry.put(updated)
	if err := s.persistRegistry(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ChromemRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.registry.get(id); !ok {
		return false, nil
	}
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return false, storeErr("delete", err)
	}
	s.registry.remove(id)
	if err := s.persistRegistry(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ChromemRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	existing, ok := s.registry.get(id)
	if !ok {
		return false, nil
	}
	meta := existing.Metadata
	meta.IsActive = false
	return s.Update(ctx, id, nil, &meta)
}

func (s *ChromemRepository) Query(ctx context.Context, text string, n int, where map[string]string) (*QueryResult, error) {
	if n <= 0 {
		n = 10
	}

	// chromem rejects nResults larger than the matching document count.
	if max := s.registry.count(where); n > max {
		n = max
	}
	if n == 0 {
		return &QueryResult{}, nil
	}

	results, err := s.collection.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, storeErr("query", err)
	}

	out := &QueryResult{
		Documents: make([]string, len(results)),
		Metadatas: make([]Metadata, len(results)),
		Distances: make([]float64, len(results)),
		IDs:       make([]string, len(results)),
	}
	for i, r := range results {
		out.Documents[i] = r.Content
		out.Distances[i] = 1 - float64(r.Similarity)
		out.IDs[i] = r.ID
		if doc, ok := s.registry.get(r.ID); ok {
			out.Metadatas[i] = doc.Metadata
		}
	}
	return out, nil
}

func (s *ChromemRepository) List(_ context.Context, where map[string]string, limit, offset int) ([]Document, error) {
	return s.registry.list(where, limit, offset), nil
}

func (s *ChromemRepository) Count(_ context.Context, where map[string]string) (int, error) {
	return s.registry.count(where), nil
}

func (s *ChromemRepository) DeactivateOldVersions(ctx context.Context, sourceID, keepVersion string) (int, error) {
	candidates := s.registry.list(map[string]string{
		"source_id": sourceID,
		"is_active": "true",
	}, 0, 0)

	affected := 0
	for _, doc := range candidates {
		if doc.Metadata.Version == keepVersion {
			continue
		}
		ok, err := s.SoftDelete(ctx, doc.ID)
		if err != nil {
			return affected, err
		}
		if ok {
			affected++
		}
	}
	return affected, nil
}

func (s *ChromemRepository) Stats(_ context.Context) (Stats, error) {
	return s.registry.stats(), nil
}

func (s *ChromemRepository) persistRegistry() error {
	if s.dataDir == "" {
		return nil
	}
	if err := s.registry.save(s.dataDir); err != nil {
		return storeErr("persist registry", err)
	}
	return nil
}
