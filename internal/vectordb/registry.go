package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const registryFile = "documents.json"

// registry is the metadata sidecar of the vector store. chromem answers
// similarity queries; the registry answers exact lookups, listings and
// counters without touching the embedding provider.
type registry struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func newRegistry() *registry {
	return &registry{docs: make(map[string]Document)}
}

func (r *registry) put(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

func (r *registry) get(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return false
	}
	delete(r.docs, id)
	return true
}

// list returns documents matching where, ordered by ID for determinism.
// limit <= 0 means no limit.
func (r *registry) list(where map[string]string, limit, offset int) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.docs))
	for id, doc := range r.docs {
		if doc.Metadata.matches(where) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.docs[id])
	}
	return out
}

func (r *registry) count(where map[string]string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(where) == 0 {
		return len(r.docs)
	}
	n := 0
	for _, doc := range r.docs {
		if doc.Metadata.matches(where) {
			n++
		}
	}
	return n
}

func (r *registry) stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:               len(r.docs),
		TagsDistribution:    make(map[string]int),
		VersionDistribution: make(map[string]int),
	}
	sources := make(map[string]struct{})
	sourceIDs := make(map[string]struct{})
	for _, doc := range r.docs {
		m := doc.Metadata
		if m.IsActive {
			s.Active++
		}
		if m.Source != "" {
			sources[m.Source] = struct{}{}
		}
		if m.SourceID != "" {
			sourceIDs[m.SourceID] = struct{}{}
		}
		for _, tag := range m.Tags {
			s.TagsDistribution[tag]++
		}
		if m.Version != "" {
			s.VersionDistribution[m.Version]++
		}
	}
	s.UniqueSources = len(sources)
	s.UniqueSourceIDs = len(sourceIDs)
	return s
}

// save writes the registry to dir/documents.json atomically enough for a
// single-process store (write then rename).
func (r *registry) save(dir string) error {
	r.mu.RLock()
	docs := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := filepath.Join(dir, registryFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, registryFile))
}

// load replaces the registry content from dir/documents.json. A missing
// file leaves the registry empty.
func (r *registry) load(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, registryFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("unmarshal registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]Document, len(docs))
	for _, doc := range docs {
		r.docs[doc.ID] = doc
	}
	return nil
}
