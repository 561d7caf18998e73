package vectordb

import "context"

// Repository abstracts the vector store. Distances returned by Query are
// cosine distances in [0,2], lower is closer.
type Repository interface {
	// Add stores a single document. When id is empty it is derived from
	// (source_id, version, sha256(content)). Empty content is rejected.
	Add(ctx context.Context, id string, content string, meta Metadata) (string, error)

	// AddBatch stores documents in bulk. len(ids) must be zero or equal to
	// len(contents); len(contents) must equal len(metas).
	AddBatch(ctx context.Context, contents []string, metas []Metadata, ids []string) ([]string, error)

	// Get returns the document with the given ID, or nil when absent.
	Get(ctx context.Context, id string) (*Document, error)

	// Update replaces content and/or metadata of an existing document.
	// created_at is preserved, updated_at refreshed. Returns false when
	// the target does not exist.
	Update(ctx context.Context, id string, content *string, meta *Metadata) (bool, error)

	// Delete removes the document permanently.
	Delete(ctx context.Context, id string) (bool, error)

	// SoftDelete marks the document inactive.
	SoftDelete(ctx context.Context, id string) (bool, error)

	// Query retrieves up to n documents semantically close to text,
	// restricted to metadata matching where.
	Query(ctx context.Context, text string, n int, where map[string]string) (*QueryResult, error)

	// List returns documents matching where with pagination.
	List(ctx context.Context, where map[string]string, limit, offset int) ([]Document, error)

	// Count returns the number of documents matching where.
	Count(ctx context.Context, where map[string]string) (int, error)

	// DeactivateOldVersions soft-deletes every active document of sourceID
	// whose version differs from keepVersion; returns the number affected.
	DeactivateOldVersions(ctx context.Context, sourceID, keepVersion string) (int, error)

	// Stats returns collection-wide counters.
	Stats(ctx context.Context) (Stats, error)
}
