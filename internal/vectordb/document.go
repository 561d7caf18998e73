package vectordb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata holds the recognized metadata fields of a stored document.
// Unrecognized keys are carried in Extra.
type Metadata struct {
	Source    string            `json:"source"`
	SourceID  string            `json:"source_id"`
	Version   string            `json:"version"`
	IsActive  bool              `json:"is_active"`
	Tags      []string          `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	FileHash  string            `json:"file_hash,omitempty"`
	Chunk     int               `json:"chunk"`
	Total     int               `json:"total"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Document represents a chunk of content stored in the vector store.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// QueryResult holds parallel arrays of query matches. distances[i] is the
// cosine distance of documents[i] in [0,2], lower is closer.
type QueryResult struct {
	Documents []string
	Metadatas []Metadata
	Distances []float64
	IDs       []string
}

// Len returns the number of matches.
func (r *QueryResult) Len() int { return len(r.IDs) }

// Stats aggregates collection-wide counters.
type Stats struct {
	Total               int            `json:"total"`
	Active              int            `json:"active"`
	UniqueSources       int            `json:"unique_sources"`
	UniqueSourceIDs     int            `json:"unique_source_ids"`
	TagsDistribution    map[string]int `json:"tags_distribution"`
	VersionDistribution map[string]int `json:"version_distribution"`
}

// StoreError wraps a vector-store backend failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// DeriveID computes the deterministic document ID from the identity triple.
// The same (source_id, version, content) always yields the same ID.
func DeriveID(sourceID, version, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	seed := sourceID + "|" + version + "|" + hex.EncodeToString(contentHash[:])
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:32]
}

// flatten converts Metadata to the flat string map chromem stores.
func (m Metadata) flatten() map[string]string {
	out := map[string]string{
		"source":     m.Source,
		"source_id":  m.SourceID,
		"version":    m.Version,
		"is_active":  strconv.FormatBool(m.IsActive),
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if len(m.Tags) > 0 {
		out["tags"] = strings.Join(m.Tags, ",")
	}
	if m.FileHash != "" {
		out["file_hash"] = m.FileHash
	}
	if m.Total > 0 {
		out["chunk"] = strconv.Itoa(m.Chunk)
		out["total"] = strconv.Itoa(m.Total)
	}
	for k, v := range m.Extra {
		if _, reserved := out[k]; !reserved {
			out[k] = v
		}
	}
	return out
}

// matches reports whether the metadata satisfies every clause in where.
// Recognized keys compare against the typed fields; other keys compare
// against Extra.
func (m Metadata) matches(where map[string]string) bool {
	for k, v := range where {
		switch k {
		case "source":
			if m.Source != v {
				return false
			}
		case "source_id":
			if m.SourceID != v {
				return false
			}
		case "version":
			if m.Version != v {
				return false
			}
		case "is_active":
			if strconv.FormatBool(m.IsActive) != v {
				return false
			}
		case "file_hash":
			if m.FileHash != v {
				return false
			}
		case "tag":
			found := false
			for _, t := range m.Tags {
				if t == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if m.Extra[k] != v {
				return false
			}
		}
	}
	return true
}
