// Package syncer reconciles a documents directory with the vector store.
// It runs a detect-act-clean loop keyed on content hashes: new files are
// chunked and upserted, changed files are re-chunked before their old
// chunks are removed, and files gone from disk are purged.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartxdr/core/internal/chunker"
	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/vectordb"
	"github.com/smartxdr/core/internal/walker"
)

// Result tracks what a sync run did.
type Result struct {
	Added    int
	Updated  int
	Deleted  int
	Skipped  int
	Errors   int
	Duration time.Duration
}

// ProgressFunc is invoked after each file is processed.
type ProgressFunc func(done, total int)

// Engine performs directory-to-store reconciliation.
type Engine struct {
	repo       vectordb.Repository
	cfg        config.SyncConfig
	embedCap   int // embedding provider per-request cap
	logger     *slog.Logger
	onProgress ProgressFunc
}

// New creates a sync engine. embedCap is the embedding provider's
// per-request batch limit; upsert batches never exceed it.
func New(repo vectordb.Repository, cfg config.SyncConfig, embedCap int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, cfg: cfg, embedCap: embedCap, logger: logger}
}

// SetProgressFunc sets the progress callback.
func (e *Engine) SetProgressFunc(fn ProgressFunc) { e.onProgress = fn }

// plan is the outcome of the detect phase.
type plan struct {
	newFiles     []walker.FileInfo
	updatedFiles []walker.FileInfo
	deletedSrcs  []string
	unchanged    int
}

// PlanSummary describes what a sync run would do, without touching the store.
type PlanSummary struct {
	New       []string
	Updated   []string
	Deleted   []string
	Unchanged int
}

// Plan computes the reconciliation plan against the current index state
// without applying it.
func (e *Engine) Plan(ctx context.Context, force bool) (*PlanSummary, error) {
	files, err := e.scan()
	if err != nil {
		return nil, err
	}
	p, err := e.detect(ctx, files, force)
	if err != nil {
		return nil, err
	}

	out := &PlanSummary{Unchanged: p.unchanged, Deleted: p.deletedSrcs}
	for _, f := range p.newFiles {
		out.New = append(out.New, f.RelPath)
	}
	for _, f := range p.updatedFiles {
		out.Updated = append(out.Updated, f.RelPath)
	}
	return out, nil
}

func (e *Engine) scan() ([]walker.FileInfo, error) {
	files, err := walker.Walk(walker.Config{
		RootDir:     e.cfg.DocsDir,
		SkipDirs:    e.cfg.SkipDirs,
		SkipFiles:   e.cfg.SkipFiles,
		Extensions:  e.cfg.Extensions,
		MaxFileSize: e.cfg.MaxFileSize,
	})
	if err != nil {
		return nil, fmt.Errorf("scan docs dir: %w", err)
	}
	return files, nil
}

// Run executes a full sync. With force, every indexed on-disk file is
// re-chunked regardless of its recorded hash, rebuilding the collection
// in place.
func (e *Engine) Run(ctx context.Context, force bool) (*Result, error) {
	start := time.Now()
	result := &Result{}
	log := e.logger.With("sync_run", uuid.NewString()[:8])

	files, err := e.scan()
	if err != nil {
		return nil, err
	}

	p, err := e.detect(ctx, files, force)
	if err != nil {
		return nil, err
	}
	result.Skipped = p.unchanged

	total := len(p.newFiles) + len(p.updatedFiles) + len(p.deletedSrcs)
	done := 0
	progress := func() {
		done++
		if e.onProgress != nil {
			e.onProgress(done, total)
		}
	}

	// Fixed order: new, updated, deleted. Within updated the new chunks
	// are built before old ones are removed, so a failed re-chunk never
	// loses the previous index.
	for _, f := range p.newFiles {
		if err := e.indexFile(ctx, f); err != nil {
			log.Error("sync: index new file", "file", f.RelPath, "error", err)
			result.Errors++
		} else {
			result.Added++
		}
		progress()
	}

	for _, f := range p.updatedFiles {
		if err := e.reindexFile(ctx, f); err != nil {
			log.Error("sync: reindex file", "file", f.RelPath, "error", err)
			result.Errors++
		} else {
			result.Updated++
		}
		progress()
	}

	for _, src := range p.deletedSrcs {
		if err := e.removeSource(ctx, src); err != nil {
			log.Error("sync: remove source", "source", src, "error", err)
			result.Errors++
		} else {
			result.Deleted++
		}
		progress()
	}

	result.Duration = time.Since(start)
	log.Info("sync complete",
		"added", result.Added, "updated", result.Updated,
		"deleted", result.Deleted, "skipped", result.Skipped,
		"errors", result.Errors, "duration", result.Duration)
	return result, nil
}

// detect classifies on-disk files against the indexed state.
func (e *Engine) detect(ctx context.Context, files []walker.FileInfo, force bool) (*plan, error) {
	indexed, err := e.indexedSources(ctx)
	if err != nil {
		return nil, err
	}

	p := &plan{}
	onDisk := make(map[string]bool, len(files))

	for _, f := range files {
		onDisk[f.RelPath] = true
		hash, known := indexed[f.RelPath]
		switch {
		case !known:
			p.newFiles = append(p.newFiles, f)
		case force:
			// Force re-chunks indexed files through the build-before-delete
			// path, so the old chunks survive until the new ones exist.
			p.updatedFiles = append(p.updatedFiles, f)
		case hash == "":
			// Indexed before file hashes were recorded; re-chunk it.
			p.updatedFiles = append(p.updatedFiles, f)
		case hash != f.FileHash:
			p.updatedFiles = append(p.updatedFiles, f)
		default:
			p.unchanged++
		}
	}

	// Sources still on disk are never deleted outright, force or not;
	// deleting them after their re-add would empty the collection.
	for src := range indexed {
		if !onDisk[src] {
			p.deletedSrcs = append(p.deletedSrcs, src)
		}
	}
	return p, nil
}

// indexedSources lists indexed files by source, mapping to the file hash
// recorded at index time.
func (e *Engine) indexedSources(ctx context.Context) (map[string]string, error) {
	docs, err := e.repo.List(ctx, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list indexed documents: %w", err)
	}
	out := make(map[string]string)
	for _, doc := range docs {
		src := doc.Metadata.Source
		if src == "" {
			continue
		}
		if _, seen := out[src]; !seen || doc.Metadata.FileHash != "" {
			out[src] = doc.Metadata.FileHash
		}
	}
	return out, nil
}

// indexFile chunks and upserts a file that has no indexed chunks yet.
func (e *Engine) indexFile(ctx context.Context, f walker.FileInfo) error {
	chunks, err := e.chunkFile(f)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return e.upsertChunks(ctx, f, chunks)
}

// reindexFile handles an updated file with the build-before-delete order.
func (e *Engine) reindexFile(ctx context.Context, f walker.FileInfo) error {
	chunks, err := e.chunkFile(f)
	if err != nil {
		return err
	}
	// Chunking succeeded; now it is safe to drop the stale chunks.
	if err := e.removeSource(ctx, f.RelPath); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return e.upsertChunks(ctx, f, chunks)
}

// removeSource hard-deletes every chunk whose source matches.
func (e *Engine) removeSource(ctx context.Context, source string) error {
	docs, err := e.repo.List(ctx, map[string]string{"source": source}, 0, 0)
	if err != nil {
		return fmt.Errorf("list chunks of %s: %w", source, err)
	}
	for _, doc := range docs {
		if _, err := e.repo.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete chunk %s: %w", doc.ID, err)
		}
	}
	return nil
}

// upsertChunks writes chunks in batches capped by both the configured
// batch size and the embedding provider's per-request limit.
func (e *Engine) upsertChunks(ctx context.Context, f walker.FileInfo, chunks []string) error {
	version := shortHash(f.FileHash)

	metas := make([]vectordb.Metadata, len(chunks))
	for i := range chunks {
		metas[i] = vectordb.Metadata{
			Source:   f.RelPath,
			SourceID: f.RelPath,
			Version:  version,
			IsActive: true,
			FileHash: f.FileHash,
			Chunk:    i,
			Total:    len(chunks),
			Tags:     []string{strings.TrimPrefix(filepath.Ext(f.RelPath), ".")},
		}
	}

	batch := e.cfg.BatchSize
	if e.embedCap > 0 && e.embedCap < batch {
		batch = e.embedCap
	}
	if batch <= 0 {
		batch = len(chunks)
	}

	for i := 0; i < len(chunks); i += batch {
		end := i + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		if _, err := e.repo.AddBatch(ctx, chunks[i:end], metas[i:end], nil); err != nil {
			return fmt.Errorf("upsert chunks of %s: %w", f.RelPath, err)
		}
	}
	return nil
}

// chunkFile dispatches to the splitter matching the file extension.
func (e *Engine) chunkFile(f walker.FileInfo) ([]string, error) {
	opts := chunker.Options{MaxSize: e.cfg.MaxChunkSize, MinSize: e.cfg.MinChunkSize}
	name := filepath.Base(f.RelPath)

	switch strings.ToLower(filepath.Ext(f.RelPath)) {
	case ".pdf":
		return chunker.PDFToChunks(f.Path, name, opts), nil
	case ".md", ".markdown", ".rst":
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.RelPath, err)
		}
		return chunker.MarkdownToChunks(string(data), name, opts), nil
	case ".json":
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.RelPath, err)
		}
		return chunker.JSONToChunks(data, name, opts), nil
	default:
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.RelPath, err)
		}
		return chunker.TextToChunks(string(data), name, opts), nil
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
