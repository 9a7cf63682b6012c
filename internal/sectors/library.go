package sectors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/uploads"
	"github.com/aktraiser/X-me/internal/vectorstore"
	"go.uber.org/zap"
)

// SectorScore is the heuristic score of sector documentation
const SectorScore = 0.9

// Payload keys of sector documentation points
const (
	keyText      = "text"
	keyTitle     = "title"
	keySource    = "source"
	keySector    = "sector"
	keySubsector = "subsector"
	keyPage      = "page"
	keyChunk     = "chunk_index"
)

// LibraryConfig configures the sector documentation library
type LibraryConfig struct {
	DocumentationDir string
	ChunkSize        int
	ChunkOverlap     int
	Dimension        int
}

// Library indexes sector documentation and searches it by sector
type Library struct {
	cfg     LibraryConfig
	catalog *Catalog
	store   vectorstore.Store
	llm     llm.Client
	logger  *zap.Logger
}

// NewLibrary creates a new sector documentation library
func NewLibrary(cfg LibraryConfig, catalog *Catalog, store vectorstore.Store, client llm.Client, logger *zap.Logger) *Library {
	return &Library{cfg: cfg, catalog: catalog, store: store, llm: client, logger: logger}
}

// Catalog returns the sector catalog
func (l *Library) Catalog() *Catalog { return l.catalog }

// Ingest indexes every supported file under the documentation directory of
// the sector (or of the subsector, or of path relative to the documentation
// directory). Previously indexed chunks of the same files are replaced.
func (l *Library) Ingest(ctx context.Context, req domain.SectorIngestRequest) (*domain.SectorIngestResponse, error) {
	sector, ok := l.catalog.Find(req.Sector)
	if !ok {
		return nil, fmt.Errorf("unknown sector %q: %w", req.Sector, domain.ErrInvalidRequest)
	}
	sel, ok := l.catalog.Resolve(sector.Name, req.Subsector)
	if !ok {
		return nil, fmt.Errorf("unknown subsector %q: %w", req.Subsector, domain.ErrInvalidRequest)
	}

	root, err := l.resolveDir(sel.Sector, sel.Subsector, req.Path)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && uploads.Supported(filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("documentation %s: %w", root, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	if err := l.store.EnsureCollection(ctx, l.cfg.Dimension); err != nil {
		return nil, err
	}

	resp := &domain.SectorIngestResponse{Sector: sector.Name}
	for _, path := range files {
		n, err := l.ingestFile(ctx, sector, sel.Subsector, path)
		if err != nil {
			l.logger.Warn("Failed to ingest sector document", zap.String("path", path), zap.Error(err))
			continue
		}
		resp.Files++
		resp.Chunks += n
	}

	l.logger.Info("Ingested sector documentation",
		zap.String("sector", sector.Name),
		zap.String("subsector", sel.Subsector),
		zap.Int("files", resp.Files),
		zap.Int("chunks", resp.Chunks),
	)
	return resp, nil
}

func (l *Library) resolveDir(sector, subsector, path string) (string, error) {
	base, err := filepath.Abs(l.cfg.DocumentationDir)
	if err != nil {
		return "", err
	}

	var dir string
	switch {
	case path != "":
		dir = filepath.Join(base, filepath.Clean("/"+path))
	case subsector != "":
		dir = filepath.Join(base, DirName(sector), DirName(subsector))
	default:
		dir = filepath.Join(base, DirName(sector))
	}
	if dir != base && !strings.HasPrefix(dir, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q: %w", path, domain.ErrInvalidRequest)
	}
	return dir, nil
}

// ingestFile indexes one file. Without a requested subsector, a file under
// <sector>/<subsector>/ is tagged with that subsector.
func (l *Library) ingestFile(ctx context.Context, sector domain.Sector, subsector, path string) (int, error) {
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	extracted, err := uploads.ExtractFile(path, title)
	if err != nil {
		return 0, err
	}

	chunks, pages := uploads.Chunk(extracted.Pages, l.cfg.ChunkSize, l.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := llm.EmbedBatched(ctx, l.llm, chunks, llm.DefaultBatchSize)
	if err != nil {
		return 0, err
	}

	var rel string
	base, err := filepath.Abs(l.cfg.DocumentationDir)
	if err == nil {
		rel, err = filepath.Rel(base, path)
	}
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	if subsector == "" {
		if parts := strings.Split(rel, "/"); len(parts) > 2 && strings.EqualFold(parts[0], DirName(sector.Name)) {
			subsector = subsectorForDir(sector, parts[1])
		}
	}

	if err := l.store.DeleteWhere(ctx, vectorstore.Filter{keySource: rel}); err != nil {
		return 0, err
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID:     vectorstore.PointID(rel, i),
			Vector: vectors[i],
			Payload: map[string]any{
				keyText:      chunk,
				keyTitle:     extracted.Title,
				keySource:    rel,
				keySector:    sector.Name,
				keySubsector: subsector,
				keyPage:      pages[i],
				keyChunk:     i,
			},
		}
	}
	if err := l.store.Upsert(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

// Search returns the documentation chunks of the sector closest to query.
// When the subsector has no documentation the whole sector is searched.
func (l *Library) Search(ctx context.Context, query string, sel domain.SectorSelection, k int) ([]domain.Document, error) {
	if sel.Sector == "" {
		return nil, nil
	}
	resolved, ok := l.catalog.Resolve(sel.Sector, sel.Subsector)
	if resolved.Sector == "" {
		return nil, nil
	}
	if !ok {
		l.logger.Debug("Unknown subsector, searching the whole sector", zap.String("sector", resolved.Sector), zap.String("subsector", sel.Subsector))
	}
	sel = resolved

	vectors, err := l.llm.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed sector query: %w", err)
	}

	filter := vectorstore.Filter{keySector: sel.Sector}
	var matches []vectorstore.Match
	if sel.Subsector != "" {
		filter[keySubsector] = sel.Subsector
		matches, err = l.store.Search(ctx, vectors[0], k, filter)
		if err != nil {
			return nil, err
		}
		delete(filter, keySubsector)
	}
	if len(matches) == 0 {
		matches, err = l.store.Search(ctx, vectors[0], k, filter)
		if err != nil {
			return nil, err
		}
	}

	docs := make([]domain.Document, 0, len(matches))
	for _, m := range matches {
		text := vectorstore.String(m.Payload, keyText)
		docs = append(docs, domain.Document{
			PageContent: text,
			Metadata: domain.DocumentMetadata{
				Type:       domain.DocTypeSector,
				Title:      vectorstore.String(m.Payload, keyTitle),
				Source:     vectorstore.String(m.Payload, keySource),
				Sector:     vectorstore.String(m.Payload, keySector),
				Subsector:  vectorstore.String(m.Payload, keySubsector),
				PageNumber: max(vectorstore.Int(m.Payload, keyPage), 1),
				ChunkIndex: vectorstore.Int(m.Payload, keyChunk),
				SearchText: text,
				Score:      SectorScore,
			},
		})
	}
	return docs, nil
}

// Count returns the number of indexed chunks
func (l *Library) Count(ctx context.Context) (int, error) {
	return l.store.Count(ctx)
}
