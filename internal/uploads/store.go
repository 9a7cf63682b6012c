// Package uploads stores uploaded files and their extracted text and
// embeddings as JSON sidecars next to them.
package uploads

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/aktraiser/X-me/internal/domain"
	"go.uber.org/zap"
)

const (
	extractedSuffix  = "-extracted.json"
	embeddingsSuffix = "-embeddings.json"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Upload is a parsed upload: chunks, their pages and their vectors
type Upload struct {
	ID         string
	Content    domain.ExtractedContent
	Embeddings [][]float64
}

// PageOf returns the 1-based page of chunk i
func (u *Upload) PageOf(i int) int {
	if i >= 0 && i < len(u.Content.Pages) && u.Content.Pages[i] > 0 {
		return u.Content.Pages[i]
	}
	return PageForChunk(i, len(u.Content.Contents), u.Content.PageCount)
}

// Store reads and writes upload sidecars and caches parsed ones
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*Upload
}

// NewStore creates the upload directory if needed
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Store{dir: dir, logger: logger, cache: make(map[string]*Upload)}, nil
}

// Dir returns the upload directory
func (s *Store) Dir() string { return s.dir }

// ValidID reports whether id can be used as a file name prefix
func ValidID(id string) bool { return validID.MatchString(id) }

// FilePath returns where the original file of an upload is kept
func (s *Store) FilePath(id, ext string) string {
	return filepath.Join(s.dir, id+strings.ToLower(ext))
}

// Save writes both sidecars of an upload and caches it
func (s *Store) Save(id string, content domain.ExtractedContent, embeddings domain.EmbeddingsFile) error {
	if !ValidID(id) {
		return fmt.Errorf("upload id %q: %w", id, domain.ErrInvalidRequest)
	}
	if err := writeJSON(filepath.Join(s.dir, id+extractedSuffix), content); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(s.dir, id+embeddingsSuffix), embeddings); err != nil {
		return err
	}

	vectors := make([][]float64, len(embeddings.Embeddings))
	for i, e := range embeddings.Embeddings {
		vectors[i] = e.Vector
	}
	s.mu.Lock()
	s.cache[id] = &Upload{ID: id, Content: content, Embeddings: vectors}
	s.mu.Unlock()
	return nil
}

// Load returns an upload, reading its sidecars when it is not cached. A
// missing embeddings sidecar yields an upload without vectors.
func (s *Store) Load(id string) (*Upload, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("upload id %q: %w", id, domain.ErrInvalidRequest)
	}

	s.mu.RLock()
	u, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return u, nil
	}

	u = &Upload{ID: id}
	if err := readJSON(filepath.Join(s.dir, id+extractedSuffix), &u.Content); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("upload %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}

	var embeddings domain.EmbeddingsFile
	if err := readJSON(filepath.Join(s.dir, id+embeddingsSuffix), &embeddings); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		s.logger.Warn("Upload has no embeddings sidecar", zap.String("file_id", id))
	}
	for _, e := range embeddings.Embeddings {
		u.Embeddings = append(u.Embeddings, e.Vector)
	}
	if len(u.Embeddings) != 0 && len(u.Embeddings) != len(u.Content.Contents) {
		s.logger.Warn("Upload embeddings do not match chunks, ignoring them",
			zap.String("file_id", id),
			zap.Int("chunks", len(u.Content.Contents)),
			zap.Int("embeddings", len(u.Embeddings)),
		)
		u.Embeddings = nil
	}

	s.mu.Lock()
	s.cache[id] = u
	s.mu.Unlock()
	return u, nil
}

// Page returns the chunks of one page of an upload
func (s *Store) Page(id string, page int) (*domain.PageContent, error) {
	u, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	pageCount := u.Content.PageCount
	if pageCount < 1 {
		pageCount = 1
	}
	if page < 1 || page > pageCount {
		return nil, fmt.Errorf("page %d of %d: %w", page, pageCount, domain.ErrNotFound)
	}

	result := &domain.PageContent{
		FileID:    id,
		Title:     u.Content.Title,
		Page:      page,
		PageCount: pageCount,
		Chunks:    []string{},
	}
	for i, chunk := range u.Content.Contents {
		if u.PageOf(i) == page {
			result.Chunks = append(result.Chunks, chunk)
		}
	}
	return result, nil
}

// Invalidate drops an upload from the cache
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// Count returns the number of uploads with an extracted sidecar
func (s *Store) Count() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+extractedSuffix))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// sidecarID returns the upload id of a sidecar path
func sidecarID(path string) (string, bool) {
	base := filepath.Base(path)
	for _, suffix := range []string{extractedSuffix, embeddingsSuffix} {
		if id, ok := strings.CutSuffix(base, suffix); ok && ValidID(id) {
			return id, true
		}
	}
	return "", false
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
