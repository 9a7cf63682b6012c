package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/aktraiser/X-me/internal/config"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/uploads"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadService extracts, chunks and embeds uploaded files
type UploadService struct {
	cfg    config.UploadsConfig
	store  *uploads.Store
	llm    llm.Client
	logger *zap.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(cfg config.UploadsConfig, store *uploads.Store, client llm.Client, logger *zap.Logger) *UploadService {
	return &UploadService{
		cfg:    cfg,
		store:  store,
		llm:    client,
		logger: logger,
	}
}

// Upload processes every file. It stops at the first file that fails, the
// files processed before it stay available.
func (s *UploadService) Upload(ctx context.Context, files []*multipart.FileHeader) ([]domain.UploadedFile, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files: %w", domain.ErrInvalidRequest)
	}

	result := make([]domain.UploadedFile, 0, len(files))
	for _, fh := range files {
		uploaded, err := s.uploadFile(ctx, fh)
		if err != nil {
			return result, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		result = append(result, *uploaded)
	}
	return result, nil
}

func (s *UploadService) uploadFile(ctx context.Context, fh *multipart.FileHeader) (*domain.UploadedFile, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !uploads.Supported(ext) {
		return nil, fmt.Errorf("%q: %w", ext, domain.ErrUnsupportedFile)
	}
	if s.cfg.MaxFileSize > 0 && fh.Size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("file larger than %d bytes: %w", s.cfg.MaxFileSize, domain.ErrInvalidRequest)
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	path := s.store.FilePath(id, ext)

	// Save file
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if err := saveFile(path, src); err != nil {
		return nil, err
	}

	if err := s.process(ctx, id, path, fh.Filename); err != nil {
		os.Remove(path)
		return nil, err
	}

	return &domain.UploadedFile{
		FileName:      fh.Filename,
		FileExtension: strings.TrimPrefix(ext, "."),
		FileID:        id,
	}, nil
}

// process writes the extracted and embeddings sidecars of a stored file
func (s *UploadService) process(ctx context.Context, id, path, name string) error {
	extracted, err := uploads.ExtractFile(path, strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}

	chunks, pages := uploads.Chunk(extracted.Pages, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	content := domain.ExtractedContent{
		Title:     extracted.Title,
		Contents:  chunks,
		PageCount: max(len(extracted.Pages), 1),
		Pages:     pages,
	}

	_, model := s.llm.Models()
	embeddings := domain.EmbeddingsFile{Model: model, Embeddings: []domain.EmbeddingVector{}}
	if len(chunks) > 0 {
		vectors, err := llm.EmbedBatched(ctx, s.llm, chunks, llm.DefaultBatchSize)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		for _, v := range vectors {
			embeddings.Embeddings = append(embeddings.Embeddings, domain.EmbeddingVector{Vector: v})
		}
	}

	if err := s.store.Save(id, content, embeddings); err != nil {
		return fmt.Errorf("failed to save sidecars: %w", err)
	}

	s.logger.Info("Upload processed",
		zap.String("file_id", id),
		zap.String("file_name", name),
		zap.Int("pages", content.PageCount),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// Page returns the chunks of one page of an upload
func (s *UploadService) Page(id string, page int) (*domain.PageContent, error) {
	return s.store.Page(id, page)
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create storage file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return dst.Close()
}
