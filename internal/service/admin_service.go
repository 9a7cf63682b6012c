package service

import (
	"context"
	"fmt"
	"io"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/repository"
	"go.uber.org/zap"
)

// SectorIngester indexes sector documentation
type SectorIngester interface {
	Ingest(ctx context.Context, req domain.SectorIngestRequest) (*domain.SectorIngestResponse, error)
	Count(ctx context.Context) (int, error)
}

// UploadCounter counts stored uploads
type UploadCounter interface {
	Count() (int, error)
}

// AdminService handles admin operations
type AdminService struct {
	chatRepo   *repository.ChatRepository
	expertRepo *repository.ExpertRepository
	uploads    UploadCounter
	sectors    SectorIngester
	logger     *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	chatRepo *repository.ChatRepository,
	expertRepo *repository.ExpertRepository,
	uploads UploadCounter,
	sectors SectorIngester,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		chatRepo:   chatRepo,
		expertRepo: expertRepo,
		uploads:    uploads,
		sectors:    sectors,
		logger:     logger,
	}
}

// Expert operations

func (s *AdminService) CreateExpert(ctx context.Context, req *domain.CreateExpertRequest) (*domain.Expert, error) {
	expert := &domain.Expert{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Specialty:  req.Specialty,
		City:       req.City,
		Rate:       req.Rate,
		Expertises: req.Expertises,
		Services:   req.Services,
		Biography:  req.Biography,
		URL:        req.URL,
		ImageURL:   req.ImageURL,
	}
	if err := s.expertRepo.Create(expert); err != nil {
		return nil, err
	}
	return expert, nil
}

func (s *AdminService) GetExpert(ctx context.Context, id string) (*domain.Expert, error) {
	expert, err := s.expertRepo.Get(id)
	if err != nil {
		return nil, err
	}
	if expert == nil {
		return nil, fmt.Errorf("expert %s: %w", id, domain.ErrNotFound)
	}
	return expert, nil
}

func (s *AdminService) ListExperts(ctx context.Context, limit, offset int) ([]*domain.Expert, error) {
	return s.expertRepo.List(limit, offset)
}

func (s *AdminService) DeleteExpert(ctx context.Context, id string) error {
	return s.expertRepo.Delete(id)
}

// ImportExperts adds the experts of an XLSX workbook
func (s *AdminService) ImportExperts(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	result, err := s.expertRepo.ImportXLSX(r)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Experts imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// Sector documentation

func (s *AdminService) IngestSector(ctx context.Context, req *domain.SectorIngestRequest) (*domain.SectorIngestResponse, error) {
	return s.sectors.Ingest(ctx, *req)
}

// Stats

func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{}

	var err error
	if stats.TotalChats, err = s.chatRepo.CountChats(); err != nil {
		return nil, err
	}
	if stats.TotalMessages, err = s.chatRepo.CountMessages(); err != nil {
		return nil, err
	}
	if stats.TotalExperts, err = s.expertRepo.Count(); err != nil {
		return nil, err
	}

	// Counters of external stores are best effort
	if n, err := s.uploads.Count(); err == nil {
		stats.TotalUploads = n
	} else {
		s.logger.Warn("Failed to count uploads", zap.Error(err))
	}
	if n, err := s.sectors.Count(ctx); err == nil {
		stats.SectorChunks = n
	} else {
		s.logger.Warn("Failed to count sector chunks", zap.Error(err))
	}

	return stats, nil
}
