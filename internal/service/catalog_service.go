package service

import (
	"context"

	"github.com/aktraiser/X-me/internal/config"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/sectors"
)

// ModelsResponse is the response for the models endpoint
type ModelsResponse struct {
	Provider       string `json:"provider"`
	ChatModel      string `json:"chatModel"`
	EmbeddingModel string `json:"embeddingModel"`
	Mock           bool   `json:"mock"`
}

// CatalogService exposes the sector catalog and the configured models
type CatalogService struct {
	cfg     *config.Config
	catalog *sectors.Catalog
	llm     llm.Client
}

// NewCatalogService creates a new catalog service
func NewCatalogService(cfg *config.Config, catalog *sectors.Catalog, client llm.Client) *CatalogService {
	return &CatalogService{
		cfg:     cfg,
		catalog: catalog,
		llm:     client,
	}
}

// GetSectors returns the sectors and their subsectors
func (s *CatalogService) GetSectors(ctx context.Context) []domain.Sector {
	return s.catalog.Sectors()
}

// GetModels returns the models answering the chats
func (s *CatalogService) GetModels(ctx context.Context) *ModelsResponse {
	chat, embedding := s.llm.Models()
	provider := s.cfg.LLM.Provider
	if !s.cfg.HasLLM() {
		provider = "mock"
	}
	return &ModelsResponse{
		Provider:       provider,
		ChatModel:      chat,
		EmbeddingModel: embedding,
		Mock:           !s.cfg.HasLLM(),
	}
}
