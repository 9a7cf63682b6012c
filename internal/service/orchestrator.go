package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aktraiser/X-me/internal/config"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/metrics"
	"github.com/aktraiser/X-me/internal/search"
	"github.com/aktraiser/X-me/internal/uploads"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	uploadSources  = 5
	fallbackTurns  = 2
	expertKeywords = 5
	eventBuffer    = 64
)

// ErrorMessage is sent to the client when no answer could be produced
const ErrorMessage = "Une erreur est survenue lors de la génération de la réponse. Veuillez réessayer."

// SectorSearcher finds sector documentation chunks
type SectorSearcher interface {
	Search(ctx context.Context, query string, sel domain.SectorSelection, k int) ([]domain.Document, error)
}

// ExpertFinder looks experts up in the directory
type ExpertFinder interface {
	Search(q domain.ExpertQuery) ([]*domain.Expert, error)
}

// UploadLoader loads an upload and its vectors
type UploadLoader interface {
	Load(id string) (*uploads.Upload, error)
}

// PageFetcher downloads a page given by the user
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*search.Page, error)
}

// Dependencies groups the collaborators of the orchestrator. Only LLM is
// required; a nil source is never searched.
type Dependencies struct {
	LLM      llm.Client
	Budget   *llm.Budget
	Searcher search.Searcher
	Fetcher  PageFetcher
	Sectors  SectorSearcher
	Experts  ExpertFinder
	Uploads  UploadLoader
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Orchestrator answers a message: it analyses it, retrieves documents from
// the sector library, uploads, expert directory and the web, reranks them
// and streams a grounded answer.
type Orchestrator struct {
	cfg      config.OrchestraConfig
	llm      llm.Client
	budget   *llm.Budget
	searcher search.Searcher
	fetcher  PageFetcher
	sectors  SectorSearcher
	experts  ExpertFinder
	uploads  UploadLoader
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(cfg config.OrchestraConfig, deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		llm:      deps.LLM,
		budget:   deps.Budget,
		searcher: deps.Searcher,
		fetcher:  deps.Fetcher,
		sectors:  deps.Sectors,
		experts:  deps.Experts,
		uploads:  deps.Uploads,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if o.searcher == nil {
		o.searcher = search.Disabled{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// AnswerRequest is one message to answer
type AnswerRequest struct {
	MessageID        string
	Message          string
	History          []domain.HistoryItem
	FocusMode        string
	OptimizationMode string
	Files            []string
}

// Normalize fills the defaults and validates the modes
func (r *AnswerRequest) Normalize() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("empty message: %w", domain.ErrInvalidRequest)
	}
	switch r.FocusMode {
	case "":
		r.FocusMode = domain.FocusWebSearch
	case domain.FocusWebSearch, domain.FocusMarketResearch, domain.FocusUploads:
	default:
		return fmt.Errorf("unknown focus mode %q: %w", r.FocusMode, domain.ErrInvalidRequest)
	}
	switch r.OptimizationMode {
	case "":
		r.OptimizationMode = domain.ModeBalanced
	case domain.ModeSpeed, domain.ModeBalanced, domain.ModeQuality:
	default:
		return fmt.Errorf("unknown optimization mode %q: %w", r.OptimizationMode, domain.ErrInvalidRequest)
	}
	if r.MessageID == "" {
		r.MessageID = uuid.New().String()
	}
	return nil
}

// Answer starts answering the request. The returned channel yields a
// sources event, response events, a suggestions event and an end event, or
// an error event in place of the remaining ones. It is closed after the
// last event or when ctx is done.
func (o *Orchestrator) Answer(ctx context.Context, req AnswerRequest) (<-chan domain.StreamEvent, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if o.llm == nil {
		return nil, domain.ErrNoLLM
	}

	ch := make(chan domain.StreamEvent, eventBuffer)
	go func() {
		defer close(ch)
		start := time.Now()
		outcome := o.run(ctx, req, func(ev domain.StreamEvent) bool {
			ev.MessageID = req.MessageID
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
		o.metrics.ObserveAnswer(req.FocusMode, outcome, time.Since(start))
	}()
	return ch, nil
}

// prepared is the grounded context of an answer
type prepared struct {
	docs         []domain.Document
	sources      []domain.Document
	illustration *domain.Image
	query        string
}

func (o *Orchestrator) run(ctx context.Context, req AnswerRequest, emit func(domain.StreamEvent) bool) string {
	parsed := ParseMessage(req.Message)
	logger := o.logger.With(
		zap.String("message_id", req.MessageID),
		zap.String("focus_mode", req.FocusMode),
		zap.String("optimization_mode", req.OptimizationMode),
	)

	p, err := o.prepare(ctx, req, parsed)
	if err != nil {
		if ctx.Err() != nil {
			return metrics.OutcomeError
		}
		logger.Warn("Retrieval failed, answering without documents", zap.Error(err))
		return o.fallback(ctx, req, parsed, emit, logger)
	}

	ev := domain.StreamEvent{Type: domain.EventSources, Data: NormalizeSources(p.sources)}
	if p.illustration != nil {
		ev.IllustrationImage = p.illustration.ImgSrc
		ev.ImageTitle = p.illustration.Title
	}
	if !emit(ev) {
		return metrics.OutcomeError
	}

	contextText := FormatContext(p.docs, contextLimit(req.FocusMode))
	if o.budget != nil && o.cfg.ContextTokens > 0 {
		contextText = o.budget.Clip(contextText, o.cfg.ContextTokens)
	}
	messages := buildMessages(req.FocusMode, contextText, parsed.Sector, p.query, req.History)

	answer, streamed, err := o.generate(ctx, messages, emit)
	if err != nil {
		if ctx.Err() != nil {
			return metrics.OutcomeError
		}
		if streamed {
			logger.Error("Generation failed mid-stream", zap.Error(err))
			emit(domain.StreamEvent{Type: domain.EventError, Data: ErrorMessage})
			return metrics.OutcomeError
		}
		logger.Warn("Generation failed, retrying without documents", zap.Error(err))
		return o.retry(ctx, req, parsed, emit, logger)
	}

	o.finish(ctx, parsed.Query, answer, p.docs, emit)
	return metrics.OutcomeOK
}

// prepare analyses the message and retrieves its documents
func (o *Orchestrator) prepare(ctx context.Context, req AnswerRequest, parsed ParsedMessage) (*prepared, error) {
	hasFiles := len(req.Files) > 0 && o.uploads != nil
	p := plan{
		query:  parsed.Query,
		mode:   req.OptimizationMode,
		sector: parsed.Sector,
		files:  req.Files,
	}
	generationQuery := parsed.Query
	rerankMode := req.OptimizationMode

	if req.FocusMode == domain.FocusUploads {
		p.documents = hasFiles
		if hasFiles {
			p.uploadIntent = o.detectUploadIntent(ctx, parsed.Query)
			generationQuery = rewriteForIntent(p.uploadIntent, parsed.Query)
		}
		// uploads keep every retrieved chunk
		rerankMode = domain.ModeSpeed
	} else {
		analysis := o.analyze(ctx, parsed.Query, parsed.Sector, hasFiles)
		p.sectors = o.sectors != nil && parsed.Sector.Sector != ""
		p.documents = analysis.RequiresDocumentSearch && hasFiles
		p.experts = o.cfg.SearchExperts && o.experts != nil && analysis.RequiresExpertSearch
		p.web = o.cfg.SearchWeb && analysis.RequiresWebSearch

		if p.web {
			question, needed, links := o.rephrase(ctx, parsed.Query, req.History)
			p.query = question
			p.web = needed
			p.links = links
		} else {
			p.links = dedupe(linkPattern.FindAllString(parsed.Query, -1))
		}
		p.images = p.web && req.OptimizationMode != domain.ModeSpeed

		terms := analysis.Keywords
		if len(terms) == 0 {
			terms = keywords(parsed.Query, expertKeywords)
		}
		p.expertQuery = domain.ExpertQuery{Terms: terms, City: analysis.City, Limit: o.cfg.ExpertLimit}
	}

	needVector := p.documents || (o.cfg.Rerank && rerankMode != domain.ModeSpeed)
	if needVector {
		vectors, err := o.llm.Embed(ctx, []string{p.query})
		if err != nil {
			o.logger.Warn("Failed to embed the query", zap.Error(err))
		} else if len(vectors) == 1 {
			p.queryVec = vectors[0]
		}
	}

	r, err := o.retrieve(ctx, p)
	if err != nil {
		return nil, err
	}

	docs := o.rerank(ctx, r.docs, p.queryVec, rerankMode)
	out := &prepared{docs: docs, sources: docs, query: generationQuery}
	if req.FocusMode == domain.FocusUploads && len(docs) > uploadSources {
		out.sources = docs[:uploadSources]
	}
	if len(r.images) > 0 {
		img := r.images[0]
		out.illustration = &img
		for i := range docs {
			docs[i].Metadata.IllustrationImage = img.ImgSrc
			docs[i].Metadata.ImageTitle = img.Title
		}
	}

	counts := make(map[string]int)
	for _, d := range docs {
		counts[d.Metadata.Type]++
	}
	for t, n := range counts {
		o.metrics.AddDocuments(t, n)
	}
	return out, nil
}

// fallback answers without any document after the retrieval failed
func (o *Orchestrator) fallback(ctx context.Context, req AnswerRequest, parsed ParsedMessage, emit func(domain.StreamEvent) bool, logger *zap.Logger) string {
	if !emit(domain.StreamEvent{Type: domain.EventSources, Data: []domain.Source{}}) {
		return metrics.OutcomeError
	}
	return o.retry(ctx, req, parsed, emit, logger)
}

// retry generates once more with no documents and a short history
func (o *Orchestrator) retry(ctx context.Context, req AnswerRequest, parsed ParsedMessage, emit func(domain.StreamEvent) bool, logger *zap.Logger) string {
	messages := buildMessages(req.FocusMode, NoDocumentsText, parsed.Sector, parsed.Query, lastHistory(req.History, fallbackTurns))

	answer, _, err := o.generate(ctx, messages, emit)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Fallback generation failed", zap.Error(err))
			emit(domain.StreamEvent{Type: domain.EventError, Data: ErrorMessage})
		}
		return metrics.OutcomeError
	}

	o.finish(ctx, parsed.Query, answer, nil, emit)
	return metrics.OutcomeFallback
}

// generate streams the model answer as response events. streamed reports
// whether any token reached the client.
func (o *Orchestrator) generate(ctx context.Context, messages []llm.Message, emit func(domain.StreamEvent) bool) (string, bool, error) {
	var sb strings.Builder
	streamed := false
	err := o.llm.Stream(ctx, messages, func(token string) error {
		if token == "" {
			return nil
		}
		if !emit(domain.StreamEvent{Type: domain.EventResponse, Data: token}) {
			return ctx.Err()
		}
		streamed = true
		sb.WriteString(token)
		return nil
	})
	if err == nil && !streamed {
		err = errors.New("empty answer")
	}
	return sb.String(), streamed, err
}

// finish emits the suggestions and end events
func (o *Orchestrator) finish(ctx context.Context, query, answer string, docs []domain.Document, emit func(domain.StreamEvent) bool) {
	data := domain.SuggestionsData{
		Suggestions:      o.suggest(ctx, query, answer),
		SuggestedExperts: suggestedExperts(docs),
	}
	if !emit(domain.StreamEvent{Type: domain.EventSuggestions, Data: data}) {
		return
	}
	emit(domain.StreamEvent{Type: domain.EventEnd})
}
