package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/vectorstore"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Retrieval branches
const (
	branchSectors = "sectors"
	branchUploads = "uploads"
	branchExperts = "experts"
	branchLinks   = "links"
	branchWeb     = "web"
	branchImages  = "images"
)

// merge order of the branches
var branchOrder = []string{branchSectors, branchUploads, branchExperts, branchLinks, branchWeb}

const (
	maxLinks          = 3
	uploadSearchText  = 100
	defaultUploadTopK = 10
	defaultSectorTopK = 10
)

// ErrRetrievalFailed is returned when every retrieval branch failed
var ErrRetrievalFailed = errors.New("retrieval failed")

// plan lists what one answer retrieves
type plan struct {
	query        string
	mode         string
	sector       domain.SectorSelection
	files        []string
	uploadIntent string
	queryVec     []float64
	expertQuery  domain.ExpertQuery
	links        []string

	sectors   bool
	documents bool
	experts   bool
	web       bool
	images    bool
}

type retrieval struct {
	docs   []domain.Document
	images []domain.Image
}

// retrieve runs the planned branches concurrently. A failing branch yields
// no documents; the retrieval fails only when every branch failed or one
// panicked.
func (o *Orchestrator) retrieve(ctx context.Context, p plan) (*retrieval, error) {
	var (
		mu        sync.Mutex
		results   = make(map[string][]domain.Document)
		images    []domain.Image
		attempted int
		failed    int
	)

	record := func(branch string, docs []domain.Document, err error) {
		mu.Lock()
		defer mu.Unlock()
		attempted++
		if err != nil {
			failed++
			o.metrics.RetrievalError(branch)
			o.logger.Warn("Retrieval branch failed", zap.String("branch", branch), zap.Error(err))
			return
		}
		results[branch] = docs
	}

	var wg conc.WaitGroup
	if p.sectors {
		wg.Go(func() {
			k := o.cfg.SectorTopK
			if k <= 0 {
				k = defaultSectorTopK
			}
			docs, err := o.sectors.Search(ctx, p.query, p.sector, k)
			record(branchSectors, docs, err)
		})
	}
	if p.documents {
		wg.Go(func() {
			docs, err := o.searchUploads(p)
			record(branchUploads, docs, err)
		})
	}
	if p.experts {
		wg.Go(func() {
			docs, err := o.searchExperts(p.expertQuery)
			record(branchExperts, docs, err)
		})
	}
	if len(p.links) > 0 && o.fetcher != nil {
		wg.Go(func() {
			docs, err := o.fetchLinks(ctx, p.links)
			record(branchLinks, docs, err)
		})
	}
	if p.web {
		wg.Go(func() {
			docs, err := o.searchWeb(ctx, p.query)
			record(branchWeb, docs, err)
		})
	}
	if p.images {
		// images never make the retrieval fail
		wg.Go(func() {
			found, err := o.searcher.Images(ctx, p.query)
			if err != nil {
				o.metrics.RetrievalError(branchImages)
				o.logger.Warn("Image search failed", zap.Error(err))
				return
			}
			mu.Lock()
			images = found
			mu.Unlock()
		})
	}

	if r := wg.WaitAndRecover(); r != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, r.AsError())
	}
	if attempted > 0 && failed == attempted {
		return nil, ErrRetrievalFailed
	}

	out := &retrieval{images: images}
	for _, b := range branchOrder {
		out.docs = append(out.docs, results[b]...)
	}
	return out, nil
}

// searchUploads returns the chunks of the uploaded files closest to the
// query. Summaries, and files without vectors, use chunks spread over the
// whole document instead.
func (o *Orchestrator) searchUploads(p plan) ([]domain.Document, error) {
	var docs []domain.Document
	var errs []error
	for _, id := range p.files {
		u, err := o.uploads.Load(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		title := orDefault(u.Content.Title, "Document sans titre")
		for i, chunk := range u.Content.Contents {
			doc := domain.Document{
				PageContent: chunk,
				Metadata: domain.DocumentMetadata{
					Type:        domain.DocTypeUploaded,
					Title:       title,
					Source:      id,
					FileID:      id,
					PageNumber:  u.PageOf(i),
					ChunkIndex:  i,
					TotalChunks: len(u.Content.Contents),
					SearchText:  truncateRunes(strings.Join(strings.Fields(chunk), " "), uploadSearchText),
					Score:       BaseScore(domain.DocTypeUploaded),
				},
			}
			if i < len(u.Embeddings) {
				doc.Embedding = u.Embeddings[i]
			}
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	k := o.cfg.UploadTopK
	if k <= 0 {
		k = defaultUploadTopK
	}
	if len(docs) <= k {
		return docs, nil
	}
	if p.uploadIntent == UploadIntentSummary || len(p.queryVec) == 0 {
		return spread(docs, k), nil
	}

	nearest, err := nearestChunks(docs, p.queryVec, k)
	if err != nil || len(nearest) == 0 {
		if err != nil {
			o.logger.Debug("Upload vector search unavailable", zap.Error(err))
		}
		return spread(docs, k), nil
	}
	return nearest, nil
}

// nearestChunks indexes the chunks in an in-memory store and returns the k
// closest to vec
func nearestChunks(docs []domain.Document, vec []float64, k int) ([]domain.Document, error) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	if err := store.EnsureCollection(ctx, len(vec)); err != nil {
		return nil, err
	}

	points := make([]vectorstore.Point, 0, len(docs))
	for i, d := range docs {
		if len(d.Embedding) != len(vec) {
			continue
		}
		points = append(points, vectorstore.Point{
			ID:      strconv.Itoa(i),
			Vector:  d.Embedding,
			Payload: map[string]any{"index": i},
		})
	}
	if err := store.Upsert(ctx, points); err != nil {
		return nil, err
	}

	matches, err := store.Search(ctx, vec, k, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(matches))
	for _, m := range matches {
		out = append(out, docs[vectorstore.Int(m.Payload, "index")])
	}
	return out, nil
}

// spread picks k documents evenly over docs, keeping their order
func spread(docs []domain.Document, k int) []domain.Document {
	if k <= 0 || len(docs) <= k {
		return docs
	}
	out := make([]domain.Document, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, docs[i*len(docs)/k])
	}
	return out
}

func (o *Orchestrator) searchExperts(q domain.ExpertQuery) ([]domain.Document, error) {
	experts, err := o.experts.Search(q)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(experts))
	for _, e := range experts {
		docs = append(docs, domain.Document{
			PageContent: expertContent(e),
			Metadata: domain.DocumentMetadata{
				Type:       domain.DocTypeExpert,
				Title:      e.FullName() + " - " + e.Specialty,
				URL:        e.URL,
				Source:     "expert",
				Expert:     e,
				SearchText: e.Specialty + " " + e.City,
				ImageSrc:   e.ImageURL,
				Score:      BaseScore(domain.DocTypeExpert),
			},
		})
	}
	return docs, nil
}

func expertContent(e *domain.Expert) string {
	var sb strings.Builder
	sb.WriteString("Expert: " + e.FullName() + "\n")
	sb.WriteString("Spécialité: " + e.Specialty + "\n")
	if e.City != "" {
		sb.WriteString("Ville: " + e.City + "\n")
	}
	if e.Rate > 0 {
		sb.WriteString("Tarif: " + strconv.FormatFloat(e.Rate, 'f', -1, 64) + "€\n")
	}
	if e.Expertises != "" {
		sb.WriteString("Expertises: " + e.Expertises + "\n")
	}
	if len(e.Services) > 0 {
		sb.WriteString("Services: " + string(e.Services) + "\n")
	}
	sb.WriteString(e.Biography)
	return strings.TrimSpace(sb.String())
}

func (o *Orchestrator) searchWeb(ctx context.Context, query string) ([]domain.Document, error) {
	results, err := o.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, domain.Document{
			PageContent: r.Content,
			Metadata: domain.DocumentMetadata{
				Type:       domain.DocTypeWeb,
				Title:      r.Title,
				URL:        r.URL,
				Source:     "web",
				SearchText: r.Content,
				ImageSrc:   r.ImgSrc,
				Score:      BaseScore(domain.DocTypeWeb),
			},
		})
	}
	return docs, nil
}

func (o *Orchestrator) fetchLinks(ctx context.Context, links []string) ([]domain.Document, error) {
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}

	var docs []domain.Document
	var errs []error
	for _, link := range links {
		page, err := o.fetcher.Fetch(ctx, link)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, domain.Document{
			PageContent: page.Content,
			Metadata: domain.DocumentMetadata{
				Type:       domain.DocTypeLink,
				Title:      page.Title,
				URL:        page.URL,
				Source:     "web",
				SearchText: page.Content,
				Score:      BaseScore(domain.DocTypeLink),
			},
		})
	}
	if len(docs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return docs, nil
}
