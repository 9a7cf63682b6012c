package service

import (
	"context"
	"sort"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/vectorstore"
	"go.uber.org/zap"
)

// MaxRerankedDocs caps the documents kept after reranking
const MaxRerankedDocs = 15

// BaseScore is the heuristic relevance of a document type
func BaseScore(docType string) float64 {
	switch docType {
	case domain.DocTypeSector:
		return 0.9
	case domain.DocTypeUploaded:
		return 0.8
	case domain.DocTypeExpert:
		return 0.6
	case domain.DocTypeLink:
		return 0.5
	default:
		return 0.4
	}
}

// neverDropped reports whether a document type survives the threshold
func neverDropped(docType string) bool {
	return docType == domain.DocTypeSector || docType == domain.DocTypeExpert
}

// SortDocuments orders sector documents first, then by descending score.
// Equal documents keep their retrieval order.
func SortDocuments(docs []domain.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		si := docs[i].Metadata.Type == domain.DocTypeSector
		sj := docs[j].Metadata.Type == domain.DocTypeSector
		if si != sj {
			return si
		}
		return docs[i].Metadata.Score > docs[j].Metadata.Score
	})
}

// rerank scores, filters, sorts and caps the documents. In balanced and
// quality modes documents other than sector and expert ones are rescored by
// cosine similarity to the query, embedding them when they carry no vector.
func (o *Orchestrator) rerank(ctx context.Context, docs []domain.Document, queryVec []float64, mode string) []domain.Document {
	for i := range docs {
		if docs[i].Metadata.Score == 0 {
			docs[i].Metadata.Score = BaseScore(docs[i].Metadata.Type)
		}
	}

	if mode != domain.ModeSpeed && o.cfg.Rerank && len(queryVec) > 0 {
		o.embedMissing(ctx, docs)

		kept := docs[:0]
		for _, d := range docs {
			if neverDropped(d.Metadata.Type) || len(d.Embedding) == 0 {
				kept = append(kept, d)
				continue
			}
			sim := vectorstore.Cosine(d.Embedding, queryVec)
			if sim < o.cfg.RerankThreshold {
				continue
			}
			d.Metadata.Score = sim
			kept = append(kept, d)
		}
		docs = kept
	}

	SortDocuments(docs)

	limit := o.cfg.MaxDocs
	if limit <= 0 || limit > MaxRerankedDocs {
		limit = MaxRerankedDocs
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

// embedMissing embeds the web and link documents that have no vector
func (o *Orchestrator) embedMissing(ctx context.Context, docs []domain.Document) {
	var idx []int
	var texts []string
	for i, d := range docs {
		if len(d.Embedding) > 0 || neverDropped(d.Metadata.Type) || d.PageContent == "" {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, truncateRunes(d.PageContent, 2000))
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := llm.EmbedBatched(ctx, o.llm, texts, llm.DefaultBatchSize)
	if err != nil {
		o.logger.Warn("Failed to embed documents for reranking", zap.Error(err))
		return
	}
	for k, i := range idx {
		docs[i].Embedding = vectors[k]
	}
}
