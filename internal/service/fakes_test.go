package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/search"
)

// scriptedLLM answers helper prompts with canned outputs and streams the
// answers given in streams, one per call
type scriptedLLM struct {
	llm.MockClient

	analysis    string
	rephrase    string
	suggestions string
	streams     []scriptedStream

	mu      sync.Mutex
	calls   int
	prompts [][]llm.Message
}

type scriptedStream struct {
	tokens []string
	err    error
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	switch messages[0].Content {
	case analysisPrompt:
		return s.analysis, nil
	case rephrasePrompt:
		return s.rephrase, nil
	case suggestionsPrompt:
		return s.suggestions, nil
	case uploadIntentPrompt:
		return "SPECIFIC", nil
	}
	return "", errors.New("unexpected prompt")
}

func (s *scriptedLLM) Stream(ctx context.Context, messages []llm.Message, cb llm.TokenCallback, opts ...llm.Option) error {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, messages)
	s.mu.Unlock()

	st := scriptedStream{tokens: []string{"Réponse ", "complète."}}
	if i < len(s.streams) {
		st = s.streams[i]
	}
	for _, tok := range st.tokens {
		if err := cb(tok); err != nil {
			return err
		}
	}
	return st.err
}

func (s *scriptedLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.prompts[len(s.prompts)-1]
	return msgs[len(msgs)-1].Content
}

type fakeSectors struct {
	docs []domain.Document
	err  error
}

func (f *fakeSectors) Search(ctx context.Context, query string, sel domain.SectorSelection, k int) ([]domain.Document, error) {
	return f.docs, f.err
}

type fakeExperts struct {
	experts []*domain.Expert
	err     error
	query   domain.ExpertQuery
}

func (f *fakeExperts) Search(q domain.ExpertQuery) ([]*domain.Expert, error) {
	f.query = q
	return f.experts, f.err
}

type fakeSearcher struct {
	results []search.Result
	images  []domain.Image
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	return f.results, f.err
}

func (f *fakeSearcher) Images(ctx context.Context, query string) ([]domain.Image, error) {
	return f.images, f.err
}

const webAnalysis = `{"primaryIntent":"HYBRID","requiresDocumentSearch":false,"requiresWebSearch":true,"requiresExpertSearch":true,"keywords":["boulangerie"],"city":"Lyon"}`

func sectorDoc(title string) domain.Document {
	return domain.Document{
		PageContent: "Le marché de la boulangerie représente 11 milliards d'euros en 2023.",
		Metadata: domain.DocumentMetadata{
			Type:   domain.DocTypeSector,
			Title:  title,
			Sector: "Commerce",
			Score:  0.9,
		},
	}
}

func drain(events <-chan domain.StreamEvent) []domain.StreamEvent {
	var out []domain.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []domain.StreamEvent) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		if len(types) > 0 && ev.Type == domain.EventResponse && types[len(types)-1] == domain.EventResponse {
			continue
		}
		types = append(types, ev.Type)
	}
	return types
}

func answerText(events []domain.StreamEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == domain.EventResponse {
			sb.WriteString(ev.Data.(string))
		}
	}
	return sb.String()
}
