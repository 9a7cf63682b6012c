package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
	"go.uber.org/zap"
)

const (
	maxSuggestions      = 3
	maxSuggestedExperts = 3
)

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

const suggestionsPrompt = `À partir de la question et de la réponse ci-dessous, propose 3 questions de suivi pertinentes en français.
Renvoie uniquement les questions, une par ligne.`

// suggest asks the model for follow-up questions. Failures yield none.
func (o *Orchestrator) suggest(ctx context.Context, query, answer string) []string {
	out, err := o.llm.Complete(ctx, []llm.Message{
		llm.System(suggestionsPrompt),
		llm.User("Question : " + query + "\n\nRéponse : " + truncateRunes(answer, 4000)),
	})
	if err != nil {
		o.logger.Warn("Failed to generate suggestions", zap.Error(err))
		return []string{}
	}
	return ParseSuggestions(out)
}

// ParseSuggestions keeps the first three non empty lines, without list markers
func ParseSuggestions(out string) []string {
	suggestions := []string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

// suggestedExperts returns the experts among the documents
func suggestedExperts(docs []domain.Document) []domain.Expert {
	experts := []domain.Expert{}
	seen := make(map[string]bool)
	for _, d := range docs {
		if d.Metadata.Type != domain.DocTypeExpert || d.Metadata.Expert == nil {
			continue
		}
		if seen[d.Metadata.Expert.ID] {
			continue
		}
		seen[d.Metadata.Expert.ID] = true
		experts = append(experts, *d.Metadata.Expert)
		if len(experts) == maxSuggestedExperts {
			break
		}
	}
	return experts
}
