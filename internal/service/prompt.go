package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/llm"
)

// NoDocumentsText replaces the context when nothing was retrieved
const NoDocumentsText = "Aucun document pertinent trouvé."

const (
	contextDocs       = 10
	marketContextDocs = 5
	maxContentRunes   = 1500
	keyInfoPerPattern = 5
	historyTurns      = 20
)

var (
	keyInfoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+(?:,\d+)?(?:\s*%|\s*euros?|\s*€)`),
		regexp.MustCompile(`\d{4}`),
		regexp.MustCompile(`\d+(?:,\d+)?\s*(?:millions?|milliards?)`),
	}
	manySpaces = regexp.MustCompile(`\s{2,}`)
)

// contextLimit returns how many documents are formatted for a focus mode
func contextLimit(focusMode string) int {
	if focusMode == domain.FocusMarketResearch {
		return marketContextDocs
	}
	return contextDocs
}

// FormatContext renders the documents as numbered sources for the prompt.
// Documents are sorted like SortDocuments and capped at limit.
func FormatContext(docs []domain.Document, limit int) string {
	if len(docs) == 0 {
		return NoDocumentsText
	}

	sorted := make([]domain.Document, len(docs))
	copy(sorted, docs)
	SortDocuments(sorted)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	parts := make([]string, 0, len(sorted))
	for i, d := range sorted {
		parts = append(parts, fmt.Sprintf("=== Source %d: %s ===\n%s\n%s\n",
			i+1, sourceLabel(d), extractKeyInfo(d.PageContent), formatContent(d.PageContent)))
	}
	return strings.Join(parts, "\n\n")
}

func sourceLabel(d domain.Document) string {
	title := orDefault(d.Metadata.Title, "Sans titre")
	switch d.Metadata.Type {
	case domain.DocTypeSector:
		if d.Metadata.Subsector != "" {
			return fmt.Sprintf("[Document Sectoriel: %s - %s]", title, d.Metadata.Subsector)
		}
		return fmt.Sprintf("[Document Sectoriel: %s]", title)
	case domain.DocTypeWeb:
		return fmt.Sprintf("[Source Web: %s]", title)
	default:
		if d.Metadata.Source != "" {
			return fmt.Sprintf("[%s - %s]", title, d.Metadata.Source)
		}
		return fmt.Sprintf("[%s]", title)
	}
}

// extractKeyInfo lists figures found in the content: amounts, percentages,
// years and large numbers
func extractKeyInfo(content string) string {
	var found []string
	seen := make(map[string]bool)
	for _, p := range keyInfoPatterns {
		for _, m := range p.FindAllString(content, keyInfoPerPattern) {
			if seen[m] {
				continue
			}
			seen[m] = true
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return ""
	}
	return "Informations clés: " + strings.Join(found, ", ")
}

func formatContent(content string) string {
	r := []rune(content)
	if len(r) > maxContentRunes {
		content = string(r[:maxContentRunes]) + "..."
	}
	content = manySpaces.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

var systemPrompts = map[string]string{
	domain.FocusWebSearch: `Tu es X-me, un conseiller d'entreprise qui répond en français aux créateurs et dirigeants de TPE/PME.
Appuie-toi sur les sources fournies, cite-les avec leur numéro [n] et privilégie la documentation sectorielle.
Structure la réponse avec des titres courts et des listes. Si l'information manque, dis-le.`,
	domain.FocusMarketResearch: `Tu es X-me, analyste d'études de marché pour les TPE/PME françaises.
Produis une étude synthétique : taille du marché, tendances, concurrence, clientèle, réglementation, chiffres clés.
Cite les sources avec leur numéro [n] et signale les données manquantes.`,
	domain.FocusUploads: `Tu es X-me, tu analyses les documents fournis par l'utilisateur.
Réponds uniquement à partir de ces documents, cite la page quand elle est connue et dis clairement quand le document ne contient pas la réponse.`,
}

// systemPrompt returns the system prompt of a focus mode
func systemPrompt(focusMode string) string {
	if p, ok := systemPrompts[focusMode]; ok {
		return p
	}
	return systemPrompts[domain.FocusWebSearch]
}

// buildMessages assembles the system prompt, the history and the user turn
func buildMessages(focusMode, context string, sel domain.SectorSelection, query string, history []domain.HistoryItem) []llm.Message {
	messages := []llm.Message{llm.System(systemPrompt(focusMode))}
	for _, h := range lastHistory(history, historyTurns) {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		if h.Role == domain.RoleAssistant {
			messages = append(messages, llm.Assistant(h.Content))
		} else {
			messages = append(messages, llm.User(h.Content))
		}
	}

	var sb strings.Builder
	if context != "" {
		sb.WriteString(context)
		sb.WriteString("\n\n")
	}
	if sel.Sector != "" {
		sb.WriteString("[Secteur: " + sel.Sector)
		if sel.Subsector != "" {
			sb.WriteString(" / Sous-secteur: " + sel.Subsector)
		}
		sb.WriteString("]\n")
	}
	sb.WriteString(query)

	return append(messages, llm.User(sb.String()))
}
