package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, NoDocumentsText, FormatContext(nil, 10))
}

func TestFormatContext(t *testing.T) {
	docs := []domain.Document{
		{PageContent: "Actualité", Metadata: domain.DocumentMetadata{Type: domain.DocTypeWeb, Title: "Article", Score: 0.4}},
		{
			PageContent: "Le marché pèse 11 milliards en 2023, soit +3,5 % par an.",
			Metadata:    domain.DocumentMetadata{Type: domain.DocTypeSector, Title: "Étude", Subsector: "Boulangerie", Score: 0.9},
		},
	}
	out := FormatContext(docs, 10)

	first := strings.Index(out, "=== Source 1: [Document Sectoriel: Étude - Boulangerie] ===\nInformations clés: ")
	second := strings.Index(out, "=== Source 2: [Source Web: Article] ===\n")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	assert.Contains(t, out[:second], "3,5 %")
	assert.Contains(t, out[:second], "2023")
	assert.Contains(t, out[:second], "11 milliards")
	assert.True(t, strings.HasSuffix(out, "Actualité\n"))
}

func TestFormatContext_TruncatesAndCaps(t *testing.T) {
	var docs []domain.Document
	for i := 0; i < 12; i++ {
		docs = append(docs, domain.Document{
			PageContent: strings.Repeat("é", 2000),
			Metadata:    domain.DocumentMetadata{Type: domain.DocTypeWeb, Title: fmt.Sprintf("doc %d", i)},
		})
	}

	out := FormatContext(docs, contextLimit(domain.FocusWebSearch))
	assert.Contains(t, out, "=== Source 10:")
	assert.NotContains(t, out, "=== Source 11:")
	assert.Contains(t, out, strings.Repeat("é", 1500)+"...")
	assert.NotContains(t, out, strings.Repeat("é", 1501))

	out = FormatContext(docs, contextLimit(domain.FocusMarketResearch))
	assert.Contains(t, out, "=== Source 5:")
	assert.NotContains(t, out, "=== Source 6:")
}

func TestFormatContent_Whitespace(t *testing.T) {
	assert.Equal(t, "a b c", formatContent("  a\n\n\n\nb    c  "))
	assert.Equal(t, "a\nb", formatContent("a\nb"))
	assert.Equal(t, "titre texte", formatContent("titre\n \ttexte"))
}

func TestBuildMessages(t *testing.T) {
	var history []domain.HistoryItem
	for i := 0; i < 25; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.HistoryItem{Role: role, Content: fmt.Sprintf("tour %d", i)})
	}

	msgs := buildMessages(domain.FocusMarketResearch, "CTX", domain.SectorSelection{Sector: "Commerce", Subsector: "Boulangerie"}, "Question ?", history)

	// system, 20 history turns, user
	require.Len(t, msgs, 22)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, systemPrompt(domain.FocusMarketResearch), msgs[0].Content)
	assert.Equal(t, "tour 5", msgs[1].Content)
	assert.Equal(t, "CTX\n\n[Secteur: Commerce / Sous-secteur: Boulangerie]\nQuestion ?", msgs[21].Content)
}
