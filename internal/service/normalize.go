package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
)

const (
	maxSourceContent = 1000
	maxSearchText    = 200

	faviconURL = "https://s2.googleusercontent.com/s2/favicons?domain_url="
)

// NormalizeSources converts retrieved documents into the sources shown by the
// chat UI
func NormalizeSources(docs []domain.Document) []domain.Source {
	sources := make([]domain.Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, NormalizeSource(d))
	}
	return sources
}

// NormalizeSource converts one document
func NormalizeSource(d domain.Document) domain.Source {
	md := d.Metadata
	page := md.PageNumber
	if page < 1 {
		page = 1
	}
	docType := md.Type
	if docType == "" {
		docType = domain.DocTypeWeb
	}
	content := truncateRunes(d.PageContent, maxSourceContent)

	out := domain.SourceMetadata{
		Title:             md.Title,
		Type:              docType,
		Source:            md.Source,
		PageNumber:        page,
		Page:              page,
		ExpertData:        md.Expert,
		IllustrationImage: md.IllustrationImage,
		ImageTitle:        md.ImageTitle,
		LinkText:          "Voir la source",
		FileID:            md.FileID,
		Score:             md.Score,
	}

	switch docType {
	case domain.DocTypeUploaded:
		fileID := md.FileID
		if fileID == "" {
			fileID = md.Source
		}
		out.FileID = fileID
		out.Source = fileID
		out.URL = fmt.Sprintf("/api/uploads/%s/content?page=%d", fileID, page)
		if md.Title != "" {
			out.Title = fmt.Sprintf("%s - Page %d", md.Title, page)
		}
		out.DisplayDomain = "Document local"
		out.LinkText = "Voir le document"
		out.IsFile = true
	case domain.DocTypeExpert:
		out.URL = md.URL
		if md.Expert != nil {
			if md.Expert.URL != "" {
				out.URL = md.Expert.URL
			}
			out.ExpertName = md.Expert.FullName()
		}
	case domain.DocTypeWeb, domain.DocTypeLink:
		out.URL = md.URL
		if out.Source == "" {
			out.Source = "web"
		}
		out.DisplayDomain = displayDomain(md.URL)
		out.Favicon = faviconURL + md.URL
		out.LinkText = "Voir la page"
	default:
		out.URL = md.URL
	}

	searchText := md.SearchText
	if searchText == "" {
		searchText = content
	}
	out.SearchText = truncateRunes(strings.Join(strings.Fields(searchText), " "), maxSearchText)

	return domain.Source{PageContent: content, Metadata: out}
}

// displayDomain returns the host of rawURL without a leading www.
func displayDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
