// Package search queries web search engines and fetches linked pages.
package search

import (
	"context"
	"net/http"
	"time"

	"github.com/aktraiser/X-me/internal/domain"
)

// Result is one web search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	ImgSrc  string `json:"img_src,omitempty"`
}

// Searcher runs web and image searches
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
	Images(ctx context.Context, query string) ([]domain.Image, error)
}

// Options configures a search backend
type Options struct {
	BaseURL      string
	APIKey       string
	Engines      []string
	ImageEngines []string
	Language     string
	MaxResults   int
	Timeout      time.Duration
}

func (o Options) httpClient() *http.Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// more reports whether another result fits under MaxResults
func (o Options) more(n int) bool {
	return o.MaxResults <= 0 || n < o.MaxResults
}

// Disabled is a Searcher that never finds anything
type Disabled struct{}

// Search returns no results
func (Disabled) Search(context.Context, string) ([]Result, error) { return nil, nil }

// Images returns no images
func (Disabled) Images(context.Context, string) ([]domain.Image, error) { return nil, nil }
