package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/tidwall/gjson"
)

// Searxng queries a SearxNG instance through its JSON API
type Searxng struct {
	opts   Options
	client *http.Client
}

// NewSearxng creates a SearxNG backend
func NewSearxng(opts Options) *Searxng {
	return &Searxng{opts: opts, client: opts.httpClient()}
}

// Search runs a web search
func (s *Searxng) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := s.get(ctx, query, s.opts.Engines, "")
	if err != nil {
		return nil, err
	}

	results := []Result{}
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		link := r.Get("url").String()
		if link == "" {
			return true
		}
		results = append(results, Result{
			Title:   r.Get("title").String(),
			URL:     link,
			Content: r.Get("content").String(),
			ImgSrc:  r.Get("img_src").String(),
		})
		return s.opts.more(len(results))
	})
	return results, nil
}

// Images runs an image search
func (s *Searxng) Images(ctx context.Context, query string) ([]domain.Image, error) {
	body, err := s.get(ctx, query, s.opts.ImageEngines, "images")
	if err != nil {
		return nil, err
	}

	images := []domain.Image{}
	gjson.GetBytes(body, "results").ForEach(func(_, r gjson.Result) bool {
		src := r.Get("img_src").String()
		link := r.Get("url").String()
		if src == "" || link == "" {
			return true
		}
		images = append(images, domain.Image{ImgSrc: src, URL: link, Title: r.Get("title").String()})
		return s.opts.more(len(images))
	})
	return images, nil
}

func (s *Searxng) get(ctx context.Context, query string, engines []string, category string) ([]byte, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if s.opts.Language != "" {
		params.Set("language", s.opts.Language)
	}
	if len(engines) > 0 {
		params.Set("engines", strings.Join(engines, ","))
	}
	if category != "" {
		params.Set("categories", category)
	}

	endpoint := strings.TrimRight(s.opts.BaseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("searxng: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng: status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("searxng: invalid json response")
	}
	return body, nil
}
