package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Serper queries the serper.dev Google search API
type Serper struct {
	opts   Options
	client *http.Client
}

// NewSerper creates a Serper backend
func NewSerper(opts Options) *Serper {
	return &Serper{opts: opts, client: opts.httpClient()}
}

// Search runs a web search
func (s *Serper) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := s.post(ctx, "/search", query)
	if err != nil {
		return nil, err
	}

	results := []Result{}
	gjson.GetBytes(body, "organic").ForEach(func(_, r gjson.Result) bool {
		link := r.Get("link").String()
		if link == "" {
			return true
		}
		results = append(results, Result{
			Title:   r.Get("title").String(),
			URL:     link,
			Content: r.Get("snippet").String(),
			ImgSrc:  r.Get("imageUrl").String(),
		})
		return s.opts.more(len(results))
	})
	return results, nil
}

// Images runs an image search
func (s *Serper) Images(ctx context.Context, query string) ([]domain.Image, error) {
	body, err := s.post(ctx, "/images", query)
	if err != nil {
		return nil, err
	}

	images := []domain.Image{}
	gjson.GetBytes(body, "images").ForEach(func(_, r gjson.Result) bool {
		src := r.Get("imageUrl").String()
		link := r.Get("link").String()
		if src == "" || link == "" {
			return true
		}
		images = append(images, domain.Image{ImgSrc: src, URL: link, Title: r.Get("title").String()})
		return s.opts.more(len(images))
	})
	return images, nil
}

func (s *Serper) post(ctx context.Context, path, query string) ([]byte, error) {
	payload, _ := sjson.SetBytes([]byte(`{}`), "q", query)
	if s.opts.Language != "" {
		payload, _ = sjson.SetBytes(payload, "gl", s.opts.Language)
		payload, _ = sjson.SetBytes(payload, "hl", s.opts.Language)
	}
	if s.opts.MaxResults > 0 {
		payload, _ = sjson.SetBytes(payload, "num", s.opts.MaxResults)
	}

	endpoint := strings.TrimRight(s.opts.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.opts.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("serper: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: status %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}
	return body, nil
}
