package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearxng_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "fr", r.URL.Query().Get("language"))
		assert.Equal(t, "bing,google", r.URL.Query().Get("engines"))
		assert.Equal(t, "boulangerie", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"results":[
			{"title":"A","url":"https://a.fr","content":"aa"},
			{"title":"no url"},
			{"title":"B","url":"https://b.fr","content":"bb"},
			{"title":"C","url":"https://c.fr","content":"cc"}]}`)
	}))
	defer srv.Close()

	s := NewSearxng(Options{BaseURL: srv.URL + "/", Engines: []string{"bing", "google"}, Language: "fr", MaxResults: 2})
	results, err := s.Search(context.Background(), "boulangerie")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://a.fr", results[0].URL)
	assert.Equal(t, "bb", results[1].Content)
}

func TestSearxng_Images(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "images", r.URL.Query().Get("categories"))
		fmt.Fprint(w, `{"results":[{"title":"img","url":"https://a.fr","img_src":"https://a.fr/i.png"},{"title":"x","url":"https://b.fr"}]}`)
	}))
	defer srv.Close()

	images, err := NewSearxng(Options{BaseURL: srv.URL}).Images(context.Background(), "pain")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "https://a.fr/i.png", images[0].ImgSrc)
}

func TestSearxng_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewSearxng(Options{BaseURL: srv.URL}).Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestSerper_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "caviste", body["q"])
		assert.Equal(t, "fr", body["gl"])

		switch r.URL.Path {
		case "/search":
			fmt.Fprint(w, `{"organic":[{"title":"A","link":"https://a.fr","snippet":"aa"}]}`)
		case "/images":
			fmt.Fprint(w, `{"images":[{"title":"I","imageUrl":"https://a.fr/i.jpg","link":"https://a.fr"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewSerper(Options{BaseURL: srv.URL, APIKey: "key", Language: "fr", Timeout: time.Second})
	results, err := s.Search(context.Background(), "caviste")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aa", results[0].Content)

	images, err := s.Images(context.Background(), "caviste")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "I", images[0].Title)
}

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title> Guide </title><style>p{}</style></head>
			<body><nav>menu</nav><p>Ouvrir   une
			boutique</p><script>alert(1)</script></body></html>`)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 0)
	f.allowPrivate = true
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Guide", page.Title)
	assert.Equal(t, "Ouvrir une boutique", page.Content)
}

func TestFetcher_BlocksPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>secret</body></html>`)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 0)
	for _, u := range []string{
		srv.URL,
		"http://localhost:1/",
		"http://[::1]:1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.1:1/",
		"file:///etc/passwd",
	} {
		_, err := f.Fetch(context.Background(), u)
		assert.True(t, errors.Is(err, ErrBlockedAddress), "%s: %v", u, err)
	}
}

func TestBlocked(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":        true,
		"::1":              true,
		"10.1.2.3":         true,
		"172.16.0.1":       true,
		"192.168.1.1":      true,
		"169.254.169.254":  true,
		"fe80::1":          true,
		"fc00::1":          true,
		"100.64.0.1":       true,
		"0.0.0.0":          true,
		"::ffff:127.0.0.1": true,
		"224.0.0.1":        true,
		"93.184.216.34":    false,
		"2606:4700::1111":  false,
	}
	for ip, want := range tests {
		assert.Equal(t, want, blocked(netip.MustParseAddr(ip)), ip)
	}
}

func TestDisabled(t *testing.T) {
	var s Searcher = Disabled{}
	results, err := s.Search(context.Background(), "q")
	assert.NoError(t, err)
	assert.Empty(t, results)
}
