package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is the readable content of a fetched URL
type Page struct {
	URL     string
	Title   string
	Content string
}

// ErrBlockedAddress is returned for URLs resolving to loopback, private or
// link-local addresses
var ErrBlockedAddress = errors.New("address not allowed")

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher downloads pages linked in user messages. Only public http(s)
// addresses are dialed, redirects included.
type Fetcher struct {
	client       *http.Client
	maxBytes     int64
	allowPrivate bool
}

// NewFetcher creates a page fetcher
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	f := &Fetcher{maxBytes: maxBytes}

	dialer := &net.Dialer{Timeout: timeout, Control: f.checkAddress}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	f.client = &http.Client{Timeout: timeout, Transport: transport}
	return f
}

// checkAddress runs before each connection, once the host is resolved
func (f *Fetcher) checkAddress(network, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%s: %w", address, ErrBlockedAddress)
	}
	if blocked(addr) {
		return fmt.Errorf("%s: %w", address, ErrBlockedAddress)
	}
	return nil
}

func blocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		sharedAddressSpace.Contains(addr)
}

// Fetch downloads url and extracts its title and text
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := checkScheme(url); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; X-me/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	title, text, err := ExtractHTML(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if title == "" {
		title = url
	}
	return &Page{URL: url, Title: title, Content: text}, nil
}

func checkScheme(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("fetch %s: scheme %q: %w", raw, u.Scheme, ErrBlockedAddress)
	}
	return nil
}

// ExtractHTML returns the title and visible text of an HTML document
func ExtractHTML(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}
	doc.Find("script, style, noscript, nav, footer, svg").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return title, text, nil
}
