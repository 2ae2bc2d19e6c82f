package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"assistant/types"

	"golang.org/x/net/html"
)

// URLLoader fetches a remote document and extracts its text. HTML pages
// are reduced to their visible text; other types go through the registry.
type URLLoader struct {
	registry *Registry
	client   *http.Client
	maxBytes int64
}

func NewURLLoader(registry *Registry, timeout time.Duration, maxBytes int64) *URLLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &URLLoader{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads rawURL. The source of the result is the URL itself.
func (l *URLLoader) Fetch(ctx context.Context, rawURL string) (types.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return types.Document{}, fmt.Errorf("%w: bad url %q", ErrUnsupportedType, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.Document{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return types.Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Document{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	if l.maxBytes > 0 && resp.ContentLength > l.maxBytes {
		return types.Document{}, fmt.Errorf("%w: %s declares %d bytes", ErrTooLarge, rawURL, resp.ContentLength)
	}
	var body io.Reader = resp.Body
	if l.maxBytes > 0 {
		// one byte past the limit tells a full body from an oversized one
		body = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return types.Document{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return types.Document{}, fmt.Errorf("%w: %s is over %d bytes", ErrTooLarge, rawURL, l.maxBytes)
	}

	contentType := baseType(resp.Header.Get("Content-Type"))
	if contentType == MimeHTML || contentType == "application/xhtml+xml" {
		text, err := ExtractHTML(ctx, data)
		if err != nil {
			return types.Document{}, fmt.Errorf("%w from %s: %w", ErrExtract, rawURL, err)
		}
		return types.Document{Text: text, Source: rawURL}, nil
	}

	resolved, err := l.registry.ResolveType(path.Base(u.Path), contentType, data)
	if err != nil {
		return types.Document{}, err
	}
	doc, err := l.registry.Load(ctx, rawURL, resolved, data)
	if err != nil {
		return types.Document{}, err
	}
	doc.Source = rawURL
	return doc, nil
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true, "head": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "blockquote": true,
}

// ExtractHTML returns the visible text of an HTML page.
func ExtractHTML(_ context.Context, data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(root)
	return collapseBlankLines(sb.String()), nil
}
