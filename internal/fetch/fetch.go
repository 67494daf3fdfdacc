// Package fetch provides URL fetching and reduction of HTML to application form markup.
package fetch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent is a desktop Chrome user agent; job boards serve reduced pages to bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultMaxFormChars bounds the form markup handed to the LLM.
const DefaultMaxFormChars = 4000

// maxOwnText caps the text rendered per element.
const maxOwnText = 200

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 5 << 20

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Client    *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// URL retrieves HTML content from a URL.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to read response body",
			Cause:   err,
		}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:     urlStr,
			Message: fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}

	return result, nil
}

// FormElementSelector matches every element that carries form structure.
const FormElementSelector = "form, input, textarea, select, option, label, button, fieldset, legend"

// ExtractFormMarkup parses HTML and returns a compact listing of its form elements
// in document order, one per line. Each element is rendered with its attributes and
// its own text only, so nested containers do not repeat their children. Output stops
// before the first element that would push it past maxChars.
//
// When scopeSelectors are given, the first one that matches limits extraction to
// that subtree. Elements under noiseSelectors are dropped.
func ExtractFormMarkup(htmlStr string, maxChars int, scopeSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxFormChars
	}

	doc.Find("script, style, noscript, template, svg").Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	root := doc.Selection
	for _, selector := range scopeSelectors {
		if scoped := doc.Find(selector); scoped.Length() > 0 {
			root = scoped.First()
			break
		}
	}

	var b strings.Builder
	elements := root.Find(FormElementSelector)
	if goquery.NodeName(root) != "#document" && root.Is(FormElementSelector) {
		elements = root.AddSelection(elements)
	}
	elements.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		line := renderElement(s)
		if b.Len()+len(line)+1 > maxChars {
			return false
		}
		b.WriteString(line)
		b.WriteByte('\n')
		return true
	})

	return strings.TrimSpace(b.String()), nil
}

// renderElement writes a single element with its attributes and direct text.
func renderElement(s *goquery.Selection) string {
	node := s.Get(0)
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(node.Data)
	for _, attr := range node.Attr {
		if attr.Key == "style" || strings.HasPrefix(attr.Key, "on") {
			continue
		}
		fmt.Fprintf(&b, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
	}
	if node.Data == "input" {
		b.WriteString("/>")
		return b.String()
	}
	b.WriteByte('>')

	text := ownText(s)
	if r := []rune(text); len(r) > maxOwnText {
		text = string(r[:maxOwnText])
	}
	b.WriteString(html.EscapeString(text))
	fmt.Fprintf(&b, "</%s>", node.Data)
	return b.String()
}

// ownText returns the element's direct text children with whitespace collapsed.
func ownText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.Join(strings.Fields(c.Text()), " "); t != "" {
				parts = append(parts, t)
			}
		}
	})
	return strings.Join(parts, " ")
}

// MinFormMarkupLength is the shortest form markup worth analyzing. Shorter output
// from a plain HTTP fetch usually means the form is rendered client side.
const MinFormMarkupLength = 20

// ShouldUseBrowser reports whether the form markup is too short to be useful.
func ShouldUseBrowser(markup string) bool {
	return len(strings.TrimSpace(markup)) < MinFormMarkupLength
}
