// Package fieldmap infers CSS selectors for application form fields with an LLM.
// Its output has the shape of a request's selectorMap and is only ever a hint:
// built-in fallback selectors still run after it.
package fieldmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/fetch"
	"github.com/jonathan/job-applier/internal/llm"
	"github.com/jonathan/job-applier/internal/prompts"
	"github.com/jonathan/job-applier/internal/selectors"
)

const promptFile = "field_mapping.json"

// ErrNoFormMarkup is returned by Markup when a page carries no usable form elements.
var ErrNoFormMarkup = errors.New("no form elements found")

// RenderFunc returns the rendered HTML of a page. It backs pages whose form is
// built client side.
type RenderFunc func(ctx context.Context, url string) (string, error)

// Options configures a Mapper
type Options struct {
	// Fetch controls the plain HTTP fetch; nil uses fetch.DefaultOptions
	Fetch *fetch.Options
	// Render is tried when the fetched page has no form markup; nil disables it
	Render RenderFunc
	// MaxChars bounds the markup sent to the model
	MaxChars int
	// Tier selects the model
	Tier llm.ModelTier
}

// Mapper analyzes job application pages
type Mapper struct {
	client llm.Client
	logger *zap.Logger
	opts   Options
}

// New creates a Mapper. A nil client yields a Mapper whose Analyze always returns
// an empty map.
func New(client llm.Client, logger *zap.Logger, opts Options) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Fetch == nil {
		opts.Fetch = fetch.DefaultOptions()
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = fetch.DefaultMaxFormChars
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierLite
	}
	return &Mapper{client: client, logger: logger, opts: opts}
}

// renderSettle gives client-side forms time to mount after the document is ready
const renderSettle = 2 * time.Second

// outerHTMLScript returns the rendered document
const outerHTMLScript = `document.documentElement.outerHTML`

// BrowserRenderer renders each page in a fresh headless session from newDriver.
// A non-positive timeout keeps the driver's default.
func BrowserRenderer(newDriver func() browser.Driver, timeout time.Duration, logger *zap.Logger) RenderFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, url string) (string, error) {
		driver := newDriver()
		if err := driver.Init(ctx, browser.InitOptions{Headless: true}); err != nil {
			return "", fmt.Errorf("browser rendering failed: %w", err)
		}
		defer func() {
			if err := driver.Close(); err != nil {
				logger.Debug("closing render browser", zap.Error(err))
			}
		}()
		driver.SetTimeout(timeout)

		if err := driver.Navigate(ctx, url); err != nil {
			return "", fmt.Errorf("browser rendering failed: %w", err)
		}
		if err := driver.Wait(ctx, renderSettle); err != nil {
			return "", err
		}
		html, err := driver.Evaluate(ctx, outerHTMLScript)
		if err != nil {
			return "", fmt.Errorf("browser rendering failed: %w", err)
		}
		logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
		return html, nil
	}
}

// DefaultFields returns every logical field the pipeline fills
func DefaultFields() []string {
	fields := make([]string, 0, len(selectors.Fields))
	for _, f := range selectors.Fields {
		fields = append(fields, string(f))
	}
	return fields
}

// Analyze fetches jobURL and asks the model for selectors for each of fieldsNeeded.
// It never fails: any fault is logged and yields an empty map.
func (m *Mapper) Analyze(ctx context.Context, jobURL string, fieldsNeeded []string) map[string][]string {
	if len(fieldsNeeded) == 0 {
		fieldsNeeded = DefaultFields()
	}
	log := m.logger.With(zap.String("url", jobURL))

	if m.client == nil {
		log.Debug("field mapping skipped: no LLM client")
		return map[string][]string{}
	}

	markup, err := m.Markup(ctx, jobURL)
	if err != nil {
		log.Info("field mapping skipped", zap.Error(err))
		return map[string][]string{}
	}

	response, err := m.client.GenerateJSON(ctx, BuildPrompt(markup, fieldsNeeded, fieldDescriptions(log)), m.opts.Tier)
	if err != nil {
		log.Warn("field mapping request failed", zap.Error(err))
		return map[string][]string{}
	}

	mapped, err := ParseSelectorMap(response)
	if err != nil {
		log.Warn("field mapping response rejected", zap.Error(err))
		return map[string][]string{}
	}

	log.Debug("field mapping complete", zap.Int("fields", len(mapped)))
	return mapped
}

// Markup fetches a page and reduces it to form markup, rendering it in a browser
// when the plain fetch yields too little.
func (m *Mapper) Markup(ctx context.Context, jobURL string) (string, error) {
	platform := fetch.DetectPlatform(jobURL)
	reduce := func(html string) (string, error) {
		return fetch.ExtractFormMarkup(html, m.opts.MaxChars,
			fetch.PlatformFormSelectors(platform), fetch.PlatformNoiseSelectors(platform)...)
	}

	var markup string
	page, fetchErr := fetch.URL(ctx, jobURL, m.opts.Fetch)
	if fetchErr == nil {
		reduced, err := reduce(page.HTML)
		if err != nil {
			return "", err
		}
		markup = reduced
	}

	if fetch.ShouldUseBrowser(markup) && m.opts.Render != nil {
		m.logger.Debug("rendering page for form markup",
			zap.String("url", jobURL), zap.String("platform", string(platform)))
		html, err := m.opts.Render(ctx, jobURL)
		if err != nil {
			return "", errors.Join(fetchErr, err)
		}
		if markup, err = reduce(html); err != nil {
			return "", err
		}
	} else if fetchErr != nil {
		return "", fetchErr
	}

	if fetch.ShouldUseBrowser(markup) {
		return "", ErrNoFormMarkup
	}
	return markup, nil
}

// BuildPrompt assembles the model prompt for the given markup and fields.
// descriptions supplies an optional hint per field.
func BuildPrompt(markup string, fields []string, descriptions map[string]string) string {
	p := llm.ObjectPrompt{
		Task: prompts.MustRender(promptFile, "analyze-form", map[string]string{
			"Fields": strings.Join(fields, ", "),
		}),
		Rules: []string{
			"Each value is a list of CSS selectors, most specific first.",
			"Only use selectors that match elements present in the markup.",
		},
		InputLabel: "Form markup",
	}
	for _, field := range fields {
		p.Keys = append(p.Keys, llm.PromptKey{
			Name:  field,
			Shape: `["string"]`,
			Hint:  descriptions[field],
		})
	}
	return p.Render(markup)
}

// decodePrompt is swapped in tests
var decodePrompt = prompts.Decode

// fieldDescriptions loads the per-field hints; without them the prompt still works
func fieldDescriptions(log *zap.Logger) map[string]string {
	descriptions := map[string]string{}
	if err := decodePrompt(promptFile, "field-descriptions", &descriptions); err != nil {
		log.Debug("field descriptions unavailable", zap.Error(err))
	}
	return descriptions
}

// ParseSelectorMap decodes a model response into a selector map. Only values that
// are arrays made entirely of strings survive.
func ParseSelectorMap(response string) (map[string][]string, error) {
	cleaned, err := llm.ExtractJSONObject(response)
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	result := make(map[string][]string, len(parsed))
	for key, value := range parsed {
		items, ok := value.([]any)
		if !ok {
			continue
		}
		chain := make([]string, 0, len(items))
		for _, item := range items {
			s, isString := item.(string)
			if !isString {
				chain = nil
				break
			}
			chain = append(chain, s)
		}
		if chain != nil {
			result[key] = chain
		}
	}
	return result, nil
}

// Merge returns requested plus every inferred entry whose key requested lacks.
// Selectors supplied with a request always win.
func Merge(requested, inferred map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(requested)+len(inferred))
	for key, chain := range requested {
		merged[key] = chain
	}
	for key, chain := range inferred {
		if _, exists := requested[key]; exists || len(chain) == 0 {
			continue
		}
		merged[key] = append([]string(nil), chain...)
	}
	return merged
}
