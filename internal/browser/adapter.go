package browser

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/selectors"
	"github.com/jonathan/job-applier/internal/types"
)

// Outcome is the result of folding an interaction over a selector chain:
// either Matched with the winning selector, or NoMatch.
type Outcome struct {
	selector string
	matched  bool
}

// Matched builds a successful outcome
func Matched(selector string) Outcome {
	return Outcome{selector: selector, matched: true}
}

// NoMatch is the outcome when no selector in the chain succeeded
var NoMatch = Outcome{}

// OK reports whether any selector succeeded
func (o Outcome) OK() bool { return o.matched }

// Selector returns the winning selector, or an empty string for NoMatch
func (o Outcome) Selector() string { return o.selector }

// Adapter is a thin facade over a Driver
type Adapter struct {
	driver Driver
	logger *zap.Logger
}

// NewAdapter wraps a driver. A nil logger disables adapter logging.
func NewAdapter(driver Driver, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{driver: driver, logger: logger}
}

// TryChain attempts act on each selector in order. A selector is attempted only
// if the driver reports it present; absence and interaction faults both mean
// "try the next one". The first success ends the fold.
func (a *Adapter) TryChain(ctx context.Context, op string, chain selectors.Chain, act func(selector string) error) Outcome {
	for _, selector := range chain {
		present, err := a.driver.Present(ctx, selector)
		if err != nil {
			a.logger.Debug("presence check failed", zap.String("op", op), zap.String("selector", selector), zap.Error(err))
			continue
		}
		if !present {
			continue
		}
		if act != nil {
			if err := act(selector); err != nil {
				a.logger.Debug("interaction failed", zap.String("op", op), zap.String("selector", selector), zap.Error(err))
				continue
			}
		}
		a.logger.Debug("selector matched", zap.String("op", op), zap.String("selector", selector))
		return Matched(selector)
	}
	return NoMatch
}

// PresentAny returns the first selector in the chain that is present
func (a *Adapter) PresentAny(ctx context.Context, chain selectors.Chain) Outcome {
	return a.TryChain(ctx, "present", chain, nil)
}

// TypeFirst types text into the first available element in the chain
func (a *Adapter) TypeFirst(ctx context.Context, chain selectors.Chain, text string) Outcome {
	return a.TryChain(ctx, "type", chain, func(selector string) error {
		return a.driver.Type(ctx, selector, text)
	})
}

// ClickFirst clicks the first available element in the chain
func (a *Adapter) ClickFirst(ctx context.Context, chain selectors.Chain) Outcome {
	return a.TryChain(ctx, "click", chain, func(selector string) error {
		return a.driver.Click(ctx, selector)
	})
}

// SelectFirst selects a dropdown option on the first available element in the chain
func (a *Adapter) SelectFirst(ctx context.Context, chain selectors.Chain, value string) Outcome {
	return a.TryChain(ctx, "select", chain, func(selector string) error {
		return a.driver.Select(ctx, selector, value)
	})
}

// UploadFirst uploads a file through the first available file input in the chain
func (a *Adapter) UploadFirst(ctx context.Context, chain selectors.Chain, path string) Outcome {
	return a.TryChain(ctx, "upload", chain, func(selector string) error {
		return a.driver.Upload(ctx, selector, path)
	})
}

// discoverScript enumerates form controls with their associated label text
const discoverScript = `JSON.stringify(Array.from(document.querySelectorAll('input,textarea,select')).map(e=>({` +
	`tag:e.tagName,type:e.type||'',name:e.name||'',id:e.id||'',` +
	`label:(e.labels&&e.labels[0])?e.labels[0].textContent.trim():''` +
	`})))`

// DiscoverFields enumerates the page's input, textarea and select elements.
// The result is diagnostic only; any fault degrades to an empty list.
func (a *Adapter) DiscoverFields(ctx context.Context) []types.FormField {
	raw, err := a.driver.Evaluate(ctx, discoverScript)
	if err != nil {
		a.logger.Debug("field discovery failed", zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}

	var fields []types.FormField
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		a.logger.Debug("field discovery returned malformed JSON", zap.Error(err))
		return nil
	}
	return fields
}

// Init opens the browser session
func (a *Adapter) Init(ctx context.Context, opts InitOptions) error {
	return a.driver.Init(ctx, opts)
}

// SetTimeout bounds each driver wait
func (a *Adapter) SetTimeout(timeout time.Duration) {
	a.driver.SetTimeout(timeout)
}

// Navigate loads url in the session
func (a *Adapter) Navigate(ctx context.Context, url string) error {
	return a.driver.Navigate(ctx, url)
}

// CurrentURL returns the session's current location
func (a *Adapter) CurrentURL(ctx context.Context) (string, error) {
	return a.driver.CurrentURL(ctx)
}

// PressEnter sends a keyboard Enter to the focused element
func (a *Adapter) PressEnter(ctx context.Context) error {
	return a.driver.Keyboard(ctx, KeyEnter)
}

// Evaluate runs a script and returns its string result
func (a *Adapter) Evaluate(ctx context.Context, script string) (string, error) {
	return a.driver.Evaluate(ctx, script)
}

// ReadText returns the rendered text of target
func (a *Adapter) ReadText(ctx context.Context, target string) (string, error) {
	return a.driver.ReadText(ctx, target)
}

// Screenshot captures the full page to path
func (a *Adapter) Screenshot(ctx context.Context, path string) error {
	return a.driver.Screenshot(ctx, PageTarget, path)
}

// Wait suspends for d
func (a *Adapter) Wait(ctx context.Context, d time.Duration) error {
	return a.driver.Wait(ctx, d)
}

// Close ends the browser session
func (a *Adapter) Close() error {
	return a.driver.Close()
}
