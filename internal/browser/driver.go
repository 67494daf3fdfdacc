// Package browser provides the interaction adapter over a browser-automation driver.
//
// The adapter expresses every field-filling and control-clicking operation as a
// try-first-available fold over a selector chain, so a single broken selector
// never aborts a run.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp/kb"
)

// PageTarget addresses the whole rendered page for ReadText and Screenshot
const PageTarget = "page"

// ErrUnsupportedBrowser is returned by Driver.Init when the requested browser
// cannot be honored. Callers may retry without a browser preference.
var ErrUnsupportedBrowser = errors.New("unsupported browser")

// InitOptions configures a browser session
type InitOptions struct {
	Headless bool
	// Browser is one of chrome, chromium, edge; empty means the driver default
	Browser string
}

// Driver is the browser-automation capability consumed by the adapter.
// Every method blocks until the driver responds or its own timeout elapses.
type Driver interface {
	Init(ctx context.Context, opts InitOptions) error
	SetTimeout(timeout time.Duration)
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Present(ctx context.Context, selector string) (bool, error)
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Select(ctx context.Context, selector, value string) error
	Upload(ctx context.Context, selector, path string) error
	Keyboard(ctx context.Context, keys string) error
	Evaluate(ctx context.Context, script string) (string, error)
	ReadText(ctx context.Context, target string) (string, error)
	Screenshot(ctx context.Context, target, path string) error
	Wait(ctx context.Context, d time.Duration) error
	Close() error
}

// KeyEnter is the key sequence for a keyboard Enter press
const KeyEnter = kb.Enter
