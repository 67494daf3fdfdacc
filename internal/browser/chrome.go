package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each driver action until SetTimeout is called
const DefaultTimeout = 30 * time.Second

// browserBinaries lists candidate executables per browser name.
// Chrome uses chromedp's own discovery.
var browserBinaries = map[string][]string{
	"chromium": {"chromium", "chromium-browser"},
	"edge":     {"microsoft-edge", "microsoft-edge-stable", "msedge"},
}

// ChromeDriver is a Driver backed by a chromedp-controlled Chromium-family browser
type ChromeDriver struct {
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	browserCtx  context.Context
	timeout     time.Duration
}

// NewChromeDriver returns an uninitialized driver; call Init before use
func NewChromeDriver(logger *zap.Logger) *ChromeDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeDriver{logger: logger, timeout: DefaultTimeout}
}

// resolveExecPath maps a browser name to an executable, or ErrUnsupportedBrowser
func resolveExecPath(name string) (string, error) {
	switch name {
	case "", "chrome":
		return "", nil
	}
	candidates, ok := browserBinaries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedBrowser, name)
	}
	for _, bin := range candidates {
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s not installed", ErrUnsupportedBrowser, name)
}

// Init starts the browser process
func (d *ChromeDriver) Init(ctx context.Context, opts InitOptions) error {
	execPath, err := resolveExecPath(opts.Browser)
	if err != nil {
		return err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	// An empty Run launches the browser so startup faults surface here
	if err := chromedp.Run(browserCtx); err != nil {
		ctxCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	d.mu.Lock()
	d.allocCancel = allocCancel
	d.ctxCancel = ctxCancel
	d.browserCtx = browserCtx
	d.mu.Unlock()

	d.logger.Debug("browser started",
		zap.Bool("headless", opts.Headless),
		zap.String("browser", opts.Browser),
		zap.String("exec_path", execPath))
	return nil
}

// SetTimeout bounds each subsequent action
func (d *ChromeDriver) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	d.mu.Lock()
	d.timeout = timeout
	d.mu.Unlock()
}

var errNotStarted = errors.New("browser session not started")

func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	browserCtx, timeout := d.browserCtx, d.timeout
	d.mu.Unlock()
	if browserCtx == nil {
		return errNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	// Propagate caller cancellation into the browser-scoped context
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Present checks for a matching element without waiting for one to appear
func (d *ChromeDriver) Present(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var found bool
	expr := fmt.Sprintf("document.querySelector(%s) !== null", quoted)
	if err := d.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (d *ChromeDriver) Type(ctx context.Context, selector, text string) error {
	return d.run(ctx,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Select sets a dropdown value and fires the change event page scripts listen for
func (d *ChromeDriver) Select(ctx context.Context, selector, value string) error {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	var ok bool
	notify := fmt.Sprintf(
		`(function(){const e=document.querySelector(%s);if(!e)return false;e.dispatchEvent(new Event('change',{bubbles:true}));return true;})()`,
		quoted)
	return d.run(ctx,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(notify, &ok),
	)
}

func (d *ChromeDriver) Upload(ctx context.Context, selector, path string) error {
	return d.run(ctx, chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery))
}

func (d *ChromeDriver) Keyboard(ctx context.Context, keys string) error {
	return d.run(ctx, chromedp.KeyEvent(keys))
}

// Evaluate runs a script whose completion value is a string
func (d *ChromeDriver) Evaluate(ctx context.Context, script string) (string, error) {
	var out string
	if err := d.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return "", err
	}
	return out, nil
}

func (d *ChromeDriver) ReadText(ctx context.Context, target string) (string, error) {
	var text string
	var action chromedp.Action
	if target == PageTarget {
		action = chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)
	} else {
		action = chromedp.Text(target, &text, chromedp.ByQuery)
	}
	if err := d.run(ctx, action); err != nil {
		return "", err
	}
	return text, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context, target, path string) error {
	var buf []byte
	var action chromedp.Action
	if target == PageTarget {
		action = chromedp.FullScreenshot(&buf, 90)
	} else {
		action = chromedp.Screenshot(target, &buf, chromedp.ByQuery)
	}
	if err := d.run(ctx, action); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Wait sleeps for d or until ctx is done
func (d *ChromeDriver) Wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close shuts the browser down. Safe to call more than once.
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	browserCtx, ctxCancel, allocCancel := d.browserCtx, d.ctxCancel, d.allocCancel
	d.browserCtx, d.ctxCancel, d.allocCancel = nil, nil, nil
	d.mu.Unlock()

	if browserCtx == nil {
		return nil
	}

	err := chromedp.Cancel(browserCtx)
	ctxCancel()
	allocCancel()
	return err
}
