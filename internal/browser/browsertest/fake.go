// Package browsertest provides an instrumented in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonathan/job-applier/internal/browser"
)

// ErrForced is the default fault injected by Fail
var ErrForced = errors.New("forced failure")

// Call records one driver invocation
type Call struct {
	Op       string
	Selector string
	Arg      string
}

func (c Call) String() string {
	if c.Arg == "" {
		return fmt.Sprintf("%s(%s)", c.Op, c.Selector)
	}
	return fmt.Sprintf("%s(%s, %s)", c.Op, c.Selector, c.Arg)
}

// Driver is a scriptable browser.Driver. Selectors are present only if
// registered with SetPresent; operations fail only if registered with Fail.
// The zero value is not usable; use New.
type Driver struct {
	mu sync.Mutex

	present map[string]bool
	faults  map[string]error
	calls   []Call

	// InitErr is returned by Init while the requested browser is non-empty
	InitErr error
	// InitErrAny is returned by every Init call
	InitErrAny  error
	NavigateErr error
	URL         string
	URLErr      error
	PageText    string
	ReadTextErr error
	EvaluateOut string
	EvaluateErr error
	KeyboardErr error
	// ScreenshotErr fails screenshots without writing a file
	ScreenshotErr error
	CloseErr      error

	InitOptions []browser.InitOptions
	Timeout     time.Duration
	Waits       []time.Duration
	Closed      int
	Uploaded    map[string]string
}

// New returns an empty fake driver
func New() *Driver {
	return &Driver{
		present:  map[string]bool{},
		faults:   map[string]error{},
		Uploaded: map[string]string{},
	}
}

// SetPresent marks selectors as present on the page
func (d *Driver) SetPresent(selectors ...string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range selectors {
		d.present[s] = true
	}
	return d
}

// Fail makes op on selector return err; a nil err uses ErrForced.
// Op is one of present, type, click, select, upload.
func (d *Driver) Fail(op, selector string, err error) *Driver {
	if err == nil {
		err = ErrForced
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op+"|"+selector] = err
	return d
}

// Calls returns a copy of every recorded invocation in order
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsFor returns recorded invocations of op
func (d *Driver) CallsFor(op string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *Driver) record(op, selector, arg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: op, Selector: selector, Arg: arg})
	return d.faults[op+"|"+selector]
}

func (d *Driver) Init(_ context.Context, opts browser.InitOptions) error {
	d.record("init", "", opts.Browser)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.InitOptions = append(d.InitOptions, opts)
	if d.InitErrAny != nil {
		return d.InitErrAny
	}
	if opts.Browser != "" && d.InitErr != nil {
		return d.InitErr
	}
	return nil
}

func (d *Driver) SetTimeout(timeout time.Duration) {
	d.record("timeout", "", timeout.String())
	d.mu.Lock()
	d.Timeout = timeout
	d.mu.Unlock()
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.record("navigate", url, "")
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	if d.URL == "" {
		d.URL = url
	}
	return nil
}

func (d *Driver) CurrentURL(context.Context) (string, error) {
	d.record("url", "", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URL, d.URLErr
}

func (d *Driver) Present(_ context.Context, selector string) (bool, error) {
	if err := d.record("present", selector, ""); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present[selector], nil
}

func (d *Driver) Type(_ context.Context, selector, text string) error {
	return d.record("type", selector, text)
}

func (d *Driver) Click(_ context.Context, selector string) error {
	return d.record("click", selector, "")
}

func (d *Driver) Select(_ context.Context, selector, value string) error {
	return d.record("select", selector, value)
}

func (d *Driver) Upload(_ context.Context, selector, path string) error {
	if err := d.record("upload", selector, path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.Uploaded[selector] = string(data)
	d.mu.Unlock()
	return nil
}

func (d *Driver) Keyboard(_ context.Context, keys string) error {
	d.record("keyboard", "", keys)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.KeyboardErr
}

func (d *Driver) Evaluate(_ context.Context, script string) (string, error) {
	d.record("evaluate", "", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.EvaluateOut, d.EvaluateErr
}

func (d *Driver) ReadText(_ context.Context, target string) (string, error) {
	d.record("read", target, "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.PageText, d.ReadTextErr
}

// Screenshot writes a placeholder file at path
func (d *Driver) Screenshot(_ context.Context, target, path string) error {
	d.record("screenshot", target, path)
	d.mu.Lock()
	err := d.ScreenshotErr
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

// Wait records the duration without sleeping
func (d *Driver) Wait(_ context.Context, dur time.Duration) error {
	d.record("wait", "", dur.String())
	d.mu.Lock()
	d.Waits = append(d.Waits, dur)
	d.mu.Unlock()
	return nil
}

func (d *Driver) Close() error {
	d.record("close", "", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed++
	return d.CloseErr
}

var _ browser.Driver = (*Driver)(nil)
