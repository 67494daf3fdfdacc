package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// DefaultPerMinute is the default request budget per client for routes without a rule
const DefaultPerMinute = 30

// Rule bounds the requests a client may send to one route. A Path ending in "/"
// covers every path below it.
type Rule struct {
	Method string
	Path   string
	Limit  int           // requests per Window
	Window time.Duration
	Burst  int // bucket capacity; Limit when zero
}

func (r Rule) matches(method, path string) bool {
	if r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

// key names the bucket shared by every request the rule covers
func (r Rule) key() string {
	return r.Method + " " + r.Path
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTTL is how long an unused bucket is kept
	IdleTTL   time.Duration
	Whitelist map[string]bool
	Blacklist map[string]bool
	Rules     []Rule
	// Exempt routes are never limited
	Exempt []Rule
}

// NewConfig builds the limiter configuration. perMinute bounds every route
// without its own rule; a non-positive value disables rate limiting.
func NewConfig(perMinute int) *Config {
	if perMinute <= 0 {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    perMinute,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		Rules:           DefaultRules(),
		Exempt: []Rule{
			{Method: http.MethodGet, Path: "/health"},
			{Method: http.MethodGet, Path: "/metrics"},
		},
	}
}

// DefaultRules returns the per-route limits of the API. Browser runs get the
// tightest budget, LLM-backed field maps a looser one.
func DefaultRules() []Rule {
	return []Rule{
		{Method: http.MethodPost, Path: "/applications", Limit: 20, Window: time.Hour, Burst: 3},
		{Method: http.MethodPost, Path: "/applications/stream", Limit: 20, Window: time.Hour, Burst: 3},
		{Method: http.MethodPost, Path: "/field-maps", Limit: 60, Window: time.Hour, Burst: 5},
	}
}

// ruleFor returns the rule covering a request. ok is false for exempt routes.
// Exact paths win over prefixes; unmatched requests get the default budget.
func (c *Config) ruleFor(method, path string) (rule Rule, ok bool) {
	for _, r := range c.Exempt {
		if r.matches(method, path) {
			return Rule{}, false
		}
	}

	var prefix *Rule
	for i := range c.Rules {
		r := &c.Rules[i]
		if !r.matches(method, path) {
			continue
		}
		if r.Path == path {
			return *r, true
		}
		if prefix == nil || len(r.Path) > len(prefix.Path) {
			prefix = r
		}
	}
	if prefix != nil {
		return *prefix, true
	}

	return Rule{
		Method: method,
		Path:   "*",
		Limit:  c.DefaultLimit,
		Window: c.DefaultWindow,
		Burst:  c.DefaultLimit,
	}, true
}
