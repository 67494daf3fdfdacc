package fieldmap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/job-applier/internal/browser"
	"github.com/jonathan/job-applier/internal/browser/browsertest"
	"github.com/jonathan/job-applier/internal/llm"
)

const formPage = `<html><body>
	<h1>Senior Engineer</h1>
	<form action="/apply">
		<label for="applicant_name">Your name</label>
		<input id="applicant_name" name="applicant_name" type="text">
		<input name="contact_email" type="email">
		<input name="cv_upload" type="file">
		<button class="apply-now">Apply</button>
	</form>
</body></html>`

type fakeClient struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
	tiers    []llm.ModelTier
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	return f.response, f.err
}

func (f *fakeClient) Close() error { return nil }

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyze_MapsFields(t *testing.T) {
	srv := serve(t, http.StatusOK, formPage)
	client := &fakeClient{response: "```json\n" + `{
		"fullName": ["input[name='applicant_name']", "input#applicant_name"],
		"email": ["input[name='contact_email']"],
		"phone": [],
		"resume": "input[name='cv_upload']",
		"submit": ["button.apply-now", 42]
	}` + "\n```"}

	m := New(client, zap.NewNop(), Options{})
	got := m.Analyze(context.Background(), srv.URL, []string{"fullName", "email", "phone", "resume", "submit"})

	assert.Equal(t, map[string][]string{
		"fullName": {"input[name='applicant_name']", "input#applicant_name"},
		"email":    {"input[name='contact_email']"},
		"phone":    {},
	}, got)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "Requested fields: fullName, email, phone, resume, submit.")
	assert.Contains(t, prompt, `"email": ["string"] // the candidate's email address`)
	assert.Contains(t, prompt, `<input name="cv_upload" type="file"/>`)
	assert.NotContains(t, prompt, "Senior Engineer")
	assert.Equal(t, llm.TierLite, client.tiers[0])
}

func TestAnalyze_DefaultsToAllFields(t *testing.T) {
	srv := serve(t, http.StatusOK, formPage)
	client := &fakeClient{response: `{}`}

	got := New(client, nil, Options{}).Analyze(context.Background(), srv.URL, nil)
	assert.Empty(t, got)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "fullName, email, phone, resume, coverLetter, submit")
}

func TestAnalyze_DegradesToEmptyMap(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		client   *fakeClient
		nilModel bool
		called   bool
	}{
		{name: "no client", status: http.StatusOK, body: formPage, nilModel: true},
		{name: "http error", status: http.StatusNotFound, body: formPage, client: &fakeClient{response: `{}`}},
		{name: "no form elements", status: http.StatusOK, body: "<p>closed</p>", client: &fakeClient{response: `{}`}},
		{name: "model error", status: http.StatusOK, body: formPage, client: &fakeClient{err: errors.New("quota")}, called: true},
		{name: "not json", status: http.StatusOK, body: formPage, client: &fakeClient{response: "sorry, no"}, called: true},
		{name: "json array", status: http.StatusOK, body: formPage, client: &fakeClient{response: `["a"]`}, called: true},
		{name: "empty response", status: http.StatusOK, body: formPage, client: &fakeClient{response: ""}, called: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)

			var client llm.Client
			if !tt.nilModel {
				client = tt.client
			}
			got := New(client, zap.NewNop(), Options{}).Analyze(context.Background(), srv.URL, nil)

			assert.NotNil(t, got)
			assert.Empty(t, got)
			if tt.client != nil {
				assert.Equal(t, tt.called, len(tt.client.prompts) == 1)
			}
		})
	}
}

func TestMarkup_RenderFallback(t *testing.T) {
	srv := serve(t, http.StatusOK, `<div id="root"></div>`)

	var rendered []string
	m := New(nil, zap.NewNop(), Options{
		Render: func(_ context.Context, url string) (string, error) {
			rendered = append(rendered, url)
			return formPage, nil
		},
	})

	markup, err := m.Markup(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL}, rendered)
	assert.Contains(t, markup, `name="contact_email"`)
}

func TestMarkup_RenderSkippedWhenFetchSucceeds(t *testing.T) {
	srv := serve(t, http.StatusOK, formPage)

	m := New(nil, zap.NewNop(), Options{
		Render: func(context.Context, string) (string, error) {
			t.Fatal("renderer should not run")
			return "", nil
		},
	})

	_, err := m.Markup(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestMarkup_Errors(t *testing.T) {
	empty := serve(t, http.StatusOK, "<p>nothing</p>")

	_, err := New(nil, nil, Options{}).Markup(context.Background(), empty.URL)
	assert.ErrorIs(t, err, ErrNoFormMarkup)

	renderErr := errors.New("chrome missing")
	_, err = New(nil, nil, Options{
		Render: func(context.Context, string) (string, error) { return "", renderErr },
	}).Markup(context.Background(), empty.URL)
	assert.ErrorIs(t, err, renderErr)

	_, err = New(nil, nil, Options{}).Markup(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestMarkup_RespectsMaxChars(t *testing.T) {
	srv := serve(t, http.StatusOK, formPage)

	markup, err := New(nil, nil, Options{MaxChars: 60}).Markup(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(markup), 60)
}

func TestFieldDescriptions(t *testing.T) {
	descriptions := fieldDescriptions(zap.NewNop())
	assert.Equal(t, "the candidate's email address", descriptions["email"])

	prompt := BuildPrompt("<input name=\"email\"/>", []string{"email"}, descriptions)
	assert.Contains(t, prompt, "the candidate's email address")
}

func TestFieldDescriptions_DecodeFailureIsLogged(t *testing.T) {
	orig := decodePrompt
	t.Cleanup(func() { decodePrompt = orig })
	decodePrompt = func(string, string, any) error { return errors.New("corrupt prompt file") }

	core, logs := observer.New(zap.DebugLevel)
	descriptions := fieldDescriptions(zap.New(core))

	assert.Empty(t, descriptions)
	entries := logs.FilterMessage("field descriptions unavailable").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "corrupt prompt file", entries[0].ContextMap()["error"])

	prompt := BuildPrompt("<input name=\"email\"/>", []string{"email"}, descriptions)
	assert.Contains(t, prompt, `"email"`)
}

func TestParseSelectorMap(t *testing.T) {
	got, err := ParseSelectorMap("```\n{\"email\": [\"#e\"], \"x\": null}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"email": {"#e"}}, got)

	_, err = ParseSelectorMap("null")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	requested := map[string][]string{
		"email":  {"#request-email"},
		"resume": {},
	}
	inferred := map[string][]string{
		"email":    {"#inferred-email"},
		"resume":   {"#inferred-resume"},
		"fullName": {"#inferred-name"},
		"phone":    {},
	}

	merged := Merge(requested, inferred)
	assert.Equal(t, map[string][]string{
		"email":    {"#request-email"},
		"resume":   {},
		"fullName": {"#inferred-name"},
	}, merged)

	merged["fullName"][0] = "changed"
	assert.Equal(t, "#inferred-name", inferred["fullName"][0])

	assert.Empty(t, Merge(nil, nil))
}

func TestBrowserRenderer(t *testing.T) {
	driver := browsertest.New()
	driver.EvaluateOut = formPage

	render := BrowserRenderer(func() browser.Driver { return driver }, 5*time.Second, nil)
	html, err := render(context.Background(), "https://jobs.example.com/apply")
	require.NoError(t, err)
	assert.Equal(t, formPage, html)

	require.Len(t, driver.InitOptions, 1)
	assert.True(t, driver.InitOptions[0].Headless)
	assert.Equal(t, 5*time.Second, driver.Timeout)
	assert.Equal(t, []time.Duration{renderSettle}, driver.Waits)
	assert.Len(t, driver.CallsFor("navigate"), 1)
	assert.Equal(t, 1, driver.Closed)
}

func TestBrowserRenderer_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(d *browsertest.Driver)
		wantClosed int
	}{
		{name: "init", setup: func(d *browsertest.Driver) { d.InitErrAny = errors.New("no chrome") }, wantClosed: 0},
		{name: "navigate", setup: func(d *browsertest.Driver) { d.NavigateErr = errors.New("dns") }, wantClosed: 1},
		{name: "evaluate", setup: func(d *browsertest.Driver) { d.EvaluateErr = errors.New("detached") }, wantClosed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := browsertest.New()
			tt.setup(driver)

			_, err := BrowserRenderer(func() browser.Driver { return driver }, 0, zap.NewNop())(context.Background(), "https://x.test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "browser rendering failed")
			assert.Equal(t, tt.wantClosed, driver.Closed)
		})
	}
}
