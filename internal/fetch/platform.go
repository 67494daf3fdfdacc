package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known applicant tracking system.
type Platform string

// Recognized platforms
const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
	PlatformUnknown    Platform = "unknown"
)

// profile is what the form reducer knows about one platform
type profile struct {
	domains []string // registrable domains serving the platform's job pages
	forms   []string // application form containers, most specific first
	noise   []string // sections never filled automatically
}

var profiles = map[Platform]profile{
	PlatformGreenhouse: {
		domains: []string{"greenhouse.io"},
		forms:   []string{"#application_form", "#application-form", ".application--form", "form#application"},
		noise:   []string{".voluntary-self-id", ".voluntary-self-id-wrapper", "#usa_self_id_section"},
	},
	PlatformLever: {
		domains: []string{"lever.co"},
		forms:   []string{"form.application-form", ".application-form", "#application-form"},
		noise:   []string{".eeo-survey"},
	},
	PlatformWorkday: {
		domains: []string{"workday.com", "myworkdayjobs.com"},
		forms:   []string{"[data-automation-id='applyFlowPage']", "[data-automation-id='applicationForm']"},
		noise: []string{
			"[data-automation-id='selfIdentifiedDisabilityPage']",
			"[data-automation-id='voluntaryDisclosuresPage']",
		},
	},
	PlatformAshby: {
		domains: []string{"ashbyhq.com"},
		forms:   []string{".ashby-application-form-container", "form"},
	},
}

// commonNoise applies on every platform: disclosures, share widgets, consent banners
var commonNoise = []string{
	".voluntary-disclosure", ".eeo-statement", ".eeo-section", "[data-testid='eeo']",
	".legal-disclosure", ".self-identification",
	".social-share", ".share-buttons",
	".cookie-banner", ".cookie-consent", ".gdpr-notice",
}

// onDomain reports whether host is domain or one of its subdomains
func onDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// DetectPlatform identifies the ATS from a job URL.
func DetectPlatform(rawURL string) Platform {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for platform, p := range profiles {
		for _, domain := range p.domains {
			if onDomain(host, domain) {
				return platform
			}
		}
	}
	return PlatformUnknown
}

// PlatformFormSelectors returns selectors for the application form container of a
// platform. Unknown platforms get none, meaning the whole document is scanned.
func PlatformFormSelectors(platform Platform) []string {
	return append([]string(nil), profiles[platform].forms...)
}

// PlatformNoiseSelectors returns sections of an application page whose fields are
// never filled automatically.
func PlatformNoiseSelectors(platform Platform) []string {
	out := make([]string, 0, len(commonNoise)+len(profiles[platform].noise))
	out = append(out, commonNoise...)
	return append(out, profiles[platform].noise...)
}
