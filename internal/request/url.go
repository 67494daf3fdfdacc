package request

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// MaxJobURLLength bounds the accepted jobUrl length
const MaxJobURLLength = 2048

var disallowedHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^localhost$`),
	regexp.MustCompile(`(?i)^localhost\.localdomain$`),
	regexp.MustCompile(`(?i)\.localhost$`),
	regexp.MustCompile(`(?i)\.internal$`),
}

// SanitizeJobURL trims and validates a job URL, rejecting non-http(s) schemes,
// embedded credentials and, unless allowPrivate is set, private or loopback hosts.
func SanitizeJobURL(raw string, allowPrivate bool) (string, error) {
	jobURL := strings.TrimSpace(raw)
	if jobURL == "" {
		return "", fmt.Errorf("jobUrl is required")
	}
	if len(jobURL) > MaxJobURLLength {
		return "", fmt.Errorf("jobUrl exceeds %d characters", MaxJobURLLength)
	}

	parsed, err := url.Parse(jobURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("jobUrl must be an absolute URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("only http and https job URLs are allowed")
	}
	if parsed.User != nil {
		return "", fmt.Errorf("jobUrl must not contain credentials")
	}

	if !allowPrivate && isDisallowedHost(strings.ToLower(parsed.Hostname())) {
		return "", fmt.Errorf("jobUrl resolves to a disallowed host")
	}

	return jobURL, nil
}

func isDisallowedHost(host string) bool {
	if host == "" {
		return true
	}
	for _, pattern := range disallowedHostPatterns {
		if pattern.MatchString(host) {
			return true
		}
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
