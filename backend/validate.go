package backend

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Platform groups the hosts served by one upstream site.
type Platform struct {
	Tag     string
	Domains []string
}

// supportedPlatforms is the allow-list of sites the bot fetches from.
// A host matches a domain when it equals it or is a subdomain of it.
var supportedPlatforms = []Platform{
	{Tag: "youtube", Domains: []string{"youtube.com", "youtu.be"}},
	{Tag: "tiktok", Domains: []string{"tiktok.com"}},
	{Tag: "instagram", Domains: []string{"instagram.com"}},
	{Tag: "twitter", Domains: []string{"twitter.com", "x.com"}},
	{Tag: "vimeo", Domains: []string{"vimeo.com"}},
	{Tag: "soundcloud", Domains: []string{"soundcloud.com"}},
	{Tag: "reddit", Domains: []string{"reddit.com", "redd.it"}},
	{Tag: "facebook", Domains: []string{"facebook.com", "fb.watch"}},
	{Tag: "twitch", Domains: []string{"twitch.tv"}},
	{Tag: "dailymotion", Domains: []string{"dailymotion.com"}},
	{Tag: "vk", Domains: []string{"vk.com"}},
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// hostMatches reports whether host is domain or one of its subdomains.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// PlatformForHost returns the platform tag for host, or "" if it is not supported.
func PlatformForHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, p := range supportedPlatforms {
		for _, d := range p.Domains {
			if hostMatches(host, d) {
				return p.Tag
			}
		}
	}
	return ""
}

// ValidateMediaURL checks that rawURL is an http(s) URL on a supported platform.
func ValidateMediaURL(rawURL string) error {
	if len(rawURL) > 2048 {
		return fmt.Errorf("URL exceeds maximum length of 2048 characters")
	}

	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use http or https")
	}

	if PlatformForHost(u.Hostname()) == "" {
		return fmt.Errorf("unsupported platform %q", u.Hostname())
	}
	return nil
}

// ExtractURL returns the first URL in text that belongs to a supported platform,
// or "" when there is none.
func ExtractURL(text string) string {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?)]}")
		if ValidateMediaURL(candidate) == nil {
			return candidate
		}
	}
	return ""
}

// containsAnyURL reports whether text holds something that looks like a link.
func containsAnyURL(text string) bool {
	return urlPattern.MatchString(text)
}
