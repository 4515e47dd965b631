package utils

import (
	"fmt"
	"net/url"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateBaseURL checks that s is an absolute http(s) URL without a query
func ValidateBaseURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https: %s", s)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", s)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("URL must not carry a query: %s", s)
	}
	return nil
}
