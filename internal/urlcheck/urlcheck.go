// Package urlcheck screens clone target URLs before a session is created.
// Malformed URLs and URLs pointing at loopback or private-network hosts are
// rejected synchronously; a rejected request never allocates a session.
package urlcheck

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL     = errors.New("invalid url")
	ErrDisallowedHost = errors.New("local and private-network urls are not allowed")
)

// Validator decides whether a target URL may be cloned.
type Validator interface {
	Validate(rawURL string) error
}

// PublicURLValidator accepts only absolute http(s) URLs whose host is not a
// loopback, private, link-local or unspecified address.
type PublicURLValidator struct{}

func NewPublicURLValidator() *PublicURLValidator {
	return &PublicURLValidator{}
}

func (v *PublicURLValidator) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".local") {
		return ErrDisallowedHost
	}

	if ip := net.ParseIP(host); ip != nil && !isPublicIP(ip) {
		return ErrDisallowedHost
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast():
		return false
	}
	return true
}
