// Package strategy holds the ordered catalog of URL transformation strategies.
//
// This package contains:
//   - Strategy interface: a named, pure URL rewrite with an idempotence check
//   - Registry: the ordered, duplicate-free list the fallback chain walks
//   - Built-in image proxies (DDG, Pocket, FileStack, SteemitImages) and Fixed
package strategy

import (
	"net/url"
	"strings"
)

// Strategy transforms a resource URL into an alternate, hopefully unblocked URL.
type Strategy interface {
	// Name returns the stable identifier used for lookup and result tagging
	Name() string

	// Tag returns opaque metadata (display color) passed through untouched
	Tag() string

	// Matches reports whether u is already in this strategy's produced form
	Matches(u string) bool

	// Apply returns the transformed candidate, or u unchanged when u is not
	// transformable or already matches
	Apply(u string) string

	// Reverse is a best-effort inverse of Apply; u is returned unchanged when
	// it cannot be reversed
	Reverse(u string) string
}

// Transformable reports whether u is an absolute http(s) URL.
// data:, javascript: and relative URLs are never rewritten.
func Transformable(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// Fixed always points at a caller-configured fallback URL.
type Fixed struct {
	name   string
	target string
	tag    string
}

// NewFixed creates a strategy that substitutes target for any transformable URL.
func NewFixed(name, target string) *Fixed {
	return &Fixed{name: name, target: strings.TrimSpace(target)}
}

// WithTag sets the display tag.
func (f *Fixed) WithTag(tag string) *Fixed {
	f.tag = tag
	return f
}

func (f *Fixed) Name() string { return f.name }
func (f *Fixed) Tag() string  { return f.tag }

func (f *Fixed) Matches(u string) bool {
	return strings.TrimSpace(u) == f.target
}

func (f *Fixed) Apply(u string) string {
	if !Transformable(u) || f.Matches(u) || f.target == "" {
		return u
	}
	return f.target
}

// Reverse cannot recover the original from a fixed URL.
func (f *Fixed) Reverse(u string) string { return u }
