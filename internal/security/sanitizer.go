// Package security cleans visitor-supplied text before it reaches mail
// headers and templates.
package security

import (
	"errors"
	"strings"
	"unicode"
)

// Sanitization errors
var (
	ErrLineBreak     = errors.New("value must be a single line")
	ErrBlockedDomain = errors.New("email domain is blocked")
)

// zeroWidth lists invisible characters that are dropped from all input.
var zeroWidth = map[rune]bool{
	'\u200b': true, // zero width space
	'\u200c': true, // zero width non-joiner
	'\u200d': true, // zero width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // byte order mark
}

// Config holds sanitizer configuration.
type Config struct {
	BlockedDomains []string // Email domains rejected along with their subdomains
}

// DefaultConfig returns the default sanitizer configuration.
func DefaultConfig() Config {
	return Config{
		BlockedDomains: nil,
	}
}

// Sanitizer normalizes form text.
type Sanitizer struct {
	config         Config
	blockedDomains map[string]bool
}

// NewSanitizer creates a new Sanitizer.
func NewSanitizer(cfg Config) *Sanitizer {
	blocked := make(map[string]bool)
	for _, d := range cfg.BlockedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			blocked[d] = true
		}
	}

	return &Sanitizer{
		config:         cfg,
		blockedDomains: blocked,
	}
}

// Line cleans a value that ends up in a mail header or subject. It trims
// surrounding space, drops control and zero-width characters, and rejects
// embedded line breaks. The cleaned value is returned even on error.
func (s *Sanitizer) Line(v string) (string, error) {
	v = strings.TrimSpace(v)
	hasBreak := strings.ContainsAny(v, "\r\n\u2028\u2029")

	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r == '\r' || r == '\n' || r == '\u2028' || r == '\u2029' || r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if dropRune(r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(b.String())
	if hasBreak {
		return cleaned, ErrLineBreak
	}
	return cleaned, nil
}

// Text cleans a multi-line value. Line endings are normalized to "\n"; tabs
// and newlines survive, other control and zero-width characters do not.
func (s *Sanitizer) Text(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	v = strings.ReplaceAll(v, "\r", "\n")

	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if dropRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Email trims and lower-cases an address and checks its domain against the
// block list. Format validation is left to the caller's schema.
func (s *Sanitizer) Email(v string) (string, error) {
	v, err := s.Line(v)
	v = strings.ToLower(v)
	if err != nil {
		return v, err
	}

	at := strings.LastIndexByte(v, '@')
	if at < 0 || at == len(v)-1 {
		return v, nil
	}
	if s.isBlockedDomain(v[at+1:]) {
		return v, ErrBlockedDomain
	}
	return v, nil
}

// isBlockedDomain checks if a domain or any of its parent domains is blocked.
func (s *Sanitizer) isBlockedDomain(domain string) bool {
	if s.blockedDomains[domain] {
		return true
	}

	parts := strings.Split(domain, ".")
	for i := 1; i < len(parts); i++ {
		parent := strings.Join(parts[i:], ".")
		if s.blockedDomains[parent] {
			return true
		}
	}

	return false
}

func dropRune(r rune) bool {
	return zeroWidth[r] || unicode.IsControl(r)
}
