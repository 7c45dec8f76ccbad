// Package allowlist matches email addresses against the configured list of
// allowed email domains.
//
// A pattern is either an exact domain ("ira-nantes.fr") or a suffix pattern
// with a leading dot (".archi.fr") that matches the bare suffix and any of its
// subdomains.
package allowlist

import "strings"

// Allowlist is an ordered list of domain patterns. Order matters only to
// break ties between patterns of the same kind.
type Allowlist []string

// Source yields the allowlist in force at call time.
type Source func() Allowlist

// Static returns a Source that always yields l.
func Static(l Allowlist) Source {
	return func() Allowlist { return l }
}

// Parse splits a whitespace separated configuration value into patterns.
func Parse(raw string) Allowlist {
	return Allowlist(strings.Fields(raw))
}

// DomainOf returns the lower-cased part of email after its last '@'.
// An input without '@' is treated as a bare domain.
func DomainOf(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndex(email, "@"); i >= 0 {
		email = email[i+1:]
	}
	return strings.ToLower(email)
}

// Match returns the pattern that matches the domain of email, exactly as it
// is configured. Exact patterns take precedence over suffix patterns; within
// each kind the first pattern in list order wins. When nothing matches, the
// email's own domain is returned.
func (l Allowlist) Match(email string) string {
	matched, _ := l.Lookup(email)
	return matched
}

// Lookup is Match that also reports whether the result came from the list.
func (l Allowlist) Lookup(email string) (string, bool) {
	domain := DomainOf(email)
	if domain == "" {
		return "", false
	}

	for _, p := range l {
		if p == "" || isSuffixPattern(p) {
			continue
		}
		if strings.EqualFold(p, domain) {
			return p, true
		}
	}

	for _, p := range l {
		if !isSuffixPattern(p) {
			continue
		}
		suffix := strings.ToLower(p[1:])
		if suffix == "" {
			continue
		}
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return p, true
		}
	}

	return domain, false
}

// IsWhitelisted reports whether domain (not an email) is equal to a pattern
// or ends with a suffix pattern. Empty patterns never match.
func (l Allowlist) IsWhitelisted(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}

	for _, p := range l {
		if p == "" {
			continue
		}
		p = strings.ToLower(p)
		if domain == p {
			return true
		}
		if isSuffixPattern(p) && len(p) > 1 && strings.HasSuffix(domain, p) {
			return true
		}
	}
	return false
}

func isSuffixPattern(p string) bool {
	return len(p) > 0 && p[0] == '.'
}
