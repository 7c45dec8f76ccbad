package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	list := Parse(".archi.fr .interieur.gouv.fr ira-nantes.fr")

	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"subdomain of suffix pattern", "user@user.archi.fr", ".archi.fr"},
		{"bare suffix", "user@archi.fr", ".archi.fr"},
		{"nested subdomain", "user@a.b.interieur.gouv.fr", ".interieur.gouv.fr"},
		{"exact pattern", "user@ira-nantes.fr", "ira-nantes.fr"},
		{"case insensitive", "User@IRA-Nantes.FR", "ira-nantes.fr"},
		{"fallback to email domain", "user@user.baddomain.fr", "user.baddomain.fr"},
		{"suffix must sit on a label boundary", "user@notarchi.fr", "notarchi.fr"},
		{"last at sign wins", "\"a@b\"@ira-nantes.fr", "ira-nantes.fr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, list.Match(tt.email))
		})
	}
}

func TestMatch_ExactBeatsSuffix(t *testing.T) {
	list := Allowlist{".b.com", "a.b.com"}
	assert.Equal(t, "a.b.com", list.Match("x@a.b.com"))
	assert.Equal(t, ".b.com", list.Match("x@c.b.com"))
}

func TestMatch_FirstSuffixInOrderWins(t *testing.T) {
	list := Allowlist{".b.com", ".a.b.com"}
	assert.Equal(t, ".b.com", list.Match("x@z.a.b.com"))

	list = Allowlist{".a.b.com", ".b.com"}
	assert.Equal(t, ".a.b.com", list.Match("x@z.a.b.com"))
}

func TestMatch_PreservesConfiguredCase(t *testing.T) {
	list := Allowlist{".Archi.FR"}
	assert.Equal(t, ".Archi.FR", list.Match("u@x.archi.fr"))
}

func TestMatch_ResultIsPatternOrDomain(t *testing.T) {
	list := Parse("example.com .gouv.fr   .edu  ")
	emails := []string{
		"a@example.com", "a@x.gouv.fr", "a@gouv.fr", "a@mit.edu",
		"a@other.org", "a@EXAMPLE.COM", "no-at-sign.org", "a@",
	}

	for _, email := range emails {
		got, listed := list.Lookup(email)
		if listed {
			assert.Contains(t, list, got, email)
		} else {
			assert.Equal(t, DomainOf(email), got, email)
		}
	}
}

func TestLookup(t *testing.T) {
	list := Parse("test1.com")

	got, ok := list.Lookup("user1@test1.com")
	assert.True(t, ok)
	assert.Equal(t, "test1.com", got)

	got, ok = list.Lookup("user1@test2.com")
	assert.False(t, ok)
	assert.Equal(t, "test2.com", got)
}

func TestIsWhitelisted(t *testing.T) {
	list := Parse("test.com example.com .subdomain.com")

	tests := []struct {
		domain string
		want   bool
	}{
		{"test.com", true},
		{"TEST.com", true},
		{"sub.subdomain.com", true},
		{".subdomain.com", true},
		{"notwhitelisted.com", false},
		{"subdomain.com.com", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, list.IsWhitelisted(tt.domain))
		})
	}
}

func TestIsWhitelisted_EmptyPattern(t *testing.T) {
	list := Allowlist{"", "example.com"}
	assert.False(t, list.IsWhitelisted(""))
	assert.True(t, list.IsWhitelisted("example.com"))
	assert.False(t, Allowlist{""}.IsWhitelisted("example.com"))
}

func TestIsWhitelisted_LoneDot(t *testing.T) {
	assert.False(t, Allowlist{"."}.IsWhitelisted("example.com"))
	assert.Equal(t, "example.com", Allowlist{"."}.Match("a@example.com"))
}

func TestParse(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Equal(t, Allowlist{"a.com", ".b.com"}, Parse("  a.com\t.b.com\n"))
}

func TestStatic(t *testing.T) {
	src := Static(Allowlist{"a.com"})
	assert.Equal(t, Allowlist{"a.com"}, src())
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "example.com", DomainOf(" John@Example.COM "))
	assert.Equal(t, "example.com", DomainOf("example.com"))
	assert.Equal(t, "", DomainOf("john@"))
}
