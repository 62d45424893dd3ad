package services

import (
	"strconv"
	"strings"
	"unicode"

	"deliveryhub/internal/admin/app/core"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify turns a title into a lowercase ASCII slug: "Crème Brûlée, Explained!" -> "creme-brulee-explained".
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, title)
	if err != nil {
		plain = title
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= core.MaxSlugLen {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return core.DefaultSlug
	}
	return slug
}

// ValidSlug accepts what Slugify produces.
func ValidSlug(s string) bool {
	if s == "" || len(s) > core.MaxSlugLen || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return !strings.Contains(s, "--")
}

// slugCandidate is the n-th try for base: base, base-2, base-3...
func slugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	suffix := "-" + strconv.Itoa(n)
	if len(base)+len(suffix) > core.MaxSlugLen {
		base = strings.TrimRight(base[:core.MaxSlugLen-len(suffix)], "-")
	}
	return base + suffix
}
