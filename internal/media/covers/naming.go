package covers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	multipleHyphens = regexp.MustCompile(`-+`)
)

// Name returns the local file and blob name of a book cover: {title}_{author},
// each part reduced to a lowercase ASCII slug.
//
// Examples:
//   - "Dune", "Frank Herbert" -> "dune_frank-herbert"
//   - "Les Misérables", "Victor Hugo" -> "les-miserables_victor-hugo"
func Name(title, author string) string {
	t, a := slug(title), slug(author)
	if t == "" {
		t = "untitled"
	}
	if a == "" {
		a = "unknown"
	}
	return t + "_" + a
}

// BlobPath returns the blob store path of a named cover.
func BlobPath(name string) string {
	return "covers/" + name + ".png"
}

func slug(s string) string {
	s = norm.NFKD.String(s)

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
