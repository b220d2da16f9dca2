package normalize

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"golang.org/x/text/unicode/norm"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepDocumentTags: true,
			KeepEndTags:      true,
			KeepQuotes:       true,
		})
	})
	return minifier
}

// Value returns the form used to compare two control values. Serialized
// markup differs in inconsequential ways once it has been through the tree
// (attribute quoting, whitespace between tags, self-closing syntax), so values
// containing markup are minified on top of Text.
func Value(value string) string {
	value = Text(value)
	if !strings.Contains(value, "<") {
		return value
	}
	return Markup(value)
}

// Text normalizes line endings and Unicode composition. Whitespace is
// significant and kept.
func Text(value string) string {
	return norm.NFC.String(strings.ReplaceAll(value, "\r\n", "\n"))
}

// Markup minifies serialized HTML, falling back to the input on error
func Markup(markup string) string {
	minified, err := getMinifier().String("text/html", markup)
	if err != nil {
		return markup
	}
	return minified
}

// Equal compares two values in normalized form. Markup is minified only when
// markup is set.
func Equal(a, b string, markup bool) bool {
	if a == b {
		return true
	}
	if !markup {
		return Text(a) == Text(b)
	}
	return Value(a) == Value(b)
}
