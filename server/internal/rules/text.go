package rules

import (
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
)

// Money formats v as dollars with thousands separators: 12345.6 -> "$12,345.60".
func Money(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	spaceBeforeP  = regexp.MustCompile(`\s+([,.;:!?])`)
	dollarSpacing = regexp.MustCompile(`\$\s+`)
)

// Sanitize cleans model-written summary text: whitespace runs collapse to a
// single space, stray spaces before punctuation and after "$" are removed.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = spaceRun.ReplaceAllString(s, " ")
	s = spaceBeforeP.ReplaceAllString(s, "$1")
	s = dollarSpacing.ReplaceAllString(s, "$$")
	return s
}
