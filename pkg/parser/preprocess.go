package parser

import (
	"regexp"
	"strings"
)

var preprocessRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bper\b`), "/"},
	{regexp.MustCompile(`([\w\]\)]+)\s+squared\b`), "$1**2"},
	{regexp.MustCompile(`([\w\]\)]+)\s+cubed\b`), "$1**3"},
	{regexp.MustCompile(`\bcubic\s+(\w+)`), "$1**3"},
	{regexp.MustCompile(`\bsquare\s+(\w+)`), "$1**2"},
	{regexp.MustCompile(`\bsq\s+(\w+)`), "$1**2"},
}

// thousandsSep matches separators such as the comma in 1,000.
var thousandsSep = regexp.MustCompile(`(\d),(\d{3})`)

// Preprocess rewrites the English shorthands accepted in expressions
// ("meter per second", "square meter", "second squared", "%") into the
// plain operator grammar.
func Preprocess(expr string) string {
	out := strings.TrimSpace(expr)
	if out == "" {
		return out
	}
	out = strings.ReplaceAll(out, "%", " percent ")
	for thousandsSep.MatchString(out) {
		out = thousandsSep.ReplaceAllString(out, "$1$2")
	}
	for _, rule := range preprocessRules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return strings.TrimSpace(out)
}
