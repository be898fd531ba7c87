package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var euroAmount = regexp.MustCompile(`(\d[\d.]*)(?:,(\d+))?`)

// ParseEuro parses Dutch-formatted currency text like "€ 524",
// "€ 1.065" or "1.065,50" into an amount. The dot is a thousands
// separator, the comma a decimal one. Returns false when the text
// contains no amount at all.
func ParseEuro(text string) (float64, bool) {
	text = strings.ReplaceAll(text, " ", " ")
	groups := euroAmount.FindStringSubmatch(text)
	if groups == nil {
		return 0, false
	}

	whole := strings.ReplaceAll(groups[1], ".", "")
	if groups[2] != "" {
		whole = whole + "." + groups[2]
	}
	value, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}
