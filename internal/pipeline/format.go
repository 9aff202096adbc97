package pipeline

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// thousands renders n with comma group separators: 12500000 -> "12,500,000".
func thousands(n int64) string {
	return printer.Sprintf("%d", n)
}

// percent renders a usage percentage without trailing zeros: 62.5 -> "62.5".
func percent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
