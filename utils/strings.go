package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title upper-cases the first letter of every word, treating underscores
// and dashes as word breaks.
// Example: "set_prefix" -> "Set Prefix"
func Title(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return cases.Title(language.English, cases.NoLower).String(s)
}
