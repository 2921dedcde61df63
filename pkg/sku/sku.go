// Package sku normaliza códigos de producto.
package sku

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var upper = cases.Upper(language.Und)

// Normalize aplica NFKC, quita espacios en los extremos, colapsa espacios internos en "-"
// y pasa a mayúsculas: " ab-01 " y "ＡＢ-01" quedan como "AB-01".
func Normalize(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), "-")
	return upper.String(s)
}
