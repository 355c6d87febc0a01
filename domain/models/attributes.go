package models

import (
	"sort"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"github.com/pivolan/go_utils"
)

var attributeAliases = map[string]string{
	"absolute-pitch": AttrPitch,
	"pitchclass":     AttrPitchClass,
	"finger":         AttrFingering,
}

// NormalizeName turns a raw header into its lookup key: transliterated,
// lower-cased, runs of non-alphanumerics collapsed into a single "-".
func NormalizeName(name string) string {
	name = strings.ToLower(unidecode.Unidecode(strings.TrimSpace(name)))
	var b strings.Builder
	dash := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// CanonicalAttribute maps a header to its canonical attribute name.
func CanonicalAttribute(name string) string {
	key := NormalizeName(name)
	if alias, ok := attributeAliases[key]; ok {
		return alias
	}
	return key
}

// IsDefaultAttribute reports whether name is one of the built-in attributes.
func IsDefaultAttribute(name string) bool {
	return go_utils.InArray(name, DefaultAttributes)
}

// OrderAttributes returns the keys of m, built-in attributes first in
// their canonical order, the rest sorted.
func OrderAttributes[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for _, a := range DefaultAttributes {
		if _, ok := m[a]; ok {
			out = append(out, a)
		}
	}
	extra := make([]string, 0)
	for a := range m {
		if !IsDefaultAttribute(a) {
			extra = append(extra, a)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
