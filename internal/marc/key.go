package marc

import (
	"strconv"
	"strings"
)

const (
	// keySeparator joins segments. Segment values are quoted, so it can
	// never appear inside one.
	keySeparator = "\x1e"

	// emptyToken stands in for a multi-valued field with no tokens. It is
	// unquoted and therefore distinct from every real value.
	emptyToken = "<empty>"
)

// KeyBuilder derives grouping keys from formatted row values.
type KeyBuilder struct {
	fields []string
	multi  map[string]bool
}

// NewKeyBuilder returns a KeyBuilder over fields in the given order.
// Fields listed in multi are split on Delimiter.
func NewKeyBuilder(fields, multi []string) KeyBuilder {
	m := make(map[string]bool, len(multi))
	for _, f := range multi {
		m[f] = true
	}
	return KeyBuilder{fields: fields, multi: m}
}

// DefaultKeyBuilder uses KeyFields and MultiValuedFields.
func DefaultKeyBuilder() KeyBuilder {
	return NewKeyBuilder(KeyFields, MultiValuedFields)
}

// Key builds the grouping key of a row. values holds already formatted
// cell text by field identifier; ordinal is the 1-based data row number
// and only matters when no key fields are configured.
func (kb KeyBuilder) Key(values map[string]string, ordinal int) string {
	if len(kb.fields) == 0 {
		return "row-" + strconv.Itoa(ordinal)
	}

	segments := make([]string, 0, len(kb.fields))
	for _, field := range kb.fields {
		v := values[field]
		if !kb.multi[field] {
			segments = append(segments, field+":"+strconv.Quote(Normalize(v)))
			continue
		}

		var tokens []string
		for _, tok := range splitTokens(v) {
			if tok == "" {
				continue
			}
			if n := Normalize(tok); n != "" {
				tokens = append(tokens, n)
			}
		}
		if len(tokens) == 0 {
			segments = append(segments, field+"#1:"+emptyToken)
			continue
		}
		for i, tok := range tokens {
			segments = append(segments, field+"#"+strconv.Itoa(i+1)+":"+strconv.Quote(tok))
		}
	}
	return strings.Join(segments, keySeparator)
}
