// Package persona canonicalises persona tags so that "Deep Diver",
// "deep-diver" and "deep_diver" compare equal.
package persona

import "strings"

// Table normalizes persona tags and resolves configured aliases.
type Table struct {
	aliases map[string]string
}

// NewTable creates a Table. Alias keys and values are normalized on the way in.
func NewTable(aliases map[string]string) *Table {
	t := &Table{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		t.aliases[canonical(from)] = canonical(to)
	}
	return t
}

func canonical(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.Join(strings.FieldsFunc(tag, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
}

// Normalize returns the canonical form of tag, or "" for a blank tag.
func (t *Table) Normalize(tag string) string {
	c := canonical(tag)
	if alias, ok := t.aliases[c]; ok {
		return alias
	}
	return c
}
