package graph

import "strings"

// FieldSetSelection is one selection inside a FieldSet literal, e.g. the
// "id" in "@key(fields: \"id\")" or the "nested" in "@key(fields: \"id nested { x y }\")".
type FieldSetSelection struct {
	Name   string
	Nested FieldSet
}

// FieldSet is a parsed, normalized selection-set literal as used by
// @key, @requires and @provides. It supports the common flat form
// ("id", "a b c") and one level of nested braces ("id nested { x y }"),
// which covers every federation field-set this repo's schemas use.
type FieldSet []FieldSetSelection

// ParseFieldSet parses a field-set literal. It is a small hand-rolled
// tokenizer rather than a reuse of the external GraphQL parser: a field
// set is not a full GraphQL document (no operations, no arguments), so
// round-tripping it through the document parser would need synthesizing
// a fake query just to strip it back down to names.
func ParseFieldSet(src string) FieldSet {
	toks := tokenizeFieldSet(src)
	fs, _ := parseFieldSetTokens(toks, 0)
	return fs
}

func tokenizeFieldSet(src string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch r {
		case '{', '}':
			flush()
			toks = append(toks, string(r))
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func parseFieldSetTokens(toks []string, i int) (FieldSet, int) {
	var fs FieldSet
	for i < len(toks) {
		switch toks[i] {
		case "}":
			return fs, i + 1
		case "{":
			// malformed (brace with no preceding name); skip it.
			i++
		default:
			name := toks[i]
			i++
			if i < len(toks) && toks[i] == "{" {
				var nested FieldSet
				nested, i = parseFieldSetTokens(toks, i+1)
				fs = append(fs, FieldSetSelection{Name: name, Nested: nested})
			} else {
				fs = append(fs, FieldSetSelection{Name: name})
			}
		}
	}
	return fs, i
}

// Names returns the top-level field names in declaration order.
func (fs FieldSet) Names() []string {
	names := make([]string, 0, len(fs))
	for _, sel := range fs {
		names = append(names, sel.Name)
	}
	return names
}

// Empty reports whether the field set carries no selections.
func (fs FieldSet) Empty() bool {
	return len(fs) == 0
}

// Subset reports whether every name in fs (top level only) appears in other.
// Used to check "requires already satisfied by what's in the current group".
func (fs FieldSet) Subset(other FieldSet) bool {
	have := make(map[string]bool, len(other))
	for _, sel := range other {
		have[sel.Name] = true
	}
	for _, sel := range fs {
		if !have[sel.Name] {
			return false
		}
	}
	return true
}

// Equal compares two field sets structurally, ignoring order.
func (fs FieldSet) Equal(other FieldSet) bool {
	if len(fs) != len(other) {
		return false
	}
	index := make(map[string]FieldSetSelection, len(other))
	for _, sel := range other {
		index[sel.Name] = sel
	}
	for _, sel := range fs {
		match, ok := index[sel.Name]
		if !ok {
			return false
		}
		if !sel.Nested.Equal(match.Nested) {
			return false
		}
	}
	return true
}
