package template

import (
	"regexp"
	"sort"

	"loan_report/internal/domain/report"
)

// placeholderRe matches {{ name }} with optional inner whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// missingSet collects placeholder names that had no value.
type missingSet map[string]struct{}

func (m missingSet) add(name string) { m[name] = struct{}{} }

func (m missingSet) err() error {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return &report.MissingFieldsError{Fields: names}
}

// substitute replaces every placeholder in s. Unknown names are left in place
// and recorded in missing.
func substitute(s string, fields report.Fields, missing missingSet) (string, bool) {
	matches := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, false
	}

	out := make([]byte, 0, len(s))
	last := 0
	for _, m := range matches {
		name := s[m[2]:m[3]]
		value, ok := fields[name]
		if !ok {
			missing.add(name)
			continue
		}
		out = append(out, s[last:m[0]]...)
		out = append(out, value...)
		last = m[1]
	}
	out = append(out, s[last:]...)
	return string(out), true
}

// Placeholders returns the distinct placeholder names found in s, sorted.
func Placeholders(s string) []string {
	seen := map[string]struct{}{}
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		seen[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
