package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var tokenPattern = regexp.MustCompile(`<<\s*[A-Za-z_][A-Za-z0-9_.\-]*\s*>>`)

// Template is a loaded, immutable template document. It is held in its
// canonical text form, which is what substitution operates on.
type Template struct {
	path string
	text string
}

// New builds a Template from an in-memory document.
func New(doc map[string]any) (*Template, error) {
	if len(doc) == 0 {
		return nil, errors.New("template document is empty")
	}
	text, err := encodeCanonical(markValues(doc))
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return &Template{text: text}, nil
}

// Load reads the YAML template at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &TemplateLoadError{Path: path, Err: fmt.Errorf("parse YAML: %w", err)}
	}
	markTimestamps(&root)

	var doc map[string]any
	if err := root.Decode(&doc); err != nil {
		return nil, &TemplateLoadError{Path: path, Err: fmt.Errorf("parse YAML: %w", err)}
	}

	t, err := New(doc)
	if err != nil {
		return nil, &TemplateLoadError{Path: path, Err: err}
	}
	t.path = path
	return t, nil
}

// Path returns the file the template was loaded from, if any.
func (t *Template) Path() string { return t.path }

// Text returns the canonical text substitution runs against.
func (t *Template) Text() string { return t.text }

// Document returns a fresh copy of the template document.
func (t *Template) Document() map[string]any {
	doc, err := decodeCanonical(t.text)
	if err != nil {
		// text was produced by encodeCanonical in New
		panic(fmt.Sprintf("template: corrupt canonical text: %v", err))
	}
	return doc
}

// Tokens returns the distinct placeholder markers present in the template.
func (t *Template) Tokens() []string {
	return UnresolvedTokens(t.text)
}

// Substitute applies set to text in order. Every literal occurrence of a
// token is replaced, and later substitutions see the output of earlier ones.
func Substitute(text string, set Set) string {
	for _, sub := range set {
		if sub.Token == "" {
			continue
		}
		text = strings.ReplaceAll(text, sub.Token, sub.Replacement())
	}
	return text
}

// Expand populates t with set and returns the single top-level key and its
// body. Tokens the set does not cover are left in place.
func Expand(t *Template, set Set) (string, any, error) {
	key, body, _, err := expand(t, set)
	return key, body, err
}

func expand(t *Template, set Set) (string, any, string, error) {
	text := Substitute(t.text, set)

	doc, err := decodeCanonical(text)
	if err != nil {
		return "", nil, text, &UnexpectedTemplateShapeError{Err: err}
	}
	if len(doc) != 1 {
		return "", nil, text, &UnexpectedTemplateShapeError{Keys: sortedKeys(doc)}
	}
	for key, body := range doc {
		return key, body, text, nil
	}
	return "", nil, text, nil
}

// ExpandAll expands t once per set, in order. A key produced by a later set
// replaces the body from an earlier one without error.
func ExpandAll(t *Template, sets []Set) (Collection, error) {
	report, err := ExpandAllReport(t, sets)
	if err != nil {
		return nil, err
	}
	return report.Collection, nil
}

// Report is the outcome of ExpandAllReport.
type Report struct {
	Collection Collection
	// Order lists keys in the order they were first produced.
	Order []string
	// Overwritten lists keys produced by more than one set, once per
	// collision.
	Overwritten []string
	// Unresolved maps a key to the placeholder markers left in its text.
	Unresolved map[string][]string
}

// ExpandAllReport behaves like ExpandAll and additionally records key
// collisions and unresolved tokens so callers can surface them.
func ExpandAllReport(t *Template, sets []Set) (*Report, error) {
	report := &Report{
		Collection: make(Collection, len(sets)),
		Unresolved: make(map[string][]string),
	}

	for i, set := range sets {
		key, body, text, err := expand(t, set)
		if err != nil {
			return nil, fmt.Errorf("variable set %d: %w", i, err)
		}

		if _, exists := report.Collection[key]; exists {
			report.Overwritten = append(report.Overwritten, key)
		} else {
			report.Order = append(report.Order, key)
		}
		report.Collection[key] = body

		if left := UnresolvedTokens(text); len(left) > 0 {
			report.Unresolved[key] = left
		} else {
			delete(report.Unresolved, key)
		}
	}

	return report, nil
}

// UnresolvedTokens returns the distinct "<< name >>" markers in text, sorted.
func UnresolvedTokens(text string) []string {
	matches := tokenPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// IsToken reports whether s is exactly one "<< name >>" marker.
func IsToken(s string) bool {
	return s != "" && tokenPattern.FindString(s) == s
}
