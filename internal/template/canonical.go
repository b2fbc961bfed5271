package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// timestampMarker prefixes a timestamp literal inside canonical text so it
// decodes back to a Timestamp rather than a plain string.
const timestampMarker = "\x00!!timestamp "

// Timestamp is a YAML timestamp scalar kept exactly as it was written. It
// lets an unquoted date like 2024-01-01 pass through expansion unchanged.
type Timestamp string

// MarshalYAML emits the literal as a plain timestamp scalar.
func (ts Timestamp) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: string(ts)}, nil
}

// markTimestamps rewrites the timestamp scalars under n in place so they
// decode as marked strings. Timestamp keys become ordinary string keys.
func markTimestamps(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			markTimestamps(c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i]; k.Kind == yaml.ScalarNode && k.ShortTag() == "!!timestamp" {
				k.Tag = "!!str"
			}
			markTimestamps(n.Content[i+1])
		}
	case yaml.ScalarNode:
		if n.ShortTag() == "!!timestamp" {
			n.Tag = "!!str"
			n.Value = timestampMarker + n.Value
		}
	}
}

// markValues returns a copy of v with every Timestamp replaced by its
// marked string form.
func markValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = markValues(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = markValues(val)
		}
		return out
	case Timestamp:
		return timestampMarker + string(t)
	default:
		return v
	}
}

// encodeCanonical renders v as compact JSON with sorted keys. HTML escaping
// is disabled so "<<" and ">>" survive as literal text.
func encodeCanonical(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// decodeCanonical parses text produced by encodeCanonical (possibly
// rewritten) back into a document.
func decodeCanonical(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after document")
	}

	if out == nil {
		return map[string]any{}, nil
	}
	return normalize(out).(map[string]any), nil
}

// normalize turns json.Number into int64 where integral, float64
// otherwise, so YAML output keeps integers as integers. Marked strings
// become Timestamp values again.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	case string:
		if lit, ok := strings.CutPrefix(t, timestampMarker); ok {
			return Timestamp(lit)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
