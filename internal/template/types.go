package template

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Token returns the placeholder marker for name, e.g. "<< dag_id >>".
func Token(name string) string {
	return "<< " + strings.TrimSpace(name) + " >>"
}

// Substitution replaces every literal occurrence of Token with the string
// form of Value.
type Substitution struct {
	Token string
	Value any
}

// Replacement returns the text inserted in place of the token.
func (s Substitution) Replacement() string {
	if s.Value == nil {
		return ""
	}
	return fmt.Sprint(s.Value)
}

// Set is one ordered substitution set. Order is significant: each
// substitution operates on text already rewritten by the ones before it.
type Set []Substitution

// Lookup returns the value bound to token, if any.
func (s Set) Lookup(token string) (any, bool) {
	for _, sub := range s {
		if sub.Token == token {
			return sub.Value, true
		}
	}
	return nil, false
}

// UnmarshalYAML decodes a YAML mapping into a Set, keeping the order the
// pairs were written in.
func (s *Set) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variable set must be a mapping of token to value", value.Line)
	}

	out := make(Set, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: token must be a scalar", keyNode.Line)
		}

		var v any
		if valNode.Kind == yaml.ScalarNode {
			if valNode.ShortTag() != "!!null" {
				v = valNode.Value
			}
		} else if err := valNode.Decode(&v); err != nil {
			return fmt.Errorf("line %d: token %q: %w", valNode.Line, keyNode.Value, err)
		}
		out = append(out, Substitution{Token: keyNode.Value, Value: v})
	}

	*s = out
	return nil
}

// MarshalYAML encodes the Set as an ordered YAML mapping.
func (s Set) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, sub := range s {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: sub.Token},
			&yaml.Node{Kind: yaml.ScalarNode, Value: sub.Replacement()},
		)
	}
	return node, nil
}

// Collection maps each generated DAG id to its definition body.
type Collection map[string]any

// Keys returns the collection keys in sorted order.
func (c Collection) Keys() []string {
	return sortedKeys(c)
}

// DefaultSets returns the built-in variable sets used when no config file
// supplies its own.
func DefaultSets() []Set {
	return []Set{
		{
			{Token: Token("dag_id"), Value: "business_analytics"},
			{Token: Token("database_name"), Value: "BA"},
			{Token: Token("table_name"), Value: "inventory"},
		},
		{
			{Token: Token("dag_id"), Value: "data_science"},
			{Token: Token("database_name"), Value: "DS"},
			{Token: Token("table_name"), Value: "daily_sales"},
		},
		{
			{Token: Token("dag_id"), Value: "machine_learning"},
			{Token: Token("database_name"), Value: "ML"},
			{Token: Token("table_name"), Value: "training_data"},
		},
	}
}
