// Package mirror keeps the record store and the on-disk data
// directory in sync. Every record serializes to one YAML file whose
// bytes are a pure function of the record's content, so re-exporting
// an unchanged collection produces an empty diff.
package mirror

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openpatata/scrapers/internal/record"
)

// Marshal serializes a record body into canonical YAML: keys sorted
// alphabetically at every level, multiline strings in literal block
// style, two-space indentation. The same logical record always yields
// byte-identical output.
func Marshal(doc record.Doc) ([]byte, error) {
	node, err := encodeValue(map[string]any(doc))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("mirror: encode record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("mirror: encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a mirror file body back into a record. Scalars are
// mapped by resolved tag; dates stay strings whether or not the file
// quotes them.
func Unmarshal(data []byte) (record.Doc, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("mirror: parse record: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 {
		return nil, fmt.Errorf("mirror: expected a single document")
	}
	value, err := decodeNode(root.Content[0])
	if err != nil {
		return nil, err
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("mirror: record body is not a mapping")
	}
	return record.Doc(doc), nil
}

func encodeValue(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case string:
		node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
		if strings.Contains(v, "\n") {
			node.Style = yaml.LiteralStyle
		}
		return node, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%d", v)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%d", v)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(v)}, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			val, err := encodeValue(v[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, val)
		}
		return node, nil
	case record.Doc:
		return encodeValue(map[string]any(v))
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(v) == 0 {
			// Empty sequences stay on one line as [].
			node.Style = yaml.FlowStyle
		}
		for _, item := range v {
			child, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return encodeValue(items)
	}
	return nil, fmt.Errorf("mirror: unsupported value type %T", value)
}

// formatFloat renders a float the way PyYAML does, keeping the decimal
// point on whole values so they stay floats on the way back in.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			value, err := decodeNode(child)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return items, nil
	case yaml.MappingNode:
		m := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("mirror: non-scalar mapping key on line %d", key.Line)
			}
			value, err := decodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key.Value] = value
		}
		return m, nil
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	}
	return nil, fmt.Errorf("mirror: unsupported node kind %d on line %d", node.Kind, node.Line)
}

func decodeScalar(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, fmt.Errorf("mirror: bad bool on line %d: %w", node.Line, err)
		}
		return b, nil
	case "!!int":
		var i int
		if err := node.Decode(&i); err != nil {
			return nil, fmt.Errorf("mirror: bad integer on line %d: %w", node.Line, err)
		}
		return i, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("mirror: bad float on line %d: %w", node.Line, err)
		}
		return f, nil
	default:
		// Timestamps and anything else exotic stay verbatim strings.
		return node.Value, nil
	}
}
