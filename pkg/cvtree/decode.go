package cvtree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedDocument wraps any failure to turn raw input into a tree.
var ErrMalformedDocument = errors.New("cvtree: malformed document")

// Reserved keys recognized at any map level of a document.
const (
	KeyValue    = "value"
	KeyTags     = "tags"
	KeyURL      = "url"
	KeyExplicit = "explicit"
)

// mapItem and orderedMap keep document key order through decoding.
type mapItem struct {
	Key   string
	Value any
}

type orderedMap []mapItem

// Load reads the file at path and parses it with Parse.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// Parse turns a JSON or YAML document into a tree. JSON is tried first; any
// input that is not valid JSON is parsed as YAML, which keeps map key order.
func Parse(data []byte) (*Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}

	if json.Valid(trimmed) {
		var raw any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		return Decode(raw)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	raw, err := fromYAML(&doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return Decode(raw)
}

// Decode converts an already parsed value into a tree. It accepts the shapes
// produced by encoding/json and yaml.v3: maps with string keys, slices and
// scalars. Maps keys are visited in sorted order unless the map came from Parse.
func Decode(v any) (*Node, error) {
	return decodeValue(v, "")
}

func decodeValue(v any, path string) (*Node, error) {
	switch x := v.(type) {
	case nil:
		return Empty(), nil
	case orderedMap:
		return decodeMap(x, path)
	case map[string]any:
		return decodeMap(sortedItems(x), path)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = val
		}
		return decodeMap(sortedItems(m), path)
	case []any:
		items := make([]*Node, 0, len(x))
		for i, it := range x {
			child, err := decodeValue(it, joinPath(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return List(items...), nil
	}
	return Scalar(v), nil
}

func decodeMap(m orderedMap, path string) (*Node, error) {
	var (
		payload  *Node
		hasValue bool
		meta     Node
	)
	n := NewMap()
	for _, it := range m {
		switch it.Key {
		case KeyValue:
			hasValue = true
			child, err := decodeValue(it.Value, joinPath(path, KeyValue))
			if err != nil {
				return nil, err
			}
			payload = child
		case KeyTags:
			meta.Tags = decodeTags(it.Value)
		case KeyURL:
			if it.Value != nil {
				meta.Link = formatScalar(normalizeScalar(it.Value))
			}
		case KeyExplicit:
			meta.Explicit = decodeExplicit(it.Value)
		default:
			child, err := decodeValue(it.Value, joinPath(path, it.Key))
			if err != nil {
				return nil, err
			}
			if err = n.Set(it.Key, child); err != nil {
				return nil, err
			}
		}
	}

	if hasValue {
		if n.Len() > 0 {
			return nil, fmt.Errorf("%w: %q holds both %q and other keys %v", ErrPayloadConflict, path, KeyValue, n.Keys())
		}
		n = payload
	}
	if len(meta.Tags) > 0 {
		n.Tags = meta.Tags
	}
	if meta.Link != "" {
		n.Link = meta.Link
	}
	if meta.Explicit {
		n.Explicit = true
	}
	return n, nil
}

// decodeTags accepts a list of strings or a comma separated string.
// Blank entries are dropped; non-string list entries are ignored.
func decodeTags(v any) []string {
	var tags []string
	switch x := v.(type) {
	case string:
		for _, t := range strings.Split(x, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	case []any:
		for _, it := range x {
			if s, ok := it.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					tags = append(tags, s)
				}
			}
		}
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
	}
	return tags
}

func decodeExplicit(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1"
	case int:
		return x == 1
	case int64:
		return x == 1
	case float64:
		return x == 1
	}
	return false
}

func sortedItems(m map[string]any) orderedMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(orderedMap, 0, len(keys))
	for _, k := range keys {
		out = append(out, mapItem{Key: k, Value: m[k]})
	}
	return out
}

// fromYAML converts a yaml.Node into plain values, keeping mapping order.
func fromYAML(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(orderedMap, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, mapItem{Key: n.Content[i].Value, Value: v})
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "." + seg
}
