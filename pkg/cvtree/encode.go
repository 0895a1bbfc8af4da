package cvtree

import (
	"gopkg.in/yaml.v3"
)

// ToValue converts the tree back into plain Go values using the reserved keys.
// Nodes without metadata collapse to their bare payload, so a document that
// round-trips through Parse and ToValue keeps its original shape.
func (n *Node) ToValue() any {
	if n == nil {
		return nil
	}
	var payload any
	switch n.kind {
	case KindScalar:
		payload = n.scalar
	case KindList:
		items := make([]any, 0, len(n.items))
		for _, it := range n.items {
			items = append(items, it.ToValue())
		}
		payload = items
	case KindMap:
		m := make(map[string]any, len(n.children))
		for _, k := range n.keys {
			m[k] = n.children[k].ToValue()
		}
		n.putMeta(m)
		return m
	}

	if !n.hasMeta() {
		return payload
	}
	m := map[string]any{}
	if payload != nil {
		m[KeyValue] = payload
	}
	n.putMeta(m)
	return m
}

func (n *Node) hasMeta() bool {
	return len(n.Tags) > 0 || n.Link != "" || n.Explicit
}

func (n *Node) putMeta(m map[string]any) {
	if len(n.Tags) > 0 {
		tags := make([]any, len(n.Tags))
		for i, t := range n.Tags {
			tags[i] = t
		}
		m[KeyTags] = tags
	}
	if n.Link != "" {
		m[KeyURL] = n.Link
	}
	if n.Explicit {
		m[KeyExplicit] = true
	}
}

// Marshal encodes the tree as YAML, keeping map keys in insertion order.
func Marshal(n *Node) ([]byte, error) {
	return yaml.Marshal(toYAML(n))
}

func toYAML(n *Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}

	var payload *yaml.Node
	switch n.kind {
	case KindScalar:
		payload = &yaml.Node{}
		if err := payload.Encode(n.scalar); err != nil {
			payload = &yaml.Node{Kind: yaml.ScalarNode, Value: n.Text()}
		}
	case KindList:
		payload = &yaml.Node{Kind: yaml.SequenceNode}
		for _, it := range n.items {
			payload.Content = append(payload.Content, toYAML(it))
		}
	case KindMap:
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range n.keys {
			m.Content = append(m.Content, yamlKey(k), toYAML(n.children[k]))
		}
		n.appendYAMLMeta(m)
		return m
	}

	if !n.hasMeta() {
		if payload == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		}
		return payload
	}
	m := &yaml.Node{Kind: yaml.MappingNode}
	if payload != nil {
		m.Content = append(m.Content, yamlKey(KeyValue), payload)
	}
	n.appendYAMLMeta(m)
	return m
}

func (n *Node) appendYAMLMeta(m *yaml.Node) {
	if len(n.Tags) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, t := range n.Tags {
			seq.Content = append(seq.Content, yamlString(t))
		}
		m.Content = append(m.Content, yamlKey(KeyTags), seq)
	}
	if n.Link != "" {
		m.Content = append(m.Content, yamlKey(KeyURL), yamlString(n.Link))
	}
	if n.Explicit {
		m.Content = append(m.Content, yamlKey(KeyExplicit), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}
}

func yamlKey(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: k}
}

// yamlString encodes s so that it reads back as a string, quoting values such
// as "true" or "2020" that would otherwise resolve to another type.
func yamlString(s string) *yaml.Node {
	node := &yaml.Node{}
	if err := node.Encode(s); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	}
	return node
}
