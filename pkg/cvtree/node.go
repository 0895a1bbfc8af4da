package cvtree

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrPayloadConflict is returned when a node would end up holding more than one
// payload kind, for example a map entry added to a scalar node.
var ErrPayloadConflict = errors.New("cvtree: conflicting node payload")

// Kind identifies which payload a Node carries.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindScalar
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a single point in a document tree. The payload is one of empty,
// scalar, list or map and is only reachable through the constructors and
// accessors below, so a node can never hold two payloads at once.
type Node struct {
	kind     Kind
	scalar   any
	items    []*Node
	children map[string]*Node
	keys     []string

	// Tags labels the node for audience filtering. Matching is exact.
	Tags []string
	// Link, when set, makes the renderer wrap the node's text in a hyperlink.
	Link string
	// Explicit hides the node unless a filter positively asks for one of its tags.
	Explicit bool
}

// Empty returns a node with no payload.
func Empty() *Node {
	return &Node{}
}

// Scalar returns a scalar node. Strings, booleans, integers and floats are
// stored as string, bool, int64 and float64; anything else is stored as its
// fmt.Sprint representation.
func Scalar(v any) *Node {
	return &Node{kind: KindScalar, scalar: normalizeScalar(v)}
}

// String is shorthand for Scalar with a string value.
func String(s string) *Node {
	return &Node{kind: KindScalar, scalar: s}
}

// List returns a list node holding items in order. Nil items are skipped.
func List(items ...*Node) *Node {
	n := &Node{kind: KindList, items: make([]*Node, 0, len(items))}
	for _, it := range items {
		if it != nil {
			n.items = append(n.items, it)
		}
	}
	return n
}

// NewMap returns a map node with no children.
func NewMap() *Node {
	return &Node{kind: KindMap, children: map[string]*Node{}}
}

// Set stores child under key. An empty node becomes a map on first use; a
// scalar or list node rejects the call with ErrPayloadConflict.
func (n *Node) Set(key string, child *Node) error {
	switch n.kind {
	case KindEmpty:
		n.kind = KindMap
		n.children = map[string]*Node{}
	case KindMap:
	default:
		return fmt.Errorf("%w: cannot set key %q on %s node", ErrPayloadConflict, key, n.kind)
	}
	if child == nil {
		child = Empty()
	}
	if _, exists := n.children[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
	return nil
}

// Delete removes key from a map node. It is a no-op for other kinds.
func (n *Node) Delete(key string) {
	if n.kind != KindMap {
		return
	}
	if _, ok := n.children[key]; !ok {
		return
	}
	delete(n.children, key)
	n.keys = slices.DeleteFunc(n.keys, func(k string) bool { return k == key })
}

// Kind reports the payload kind.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindEmpty
	}
	return n.kind
}

// Get returns the child stored under key, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil || n.kind != KindMap {
		return nil
	}
	return n.children[key]
}

// Index returns the i-th list item, or nil when n is not a list or i is out of range.
func (n *Node) Index(i int) *Node {
	if n == nil || n.kind != KindList || i < 0 || i >= len(n.items) {
		return nil
	}
	return n.items[i]
}

// Len returns the number of list items or map children.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case KindList:
		return len(n.items)
	case KindMap:
		return len(n.children)
	}
	return 0
}

// Keys returns the map keys in insertion order.
func (n *Node) Keys() []string {
	if n == nil || n.kind != KindMap {
		return nil
	}
	return slices.Clone(n.keys)
}

// Items returns the list items. The slice is a copy; the nodes are shared.
func (n *Node) Items() []*Node {
	if n == nil || n.kind != KindList {
		return nil
	}
	return slices.Clone(n.items)
}

// Value returns the scalar value, or nil for non-scalar nodes.
func (n *Node) Value() any {
	if n == nil || n.kind != KindScalar {
		return nil
	}
	return n.scalar
}

// HasPayload reports whether the node carries a scalar, a non-empty list or a
// non-empty map.
func (n *Node) HasPayload() bool {
	if n == nil {
		return false
	}
	switch n.kind {
	case KindScalar:
		return true
	case KindList:
		return len(n.items) > 0
	case KindMap:
		return len(n.children) > 0
	}
	return false
}

// IsEmpty reports whether the node has no payload, no link, no tags and is not
// explicit. Pruning removes such nodes.
func (n *Node) IsEmpty() bool {
	if n == nil {
		return true
	}
	return !n.HasPayload() && n.Link == "" && !n.Explicit && len(n.Tags) == 0
}

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag string) bool {
	return n != nil && slices.Contains(n.Tags, tag)
}

// Printable reports whether the node has a textual form: a scalar, or a list.
func (n *Node) Printable() bool {
	k := n.Kind()
	return k == KindScalar || k == KindList
}

// Text returns the textual form of the node. Lists render their items joined
// with ", "; maps and empty nodes render as "".
func (n *Node) Text() string {
	switch n.Kind() {
	case KindScalar:
		return formatScalar(n.scalar)
	case KindList:
		parts := make([]string, 0, len(n.items))
		for _, it := range n.items {
			parts = append(parts, it.Text())
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := n.shallow()
	switch n.kind {
	case KindList:
		c.items = make([]*Node, len(n.items))
		for i, it := range n.items {
			c.items[i] = it.Clone()
		}
	case KindMap:
		c.children = make(map[string]*Node, len(n.children))
		c.keys = slices.Clone(n.keys)
		for k, v := range n.children {
			c.children[k] = v.Clone()
		}
	}
	return c
}

// shallow copies the node header. Children and items are shared with n.
func (n *Node) shallow() *Node {
	return &Node{
		kind:     n.kind,
		scalar:   n.scalar,
		items:    n.items,
		children: n.children,
		keys:     n.keys,
		Tags:     slices.Clone(n.Tags),
		Link:     n.Link,
		Explicit: n.Explicit,
	}
}

// withMeta returns an empty node carrying the metadata of n.
func (n *Node) withMeta() *Node {
	return &Node{
		Tags:     slices.Clone(n.Tags),
		Link:     n.Link,
		Explicit: n.Explicit,
	}
}

// EveryTag returns all tags used anywhere in the tree, in the order they are
// first encountered.
func (n *Node) EveryTag() []string {
	var tags []string
	seen := map[string]struct{}{}
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur == nil {
			return
		}
		for _, t := range cur.Tags {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tags = append(tags, t)
			}
		}
		switch cur.kind {
		case KindList:
			for _, it := range cur.items {
				walk(it)
			}
		case KindMap:
			for _, k := range cur.keys {
				walk(cur.children[k])
			}
		}
	}
	walk(n)
	return tags
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
