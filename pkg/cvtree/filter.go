package cvtree

import (
	"slices"
	"strings"
)

// ExcludePrefix marks a requested tag as an exclusion.
const ExcludePrefix = "!"

// TagFilter is a parsed audience selection. A node passes when it carries none
// of the Excluded tags and, if it is explicit, at least one of the Included tags.
type TagFilter struct {
	Included []string
	Excluded []string
}

// ParseTags splits requested tags into inclusions and exclusions. Entries
// starting with "!" are exclusions with the prefix removed. Blank entries are
// ignored.
func ParseTags(requested []string) TagFilter {
	var f TagFilter
	for _, t := range requested {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(t, ExcludePrefix); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				f.Excluded = append(f.Excluded, rest)
			}
			continue
		}
		f.Included = append(f.Included, t)
	}
	return f
}

// Filter returns a new tree holding only the parts of n that pass requested.
// It is shorthand for ParseTags(requested).Apply(n).
func Filter(n *Node, requested []string) *Node {
	return ParseTags(requested).Apply(n)
}

// Apply filters n and prunes the result. n is never modified. The result may
// be empty; that is a valid outcome.
func (f TagFilter) Apply(n *Node) *Node {
	if n == nil {
		return Empty()
	}

	if n.Explicit && !f.includes(n) {
		return Empty()
	}
	if f.excludes(n) {
		return Empty()
	}

	switch n.kind {
	case KindScalar:
		// Leaf rule: a tagged leaf must match an included tag when any are
		// requested. Untagged leaves always pass.
		if len(f.Included) > 0 && len(n.Tags) > 0 && !f.includes(n) {
			return Empty()
		}
		return n.Clone()

	case KindMap:
		out := n.withMeta()
		for _, k := range n.keys {
			child := f.Apply(n.children[k])
			if child.HasPayload() {
				_ = out.Set(k, child)
			}
		}
		return Prune(out)

	case KindList:
		out := n.withMeta()
		out.kind = KindList
		for _, it := range n.items {
			child := f.Apply(it)
			if child.HasPayload() {
				out.items = append(out.items, child)
			}
		}
		return Prune(out)
	}

	return n.withMeta()
}

// includes reports whether n carries at least one included tag.
func (f TagFilter) includes(n *Node) bool {
	return slices.ContainsFunc(n.Tags, func(t string) bool {
		return slices.Contains(f.Included, t)
	})
}

// excludes reports whether n carries at least one excluded tag.
func (f TagFilter) excludes(n *Node) bool {
	return slices.ContainsFunc(n.Tags, func(t string) bool {
		return slices.Contains(f.Excluded, t)
	})
}

// Prune returns a copy of n with every empty subtree removed: map entries and
// list items whose pruned value is empty are dropped. A map or list left with
// no entries loses its payload.
func Prune(n *Node) *Node {
	if n == nil {
		return Empty()
	}
	switch n.kind {
	case KindMap:
		out := n.withMeta()
		for _, k := range n.keys {
			child := Prune(n.children[k])
			if !child.IsEmpty() {
				_ = out.Set(k, child)
			}
		}
		return out
	case KindList:
		out := n.withMeta()
		for _, it := range n.items {
			child := Prune(it)
			if !child.IsEmpty() {
				out.items = append(out.items, child)
			}
		}
		if len(out.items) > 0 {
			out.kind = KindList
		}
		return out
	case KindScalar:
		return n.Clone()
	}
	return n.withMeta()
}
