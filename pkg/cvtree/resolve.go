package cvtree

import (
	"strconv"
	"strings"
)

// PathSeparator separates path segments.
const PathSeparator = "."

// Resolve walks path from root and returns the node it addresses, or nil when
// any segment misses. A segment that parses as a non-negative integer indexes a
// list; every other segment is a map key.
//
// When the last segment is a map key and the node found there has no link of
// its own, it inherits the link of the map it was read from. The returned node
// is then a shallow copy and the tree itself is left untouched.
func Resolve(root *Node, path string) *Node {
	if root == nil || path == "" {
		return nil
	}

	segments := strings.Split(path, PathSeparator)
	cur := root
	for i, seg := range segments {
		if idx, err := strconv.ParseUint(seg, 10, 0); err == nil {
			if cur.kind != KindList || idx >= uint64(len(cur.items)) {
				return nil
			}
			cur = cur.items[idx]
			continue
		}

		next := cur.Get(seg)
		if next == nil {
			return nil
		}
		if i == len(segments)-1 && next.Link == "" && cur.Link != "" {
			inherited := next.shallow()
			inherited.Link = cur.Link
			next = inherited
		}
		cur = next
	}
	return cur
}

// LastSegment returns the final segment of path.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, PathSeparator); i >= 0 {
		return path[i+1:]
	}
	return path
}
