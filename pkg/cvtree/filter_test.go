package cvtree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTags(t *testing.T) {
	got := ParseTags([]string{"cs", "!private", " ", "!", "ml "})
	want := TagFilter{Included: []string{"cs", "ml"}, Excluded: []string{"private"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseTags() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_ExplicitSiblings(t *testing.T) {
	root := mustParse(t, `
skills:
  value: [Go, Python]
  tags: []
research:
  value: Analytical engines
  explicit: true
  tags: [cs]
modelling:
  value: Neural nets
  explicit: true
  tags: [ml]
`)
	got := Filter(root, []string{"cs"}).ToValue()
	want := map[string]any{
		"skills": []any{"Go", "Python"},
		"research": map[string]any{
			"value":    "Analytical engines",
			"tags":     []any{"cs"},
			"explicit": true,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_NoTagsDropsExplicit(t *testing.T) {
	root := mustParse(t, sampleCV)
	got := Filter(root, nil)

	if got.Get("research") != nil || got.Get("modelling") != nil {
		t.Error("explicit nodes must not survive an empty filter")
	}
	for _, key := range []string{"name", "profiles", "skills", "work", "education"} {
		if got.Get(key) == nil {
			t.Errorf("tagless or non-explicit key %q should be retained", key)
		}
	}
	if n := got.Get("work").Len(); n != 2 {
		t.Errorf("expected both work entries without exclusions, got %d", n)
	}
}

func TestFilter_Exclusion(t *testing.T) {
	root := mustParse(t, sampleCV)
	got := Filter(root, []string{"!private"})

	work := got.Get("work")
	if work.Len() != 1 {
		t.Fatalf("expected 1 work entry after excluding private, got %d", work.Len())
	}
	if c := work.Index(0).Get("company").Text(); c != "Babbage & Co" {
		t.Errorf("unexpected surviving company %q", c)
	}
	highlights := work.Index(0).Get("highlights")
	if highlights.Len() != 1 || highlights.Index(0).Text() != "Wrote the first program" {
		t.Errorf("private highlight should be removed, got %v", highlights.ToValue())
	}
}

func TestFilter_LeafRule(t *testing.T) {
	root := mustParse(t, `
tagged_leaf:
  value: only for ml
  tags: [ml]
plain_leaf: everyone
tagged_map:
  tags: [ml]
  title: Untagged child
  note:
    value: ml note
    tags: [ml]
`)
	got := Filter(root, []string{"cs"})

	if got.Get("tagged_leaf") != nil {
		t.Error("a leaf whose tags miss every included tag must be excluded")
	}
	if got.Get("plain_leaf") == nil {
		t.Error("a tagless leaf must pass a positive filter")
	}
	// A non-explicit map is not matched against included tags itself; only
	// its leaves are.
	m := got.Get("tagged_map")
	if m == nil {
		t.Fatal("non-explicit map with untagged children should survive")
	}
	if m.Get("title") == nil {
		t.Error("untagged child of tagged map should survive")
	}
	if m.Get("note") != nil {
		t.Error("tagged leaf inside tagged map should be excluded")
	}
	if !m.HasTag("ml") {
		t.Error("surviving map should keep its tags")
	}
}

func TestFilter_ExplicitWithoutTags(t *testing.T) {
	root := mustParse(t, `
hidden:
  value: never shown
  explicit: true
`)
	for _, tags := range [][]string{nil, {"cs"}, {"!cs"}, {"hidden"}} {
		if got := Filter(root, tags); got.Get("hidden") != nil {
			t.Errorf("explicit node without tags selected by %v", tags)
		}
	}
}

func TestFilter_ListOrder(t *testing.T) {
	root := mustParse(t, `
items:
  - one
  - value: two
    tags: [x]
  - three
  - value: four
    tags: [y]
`)
	got := Filter(root, []string{"y"}).Get("items")
	want := []any{"one", "three", map[string]any{"value": "four", "tags": []any{"y"}}}
	if diff := cmp.Diff(want, got.ToValue()); diff != "" {
		t.Errorf("list filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_KeepsLinks(t *testing.T) {
	root := mustParse(t, sampleCV)
	got := Filter(root, []string{"cs"})
	if link := got.Get("profiles").Link; link != "https://example.com/ada" {
		t.Errorf("map link lost during filtering, got %q", link)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	root := mustParse(t, sampleCV)
	for _, tags := range [][]string{nil, {"cs"}, {"ml"}, {"!private"}, {"cs", "!private"}, {"private"}} {
		once := Filter(root, tags)
		twice := Filter(once, tags)
		if diff := cmp.Diff(once.ToValue(), twice.ToValue()); diff != "" {
			t.Errorf("Filter(%v) not idempotent (-once +twice):\n%s", tags, diff)
		}
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	root := mustParse(t, sampleCV)
	before := root.ToValue()
	_ = Filter(root, []string{"cs", "!private"})
	if diff := cmp.Diff(before, root.ToValue()); diff != "" {
		t.Errorf("Filter() modified its input (-before +after):\n%s", diff)
	}
}

func TestFilter_EmptyResult(t *testing.T) {
	root := mustParse(t, `
secret:
  value: x
  explicit: true
  tags: [a]
`)
	got := Filter(root, []string{"b"})
	if !got.IsEmpty() {
		t.Errorf("expected empty result, got %v", got.ToValue())
	}
}

func TestPrune(t *testing.T) {
	root := NewMap()
	_ = root.Set("keep", String("v"))
	_ = root.Set("drop", Empty())
	tagged := Empty()
	tagged.Tags = []string{"t"}
	_ = root.Set("tagged", tagged)
	nested := NewMap()
	_ = nested.Set("inner", List(Empty(), Empty()))
	_ = root.Set("nested", nested)

	got := Prune(root)
	if got.Get("drop") != nil || got.Get("nested") != nil {
		t.Errorf("empty subtrees should be pruned, got keys %v", got.Keys())
	}
	if got.Get("keep") == nil || got.Get("tagged") == nil {
		t.Errorf("non-empty entries should be kept, got keys %v", got.Keys())
	}
	if root.Get("drop") == nil {
		t.Error("Prune must not modify its input")
	}

	empty := NewMap()
	_ = empty.Set("a", NewMap())
	_ = empty.Set("b", List())
	if !Prune(empty).IsEmpty() {
		t.Error("tree with nothing reachable should prune to empty")
	}
}
