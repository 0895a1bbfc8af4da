package templating

import (
	"bytes"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/CTAG07/cvforge/pkg/cvtree"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Renderer binds a value tree into HTML markup. It understands exactly two
// directives: a binding attribute that replaces an element's content with a
// value, and a repeat attribute that clones an element once per item of a
// collection. A Renderer holds no per-render state and may be reused.
type Renderer struct {
	bindAttr   string
	repeatAttr string
	logger     *slog.Logger
}

// NewRenderer creates a Renderer for the directive names in config. Blank names
// fall back to DefaultBindAttr and DefaultRepeatAttr.
func NewRenderer(config TemplateConfig) *Renderer {
	config = config.withDefaults()
	return &Renderer{
		bindAttr:   config.BindAttr,
		repeatAttr: config.RepeatAttr,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Renderer. By default, all logs are discarded.
// Unresolved paths are logged at debug level.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Render renders a copy of root against data and returns it as a document
// node. root itself is never modified. A root that is not a document node is
// placed inside a new document so that a repeated root element has somewhere
// to expand into.
func (r *Renderer) Render(root *html.Node, data *cvtree.Node) *html.Node {
	var doc *html.Node
	if root.Type == html.DocumentNode {
		doc = cloneNode(root)
	} else {
		doc = &html.Node{Type: html.DocumentNode}
		doc.AppendChild(cloneNode(root))
	}
	r.process(doc, data)
	return doc
}

// RenderString parses markup, renders it against data and serializes the
// result. Markup starting with a doctype or <html> tag is parsed as a full
// document; anything else is parsed as a body fragment and rendered without
// the implied html, head and body elements.
func (r *Renderer) RenderString(markup string, data *cvtree.Node) (string, error) {
	root, err := parseMarkup(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err = html.Render(&buf, r.Render(root, data)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// process renders n in place, depth first and pre-order. Children are visited
// from a snapshot so that repeat expansion can insert and remove siblings.
func (r *Renderer) process(n *html.Node, ctx *cvtree.Node) {
	if n.Type == html.ElementNode {
		if path, ok := getAttr(n, r.repeatAttr); ok {
			r.repeat(n, ctx, path)
			return
		}
		if path, ok := getAttr(n, r.bindAttr); ok {
			removeAttr(n, r.bindAttr)
			r.bind(n, cvtree.Resolve(ctx, path), path)
		}
	}

	for _, c := range childNodes(n) {
		r.process(c, ctx)
	}
}

// bind replaces the content of n with the text of value. A missing or
// non-printable value leaves n untouched.
func (r *Renderer) bind(n *html.Node, value *cvtree.Node, path string) {
	if value == nil || !value.Printable() {
		r.logger.Debug("Binding left unresolved", "path", path, "element", n.Data)
		return
	}
	setContent(n, value.Text(), value.Link)
}

// repeat replaces n with one rendered clone per item of the collection at path.
func (r *Renderer) repeat(n *html.Node, ctx *cvtree.Node, path string) {
	parent := n.Parent
	if parent == nil {
		return
	}

	items := r.collect(ctx, path)
	if len(items) == 0 {
		r.logger.Debug("Repeat over empty collection, removing element", "path", path, "element", n.Data)
		parent.RemoveChild(n)
		return
	}

	tmpl := cloneNode(n)
	removeAttr(tmpl, r.repeatAttr)
	for _, item := range items {
		clone := cloneNode(tmpl)
		r.rebind(clone, item, path)
		r.process(clone, item)
		parent.InsertBefore(clone, n)
	}
	parent.RemoveChild(n)
}

// collect resolves the collection a repeat directive iterates over. When the
// full path misses, its last segment is tried against the same context.
func (r *Renderer) collect(ctx *cvtree.Node, path string) []*cvtree.Node {
	value := cvtree.Resolve(ctx, path)
	if value == nil && strings.Contains(path, cvtree.PathSeparator) {
		value = cvtree.Resolve(ctx, cvtree.LastSegment(path))
	}

	switch value.Kind() {
	case cvtree.KindList:
		return value.Items()
	case cvtree.KindScalar:
		s, ok := value.Value().(string)
		if !ok {
			return []*cvtree.Node{value}
		}
		if s == "" {
			return nil
		}
		parts := strings.Split(s, ",")
		items := make([]*cvtree.Node, 0, len(parts))
		for _, p := range parts {
			items = append(items, cvtree.String(strings.TrimSpace(p)))
		}
		return items
	}
	return nil
}

// rebind prepares the bindings inside a fresh clone for rendering against
// item. A binding whose last segment names the collection itself is filled
// with the item directly; a binding below the collection path is rewritten
// relative to the item; anything else is left for normal resolution.
func (r *Renderer) rebind(clone *html.Node, item *cvtree.Node, path string) {
	selector := "[" + r.bindAttr + "]"
	last := cvtree.LastSegment(path)
	prefix := path + cvtree.PathSeparator

	goquery.NewDocumentFromNode(clone).
		Find(selector).
		AddBackFiltered(selector).
		Each(func(_ int, s *goquery.Selection) {
			bound, _ := s.Attr(r.bindAttr)
			switch {
			case cvtree.LastSegment(bound) == last:
				s.RemoveAttr(r.bindAttr)
				r.bind(s.Get(0), item, bound)
			case strings.HasPrefix(bound, prefix):
				s.SetAttr(r.bindAttr, strings.TrimPrefix(bound, prefix))
			}
		})
}

// setContent replaces the children of n with text parsed as HTML in the
// context of n. A non-empty link wraps the content in an anchor.
func setContent(n *html.Node, text, link string) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}

	target := n
	if link != "" {
		a := &html.Node{
			Type:     html.ElementNode,
			Data:     "a",
			DataAtom: atom.A,
			Attr:     []html.Attribute{{Key: "href", Val: link}},
		}
		n.AppendChild(a)
		target = a
	}

	nodes, err := html.ParseFragment(strings.NewReader(text), target)
	if err != nil {
		target.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		return
	}
	for _, c := range nodes {
		target.AppendChild(c)
	}
}

// parseMarkup parses a full document or, failing a doctype/<html> prefix, a
// body fragment placed directly under a document node.
func parseMarkup(r io.Reader) (*html.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if isDocument(src) {
		return html.Parse(bytes.NewReader(src))
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(src), body)
	if err != nil {
		return nil, err
	}
	doc := &html.Node{Type: html.DocumentNode}
	for _, c := range nodes {
		doc.AppendChild(c)
	}
	return doc, nil
}

func isDocument(src []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(src[:min(len(src), 512)])))
	for strings.HasPrefix(head, "<!--") {
		end := strings.Index(head, "-->")
		if end < 0 {
			return false
		}
		head = strings.TrimSpace(head[end+3:])
	}
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      slices.Clone(n.Attr),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}
