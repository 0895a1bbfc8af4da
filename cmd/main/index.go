package main

import (
	"net/url"
	"strconv"

	"github.com/CTAG07/cvforge/pkg/archive"
	g "maragu.dev/gomponents"
	c "maragu.dev/gomponents/components"
	h "maragu.dev/gomponents/html"
)

const indexStyle = `body{font-family:sans-serif;max-width:60rem;margin:2rem auto}` +
	`li{margin:.3rem 0}a.tag{margin-left:.5rem;font-size:.9em}` +
	`table{border-collapse:collapse}td,th{padding:.2rem .6rem;border-bottom:1px solid #ddd;text-align:left}`

// previewURL links a preview endpoint for a template and tag set.
func previewURL(path, template string, tags ...string) string {
	q := url.Values{"template": {template}}
	if len(tags) > 0 {
		q.Set("tags", audience(tags))
	}
	return path + "?" + q.Encode()
}

// indexPage lists the loaded templates with per-tag preview links and the
// most recent archived renders.
func indexPage(templates, tags []string, renders []archive.Render) g.Node {
	return c.HTML5(c.HTML5Props{
		Title:    "cvforge",
		Language: "en",
		Head:     []g.Node{h.StyleEl(g.Raw(indexStyle))},
		Body: []g.Node{
			h.H1(g.Text("cvforge")),
			h.H2(g.Text("Templates")),
			g.If(len(templates) == 0, h.P(g.Text("No templates found."))),
			h.Ul(g.Map(templates, func(name string) g.Node {
				return templateItem(name, tags)
			})),
			h.H2(g.Text("Recent renders")),
			g.If(len(renders) == 0, h.P(g.Text("Nothing archived yet."))),
			g.If(len(renders) > 0, renderTable(renders)),
		},
	})
}

func templateItem(name string, tags []string) g.Node {
	return h.Li(
		h.A(h.Href(previewURL("/preview", name)), g.Text(name)),
		h.A(h.Class("tag"), h.Href(previewURL("/pdf", name)), g.Text("pdf")),
		g.Map(tags, func(tag string) g.Node {
			return h.A(h.Class("tag"), h.Href(previewURL("/preview", name, tag)), g.Text("#"+tag))
		}),
	)
}

func renderTable(renders []archive.Render) g.Node {
	return h.Table(
		h.THead(h.Tr(
			h.Th(g.Text("ID")),
			h.Th(g.Text("Template")),
			h.Th(g.Text("Audience")),
			h.Th(g.Text("Format")),
			h.Th(g.Text("Size")),
			h.Th(g.Text("Created")),
		)),
		h.TBody(g.Map(renders, func(r archive.Render) g.Node {
			id := strconv.FormatInt(r.ID, 10)
			return h.Tr(
				h.Td(h.A(h.Href("/renders/"+id), g.Text(id))),
				h.Td(g.Text(r.Template)),
				h.Td(g.Text(r.Audience)),
				h.Td(g.Text(r.Format)),
				h.Td(g.Text(strconv.Itoa(r.Size))),
				h.Td(g.Text(r.CreatedAt.Format("2006-01-02 15:04:05"))),
			)
		})),
	)
}
