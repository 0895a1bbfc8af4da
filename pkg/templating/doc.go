/*
Package templating renders value trees from package cvtree into HTML templates.

Templates are plain HTML. Two attributes act as directives:

	<h1 value-of="name"></h1>
	<li repeat-for="work"><span value-of="work.company"></span></li>

value-of replaces an element's content with the value at the given path. The
value is inserted as HTML, and a value carrying a link is wrapped in an anchor.
repeat-for clones an element once per item of a list, or per comma separated
part of a string, and renders each clone against its item. A repeat over
nothing removes the element. Both attributes are removed from the output.

A TemplateManager loads a directory of templates, optionally including Markdown
files, and a Watcher reports changes so they can be reloaded.
*/
package templating
