package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements start a new line when rendered as text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Tr: true, atom.Table: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Pre: true, atom.Hr: true,
}

// skippedElements never contribute text.
var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true, atom.Head: true,
}

// HTMLToText strips markup from s, decodes entities and keeps block
// boundaries as line breaks. Whitespace inside a line is collapsed.
func HTMLToText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// The tokenizer accepts any input; a parse error means a broken reader.
		return collapse(s)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.DataAtom] {
				return
			}
			if blockElements[n.DataAtom] {
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	return collapse(b.String())
}

// BlocksToText concatenates the texts of a block document in reading order,
// one block per line. doc may be the document object or a JSON string
// holding it. Inline markup inside block texts is stripped.
func BlocksToText(doc gjson.Result) string {
	if doc.Type == gjson.String {
		doc = gjson.Parse(doc.Str)
	}

	var lines []string
	doc.Get("blocks").ForEach(func(_, block gjson.Result) bool {
		data := block.Get("data")
		if text := data.Get("text"); text.Exists() {
			lines = append(lines, HTMLToText(text.String()))
		}
		data.Get("items").ForEach(func(_, item gjson.Result) bool {
			if item.IsObject() {
				item = item.Get("content")
			}
			lines = append(lines, HTMLToText(item.String()))
			return true
		})
		return true
	})

	return collapse(strings.Join(lines, "\n"))
}

// collapse squeezes runs of whitespace within lines and drops empty lines.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// renderText reduces v to plain text according to format.
func renderText(v gjson.Result, format TextFormat) string {
	switch format {
	case FormatHTML:
		return HTMLToText(v.String())
	case FormatBlocks:
		return BlocksToText(v)
	default:
		return strings.TrimSpace(v.String())
	}
}
