// CLAUDE:SUMMARY Export des documents : rendu HTML de l'arbre de contenu, markdown via html-to-markdown, docx OOXML minimal.

// Package export renders a document content tree to HTML, markdown and docx.
package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/hazyhaar/cahier/docimport"
)

// HTML renders the content tree as an HTML fragment. Unknown node types are
// skipped rather than failing the whole export.
func HTML(doc docimport.Node) string {
	var b strings.Builder
	for _, child := range doc.Content {
		renderNode(&b, child)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n docimport.Node) {
	switch n.Type {
	case docimport.NodeHeading:
		level := 1
		if n.Attrs != nil && n.Attrs.Level > 0 {
			level = n.Attrs.Level
		}
		if n.Attrs != nil && n.Attrs.ID != "" {
			fmt.Fprintf(b, `<h%d id=%q>`, level, n.Attrs.ID)
		} else {
			fmt.Fprintf(b, "<h%d>", level)
		}
		renderInline(b, n.Content)
		fmt.Fprintf(b, "</h%d>\n", level)

	case docimport.NodeParagraph:
		b.WriteString("<p>")
		renderInline(b, n.Content)
		b.WriteString("</p>\n")

	case docimport.NodeBulletList:
		b.WriteString("<ul>\n")
		for _, item := range n.Content {
			renderNode(b, item)
		}
		b.WriteString("</ul>\n")

	case docimport.NodeOrderedList:
		b.WriteString("<ol>\n")
		for _, item := range n.Content {
			renderNode(b, item)
		}
		b.WriteString("</ol>\n")

	case docimport.NodeListItem:
		b.WriteString("<li>")
		for _, child := range n.Content {
			// A list item holding a single paragraph renders inline.
			if child.Type == docimport.NodeParagraph {
				renderInline(b, child.Content)
			} else {
				renderNode(b, child)
			}
		}
		b.WriteString("</li>\n")

	case docimport.NodeTable:
		b.WriteString("<table>\n")
		for _, row := range n.Content {
			renderNode(b, row)
		}
		b.WriteString("</table>\n")

	case docimport.NodeTableRow:
		b.WriteString("<tr>")
		for _, cell := range n.Content {
			renderNode(b, cell)
		}
		b.WriteString("</tr>\n")

	case docimport.NodeTableCell:
		b.WriteString("<td>")
		for i, para := range n.Content {
			if i > 0 {
				b.WriteString("<br>")
			}
			renderInline(b, para.Content)
		}
		b.WriteString("</td>")

	case docimport.NodeText:
		renderText(b, n)
	}
}

func renderInline(b *strings.Builder, nodes []docimport.Node) {
	for _, n := range nodes {
		if n.Type == docimport.NodeText {
			renderText(b, n)
		}
	}
}

var markTags = map[docimport.Mark][2]string{
	docimport.MarkBold:      {"<strong>", "</strong>"},
	docimport.MarkItalic:    {"<em>", "</em>"},
	docimport.MarkUnderline: {"<u>", "</u>"},
	docimport.MarkStrike:    {"<s>", "</s>"},
}

func renderText(b *strings.Builder, n docimport.Node) {
	for _, m := range n.Marks {
		if tags, ok := markTags[m]; ok {
			b.WriteString(tags[0])
		}
	}
	b.WriteString(html.EscapeString(n.Text))
	for i := len(n.Marks) - 1; i >= 0; i-- {
		if tags, ok := markTags[n.Marks[i]]; ok {
			b.WriteString(tags[1])
		}
	}
}
