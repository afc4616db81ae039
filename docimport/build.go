// CLAUDE:SUMMARY Converts classified blocks into content nodes and emits section descriptors for headings.
package docimport

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/cahier/idgen"
)

// sectionNumberRe splits heading text into a dotted numeric prefix, optional
// separator punctuation, and the remaining title.
var sectionNumberRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s*[.:\-]?\s*(.+)$`)

// builder converts blocks one at a time. The synthesized-number counter and
// the running section list are the only cross-block state, and both live
// here so each import call is fully independent of every other.
type builder struct {
	anchor   idgen.Generator
	counter  int
	sections []Section
}

// buildNodes runs the builder over all blocks and returns the top-level node
// sequence plus the section outline. Both return values are always non-nil.
func buildNodes(blocks []rawBlock, anchor idgen.Generator) ([]Node, []Section) {
	b := &builder{anchor: anchor, sections: []Section{}}
	nodes := make([]Node, 0, len(blocks))
	for _, blk := range blocks {
		if n, ok := b.block(blk); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, b.sections
}

// block converts one raw block. The second return value is false when the
// block produces no node (blank paragraph, table without rows).
func (b *builder) block(blk rawBlock) (Node, bool) {
	if blk.table != nil {
		return b.table(blk.table)
	}
	p := blk.para
	switch classify(p) {
	case kindHeading:
		return b.heading(p), true
	case kindBullet:
		return b.listItem(NodeBulletList, p), true
	case kindOrdered:
		return b.listItem(NodeOrderedList, p), true
	case kindParagraph:
		return Node{Type: NodeParagraph, Content: b.inline(p)}, true
	default:
		return Node{}, false
	}
}

// heading emits the section descriptor and the heading node. When the text
// carries no numeric prefix the section number is synthesized from the
// per-import counter and the full text becomes the title.
func (b *builder) heading(p *rawParagraph) Node {
	anchor := b.anchor()
	level := headingLevel(p.style)
	text := strings.TrimSpace(p.text)

	number, title := "", text
	if m := sectionNumberRe.FindStringSubmatch(text); m != nil {
		number, title = m[1], m[2]
	} else {
		b.counter++
		number = strconv.Itoa(b.counter)
	}

	b.sections = append(b.sections, Section{
		Number:   number,
		Title:    title,
		Level:    level,
		AnchorID: anchor,
	})
	return Node{
		Type:    NodeHeading,
		Attrs:   &Attrs{Level: level, ID: anchor},
		Content: b.inline(p),
	}
}

// listItem wraps a single item in its own one-item list container. Adjacent
// same-kind containers are merged later by mergeAdjacentLists, which keeps
// this a pure per-block conversion.
func (b *builder) listItem(kind NodeType, p *rawParagraph) Node {
	para := Node{Type: NodeParagraph, Content: b.inline(p)}
	item := Node{Type: NodeListItem, Content: []Node{para}}
	return Node{Type: kind, Content: []Node{item}}
}

// inline converts the paragraph's runs into text nodes. Marks are appended
// in the fixed order bold, italic, underline, strike; a run with no active
// flags carries no marks at all. A paragraph with no usable runs but
// non-blank text falls back to one unmarked text node holding the whole
// paragraph text.
func (b *builder) inline(p *rawParagraph) []Node {
	nodes := make([]Node, 0, len(p.runs))
	for _, r := range p.runs {
		if r.text == "" {
			continue
		}
		n := Node{Type: NodeText, Text: r.text}
		if r.bold {
			n.Marks = append(n.Marks, MarkBold)
		}
		if r.italic {
			n.Marks = append(n.Marks, MarkItalic)
		}
		if r.underline {
			n.Marks = append(n.Marks, MarkUnderline)
		}
		if r.strike {
			n.Marks = append(n.Marks, MarkStrike)
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 && strings.TrimSpace(p.text) != "" {
		nodes = append(nodes, Node{Type: NodeText, Text: p.text})
	}
	return nodes
}

// table converts rows then cells in order. A table with zero rows converts
// to nothing rather than an empty table node.
func (b *builder) table(t *rawTable) (Node, bool) {
	if len(t.rows) == 0 {
		return Node{}, false
	}
	rows := make([]Node, 0, len(t.rows))
	for _, r := range t.rows {
		cells := make([]Node, 0, len(r.cells))
		for _, c := range r.cells {
			cells = append(cells, cellNode(c))
		}
		rows = append(rows, Node{Type: NodeTableRow, Content: cells})
	}
	return Node{Type: NodeTable, Content: rows}, true
}

// cellNode joins the cell's non-blank paragraph texts with newlines into one
// paragraph-with-one-text-node. A blank cell yields a paragraph with empty
// content.
func cellNode(c rawCell) Node {
	parts := make([]string, 0, len(c.paras))
	for _, p := range c.paras {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	para := Node{Type: NodeParagraph, Content: []Node{}}
	if len(parts) > 0 {
		para.Content = []Node{{Type: NodeText, Text: strings.Join(parts, "\n")}}
	}
	return Node{Type: NodeTableCell, Content: []Node{para}}
}
