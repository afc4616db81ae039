// CLAUDE:SUMMARY Defines Node, NodeType, Mark, Section, Metadata, and Result types for the docimport pipeline.
package docimport

// NodeType identifies the kind of a content tree node. Walkers and renderers
// switch exhaustively over these constants.
type NodeType string

const (
	NodeDoc         NodeType = "doc"
	NodeParagraph   NodeType = "paragraph"
	NodeHeading     NodeType = "heading"
	NodeBulletList  NodeType = "bulletList"
	NodeOrderedList NodeType = "orderedList"
	NodeListItem    NodeType = "listItem"
	NodeTable       NodeType = "table"
	NodeTableRow    NodeType = "tableRow"
	NodeTableCell   NodeType = "tableCell"
	NodeText        NodeType = "text"
)

// Mark is an inline text style tag. When several marks apply to one run they
// appear in the fixed order bold, italic, underline, strike.
type Mark string

const (
	MarkBold      Mark = "bold"
	MarkItalic    Mark = "italic"
	MarkUnderline Mark = "underline"
	MarkStrike    Mark = "strike"
)

// Attrs carries type-specific node attributes. Only heading nodes use it:
// Level is the heading level 1-6 and ID its stable anchor.
type Attrs struct {
	Level int    `json:"level,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Node is one node of the structured rich-text tree. Only text nodes carry
// literal text; every other type carries Content. Content uses omitzero so a
// non-nil empty slice serializes as "content": [] while nil is omitted —
// container nodes must always be built with a non-nil Content.
type Node struct {
	Type    NodeType `json:"type"`
	Attrs   *Attrs   `json:"attrs,omitempty"`
	Content []Node   `json:"content,omitzero"`
	Text    string   `json:"text,omitempty"`
	Marks   []Mark   `json:"marks,omitempty"`
}

// Section is the outline entry derived from one detected heading.
//
// Number is a dotted numeric string ("1", "1.2", "3.2.1") extracted from the
// heading text, or a synthesized flat integer when no numeric prefix is
// present. AnchorID is unique within one import and generated independently
// of Number, which is accepted as-is — never validated for uniqueness or for
// nesting consistency against Level.
type Section struct {
	Number   string `json:"section_number"`
	Title    string `json:"title"`
	Level    int    `json:"level"`
	AnchorID string `json:"anchor_id"`
}

// Metadata holds document-level descriptive fields lifted from the source
// file's property block. Every field defaults to empty when absent.
type Metadata struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Created  string `json:"created"`
	Modified string `json:"modified"`
	Keywords string `json:"keywords"`
}

// Result is the pipeline output: the content tree rooted at a single doc
// node, the ordered section outline, and the document metadata. Constructed
// fresh per import call; the importer holds no state across calls.
type Result struct {
	Content  Node      `json:"content"`
	Sections []Section `json:"sections"`
	Metadata Metadata  `json:"metadata"`
}
