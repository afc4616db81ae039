package docimport

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const docxHeader = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const docxFooter = `</w:body></w:document>`

// buildDocx assembles a minimal docx archive in memory from body XML and
// optional extra archive parts (name → content).
func buildDocx(t *testing.T, bodyXML string, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(docxHeader + bodyXML + docxFooter))
	for name, content := range parts {
		pw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		pw.Write([]byte(content))
	}
	w.Close()
	return buf.Bytes()
}

func heading(style, text string) string {
	return `<w:p><w:pPr><w:pStyle w:val="` + style + `"/></w:pPr><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestImport_Basic(t *testing.T) {
	data := buildDocx(t, heading("Heading1", "1. Introduction")+
		para("Body text.")+
		heading("Heading2", "1.1 Scope")+
		para("More content."), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}

	if res.Content.Type != NodeDoc {
		t.Fatalf("root type = %q, want doc", res.Content.Type)
	}
	if len(res.Content.Content) != 4 {
		t.Fatalf("expected 4 top-level nodes, got %d", len(res.Content.Content))
	}
	if len(res.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(res.Sections))
	}
	if res.Sections[0].Number != "1" || res.Sections[0].Title != "Introduction" {
		t.Errorf("section 0 = %+v", res.Sections[0])
	}
	if res.Sections[1].Number != "1.1" || res.Sections[1].Title != "Scope" || res.Sections[1].Level != 2 {
		t.Errorf("section 1 = %+v", res.Sections[1])
	}
}

func TestImport_Determinism(t *testing.T) {
	// WHAT: Two imports of the same bytes agree on everything except the
	// random anchor ids, which must be unique within each run.
	data := buildDocx(t, heading("Heading1", "1. Alpha")+
		para("• bullet")+
		heading("Heading2", "Beta")+
		para("text"), nil)

	imp := New(Config{})
	first, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, s := range first.Sections {
		if len(s.AnchorID) != 8 {
			t.Errorf("anchor %q: want 8 characters", s.AnchorID)
		}
		if seen[s.AnchorID] {
			t.Errorf("duplicate anchor %q within one import", s.AnchorID)
		}
		seen[s.AnchorID] = true
	}

	stripAnchors(&first.Content)
	stripAnchors(&second.Content)
	for i := range first.Sections {
		first.Sections[i].AnchorID = ""
		second.Sections[i].AnchorID = ""
	}
	if !reflect.DeepEqual(first.Content, second.Content) {
		t.Error("content trees differ beyond anchor ids")
	}
	if !reflect.DeepEqual(first.Sections, second.Sections) {
		t.Error("section lists differ beyond anchor ids")
	}
}

func stripAnchors(n *Node) {
	if n.Attrs != nil {
		n.Attrs.ID = ""
	}
	for i := range n.Content {
		stripAnchors(&n.Content[i])
	}
}

func TestImport_SectionNumberSplit(t *testing.T) {
	data := buildDocx(t, heading("Heading2", "2.1 Data Model")+
		heading("Heading1", "Overview"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(res.Sections))
	}
	if res.Sections[0].Number != "2.1" || res.Sections[0].Title != "Data Model" {
		t.Errorf("numbered heading = %+v", res.Sections[0])
	}
	// No numeric prefix: number is synthesized, title kept unchanged.
	if res.Sections[1].Number != "1" || res.Sections[1].Title != "Overview" {
		t.Errorf("unnumbered heading = %+v", res.Sections[1])
	}
}

func TestImport_SynthesizedCounterAdvances(t *testing.T) {
	data := buildDocx(t, heading("Heading1", "First")+
		heading("Heading1", "3. Numbered")+
		heading("Heading1", "Second"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	// Counter only advances on headings without a numeric prefix.
	want := []string{"1", "3", "2"}
	for i, s := range res.Sections {
		if s.Number != want[i] {
			t.Errorf("section %d number = %q, want %q", i, s.Number, want[i])
		}
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		level int
	}{
		{"Heading1", 1},
		{"Heading2", 2},
		{"Heading6", 6},
		{"Heading9", 6},
		{"Heading12", 6},
		{"Titre3", 3},
		{"Heading", 1},
		{"Titre", 1},
	}
	for _, tt := range tests {
		if got := headingLevel(tt.style); got != tt.level {
			t.Errorf("headingLevel(%q) = %d, want %d", tt.style, got, tt.level)
		}
	}
}

func TestImport_LevelClamp(t *testing.T) {
	data := buildDocx(t, heading("Heading9", "Deep")+
		heading("Heading", "Flat"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if res.Sections[0].Level != 6 {
		t.Errorf("level = %d, want clamp to 6", res.Sections[0].Level)
	}
	if res.Sections[1].Level != 1 {
		t.Errorf("level = %d, want default 1", res.Sections[1].Level)
	}
}

func TestImport_ListCoalescing(t *testing.T) {
	data := buildDocx(t, para("• one")+para("• two")+para("• three"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 {
		t.Fatalf("expected 1 merged list, got %d nodes", len(res.Content.Content))
	}
	list := res.Content.Content[0]
	if list.Type != NodeBulletList {
		t.Fatalf("type = %q, want bulletList", list.Type)
	}
	if len(list.Content) != 3 {
		t.Fatalf("expected 3 list items, got %d", len(list.Content))
	}
	for _, item := range list.Content {
		if item.Type != NodeListItem {
			t.Errorf("child type = %q, want listItem", item.Type)
		}
	}
}

func TestImport_MixedListKindsNotMerged(t *testing.T) {
	data := buildDocx(t, para("• bullet one")+para("1. numbered")+para("• bullet two"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	want := []NodeType{NodeBulletList, NodeOrderedList, NodeBulletList}
	if len(res.Content.Content) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(res.Content.Content))
	}
	for i, n := range res.Content.Content {
		if n.Type != want[i] {
			t.Errorf("node %d type = %q, want %q", i, n.Type, want[i])
		}
	}
}

func TestImport_OrderedMarkers(t *testing.T) {
	data := buildDocx(t, para("1. dot")+para("2) paren")+para("3] bracket"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 {
		t.Fatalf("expected 1 merged ordered list, got %d nodes", len(res.Content.Content))
	}
	if res.Content.Content[0].Type != NodeOrderedList {
		t.Fatalf("type = %q, want orderedList", res.Content.Content[0].Type)
	}
	if len(res.Content.Content[0].Content) != 3 {
		t.Fatalf("expected 3 items, got %d", len(res.Content.Content[0].Content))
	}
}

func TestImportFile_BaseDirConfinement(t *testing.T) {
	dir := t.TempDir()
	data := buildDocx(t, para("contenu"), nil)
	if err := os.WriteFile(filepath.Join(dir, "doc.docx"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	imp := New(Config{BaseDir: dir})
	res, err := imp.ImportFile(context.Background(), "doc.docx")
	if err != nil {
		t.Fatalf("confined import: %v", err)
	}
	if len(res.Content.Content) != 1 {
		t.Fatalf("expected 1 node, got %d", len(res.Content.Content))
	}

	if _, err := imp.ImportFile(context.Background(), "../doc.docx"); err == nil {
		t.Fatal("expected error for path escaping the base directory")
	}
}

func TestImport_OrderedMarkerLeadingSpace(t *testing.T) {
	// Word preserves leading whitespace with xml:space; the marker match
	// runs on trimmed text, so padding never demotes an ordered item.
	body := `<w:p><w:r><w:t xml:space="preserve"> 1. premier</w:t></w:r></w:p>`
	data := buildDocx(t, body, nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 || res.Content.Content[0].Type != NodeOrderedList {
		t.Fatalf("expected one orderedList, got %+v", res.Content.Content)
	}
}

func TestImport_NumberingMarkupIsBullet(t *testing.T) {
	// w:numPr on the paragraph marks a list item even without a glyph.
	body := `<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>item</w:t></w:r></w:p>`
	data := buildDocx(t, body, nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 || res.Content.Content[0].Type != NodeBulletList {
		t.Fatalf("expected one bulletList, got %+v", res.Content.Content)
	}
}

func TestImport_HeadingStyleWins(t *testing.T) {
	// A heading whose text starts with a bullet glyph stays a heading.
	data := buildDocx(t, heading("Heading1", "- Dashes as title"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 || res.Content.Content[0].Type != NodeHeading {
		t.Fatalf("expected one heading, got %+v", res.Content.Content)
	}
	if len(res.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(res.Sections))
	}
}

func TestImport_EmptyDocument(t *testing.T) {
	data := buildDocx(t, "", nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content.Type != NodeDoc {
		t.Fatalf("root type = %q, want doc", res.Content.Type)
	}
	if len(res.Content.Content) != 0 {
		t.Fatalf("expected empty content, got %d nodes", len(res.Content.Content))
	}
	if len(res.Sections) != 0 {
		t.Fatalf("expected no sections, got %d", len(res.Sections))
	}

	// The empty doc node still serializes with an explicit content array.
	out, err := json.Marshal(res.Content)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"type":"doc","content":[]}` {
		t.Errorf("doc JSON = %s", out)
	}
}

func TestImport_BlankParagraphsDiscarded(t *testing.T) {
	data := buildDocx(t, para("   ")+para("kept")+para(""), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 {
		t.Fatalf("expected 1 node, got %d", len(res.Content.Content))
	}
}

func TestImport_Marks(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:rPr><w:b/><w:i/></w:rPr><w:t>both</w:t></w:r>` +
		`<w:r><w:t>plain</w:t></w:r>` +
		`<w:r><w:rPr><w:b w:val="false"/><w:strike/><w:u w:val="single"/></w:rPr><w:t>styled</w:t></w:r>` +
		`</w:p>`
	data := buildDocx(t, body, nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	runs := res.Content.Content[0].Content
	if len(runs) != 3 {
		t.Fatalf("expected 3 text nodes, got %d", len(runs))
	}

	if !reflect.DeepEqual(runs[0].Marks, []Mark{MarkBold, MarkItalic}) {
		t.Errorf("marks = %v, want [bold italic]", runs[0].Marks)
	}
	if runs[1].Marks != nil {
		t.Errorf("unstyled run marks = %v, want none", runs[1].Marks)
	}
	// Explicit off flag is honored; underline and strike keep mark order.
	if !reflect.DeepEqual(runs[2].Marks, []Mark{MarkUnderline, MarkStrike}) {
		t.Errorf("marks = %v, want [underline strike]", runs[2].Marks)
	}

	// A run without marks omits the key entirely.
	out, err := json.Marshal(runs[1])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "marks") {
		t.Errorf("plain run JSON should omit marks: %s", out)
	}
}

func TestImport_RunlessParagraphFallback(t *testing.T) {
	data := buildDocx(t, `<w:p><w:t>bare text</w:t></w:p>`, nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	p := res.Content.Content[0]
	if p.Type != NodeParagraph || len(p.Content) != 1 {
		t.Fatalf("paragraph = %+v", p)
	}
	if p.Content[0].Text != "bare text" || p.Content[0].Marks != nil {
		t.Errorf("fallback text node = %+v", p.Content[0])
	}
}

func TestImport_TableCellJoin(t *testing.T) {
	body := `<w:tbl><w:tr>` +
		`<w:tc><w:p><w:r><w:t>Line A</w:t></w:r></w:p><w:p><w:r><w:t>Line B</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t> </w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl>`
	data := buildDocx(t, body, nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	table := res.Content.Content[0]
	if table.Type != NodeTable || len(table.Content) != 1 {
		t.Fatalf("table = %+v", table)
	}
	row := table.Content[0]
	if row.Type != NodeTableRow || len(row.Content) != 2 {
		t.Fatalf("row = %+v", row)
	}

	filled := row.Content[0].Content[0]
	if len(filled.Content) != 1 || filled.Content[0].Text != "Line A\nLine B" {
		t.Errorf("joined cell = %+v", filled)
	}

	// Blank cell keeps an explicit empty paragraph.
	blank := row.Content[1].Content[0]
	if blank.Type != NodeParagraph || len(blank.Content) != 0 {
		t.Errorf("blank cell paragraph = %+v", blank)
	}
	out, err := json.Marshal(blank)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"type":"paragraph","content":[]}` {
		t.Errorf("blank cell JSON = %s", out)
	}
}

func TestImport_EmptyTableDropped(t *testing.T) {
	data := buildDocx(t, `<w:tbl></w:tbl>`+para("after"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content.Content) != 1 || res.Content.Content[0].Type != NodeParagraph {
		t.Fatalf("expected table to vanish, got %+v", res.Content.Content)
	}
}

func TestImport_Metadata(t *testing.T) {
	core := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
 xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Cahier des charges</dc:title>
<dc:creator>Marie Dupont</dc:creator>
<dc:subject>Refonte du portail</dc:subject>
<cp:keywords>exigences, portail</cp:keywords>
<dcterms:created>2026-01-10T09:00:00Z</dcterms:created>
<dcterms:modified>2026-02-01T17:30:00Z</dcterms:modified>
</cp:coreProperties>`
	data := buildDocx(t, para("body"), map[string]string{"docProps/core.xml": core})

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	m := res.Metadata
	if m.Title != "Cahier des charges" || m.Author != "Marie Dupont" {
		t.Errorf("metadata = %+v", m)
	}
	if m.Created != "2026-01-10T09:00:00Z" || m.Modified != "2026-02-01T17:30:00Z" {
		t.Errorf("timestamps = %q / %q", m.Created, m.Modified)
	}
	if m.Keywords != "exigences, portail" || m.Subject != "Refonte du portail" {
		t.Errorf("metadata = %+v", m)
	}
}

func TestImport_MissingMetadataDefaultsEmpty(t *testing.T) {
	data := buildDocx(t, para("body"), nil)

	imp := New(Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata != (Metadata{}) {
		t.Errorf("metadata = %+v, want all empty", res.Metadata)
	}
}

func TestImport_NotAZip(t *testing.T) {
	imp := New(Config{})
	if _, err := imp.Import(context.Background(), []byte("plainly not a zip")); err == nil {
		t.Fatal("expected error for non-zip input")
	}
}

func TestImport_MissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("other.xml")
	fw.Write([]byte("<x/>"))
	w.Close()

	imp := New(Config{})
	_, err := imp.Import(context.Background(), buf.Bytes())
	if !errors.Is(err, ErrNoDocumentPart) {
		t.Fatalf("expected ErrNoDocumentPart, got %v", err)
	}
}

func TestImport_XMLBomb(t *testing.T) {
	// WHAT: deeply nested document.xml returns a depth error.
	// WHY: XML bomb / billion laughs defense.
	var xmlB strings.Builder
	for i := 0; i < 300; i++ {
		xmlB.WriteString("<w:p>")
	}
	xmlB.WriteString("<w:r><w:t>deep</w:t></w:r>")
	for i := 0; i < 300; i++ {
		xmlB.WriteString("</w:p>")
	}
	data := buildDocx(t, xmlB.String(), nil)

	imp := New(Config{})
	_, err := imp.Import(context.Background(), data)
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}

func TestImport_TooLarge(t *testing.T) {
	imp := New(Config{MaxFileSize: 8})
	if _, err := imp.Import(context.Background(), make([]byte, 64)); err == nil {
		t.Fatal("expected size error")
	}
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	data := buildDocx(t, heading("Heading1", "1. Titre")+para("corps"), nil)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	imp := New(Config{})
	res, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(res.Sections))
	}
}

func TestMergeAdjacentLists(t *testing.T) {
	item := func(text string) Node {
		return Node{Type: NodeListItem, Content: []Node{
			{Type: NodeParagraph, Content: []Node{{Type: NodeText, Text: text}}},
		}}
	}
	bullet := func(text string) Node {
		return Node{Type: NodeBulletList, Content: []Node{item(text)}}
	}
	ordered := func(text string) Node {
		return Node{Type: NodeOrderedList, Content: []Node{item(text)}}
	}
	paragraph := Node{Type: NodeParagraph, Content: []Node{{Type: NodeText, Text: "x"}}}

	tests := []struct {
		name  string
		in    []Node
		types []NodeType
		items []int
	}{
		{"empty", nil, nil, nil},
		{"single run merges", []Node{bullet("a"), bullet("b"), bullet("c")},
			[]NodeType{NodeBulletList}, []int{3}},
		{"kind boundary splits", []Node{bullet("a"), ordered("b"), bullet("c")},
			[]NodeType{NodeBulletList, NodeOrderedList, NodeBulletList}, []int{1, 1, 1}},
		{"non-list terminates run", []Node{bullet("a"), paragraph, bullet("b")},
			[]NodeType{NodeBulletList, NodeParagraph, NodeBulletList}, []int{1, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mergeAdjacentLists(tt.in)
			if len(out) != len(tt.types) {
				t.Fatalf("got %d nodes, want %d", len(out), len(tt.types))
			}
			for i, n := range out {
				if n.Type != tt.types[i] {
					t.Errorf("node %d type = %q, want %q", i, n.Type, tt.types[i])
				}
				if tt.types[i] == NodeBulletList || tt.types[i] == NodeOrderedList {
					if len(n.Content) != tt.items[i] {
						t.Errorf("node %d items = %d, want %d", i, len(n.Content), tt.items[i])
					}
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		p    rawParagraph
		kind blockKind
	}{
		{"blank", rawParagraph{text: "  \t "}, kindSkip},
		{"heading style", rawParagraph{style: "Heading1", text: "Intro"}, kindHeading},
		{"localized heading", rawParagraph{style: "Titre2", text: "Portée"}, kindHeading},
		{"bullet glyph", rawParagraph{text: "• point"}, kindBullet},
		{"dash glyph", rawParagraph{text: "- point"}, kindBullet},
		{"list style", rawParagraph{style: "ListParagraph", text: "point"}, kindBullet},
		{"numbering markup", rawParagraph{numbered: true, text: "point"}, kindBullet},
		{"ordered dot", rawParagraph{text: "1. premier"}, kindOrdered},
		{"ordered paren", rawParagraph{text: "12) douzième"}, kindOrdered},
		{"number without marker", rawParagraph{text: "1977 was a year"}, kindParagraph},
		{"plain", rawParagraph{text: "du texte"}, kindParagraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(&tt.p); got != tt.kind {
				t.Errorf("classify = %d, want %d", got, tt.kind)
			}
		})
	}
}
