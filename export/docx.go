package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hazyhaar/cahier/docimport"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`

// DocxMeta feeds docProps/core.xml of the generated archive.
type DocxMeta struct {
	Title  string
	Author string
}

// Docx writes the content tree as a minimal OOXML word document. The output
// uses the same parts and element vocabulary the importer reads, so an
// exported file re-imports to an equivalent tree.
func Docx(doc docimport.Node, meta DocxMeta) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"_rels/.rels":         relsXML,
		"docProps/core.xml":   corePropsXML(meta),
		"word/document.xml":   documentXML(doc),
	}
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "docProps/core.xml", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func corePropsXML(meta DocxMeta) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>%s</dc:title>
  <dc:creator>%s</dc:creator>
</cp:coreProperties>`, escapeXML(meta.Title), escapeXML(meta.Author))
}

func documentXML(doc docimport.Node) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, n := range doc.Content {
		writeBlock(&b, n)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeBlock(b *strings.Builder, n docimport.Node) {
	switch n.Type {
	case docimport.NodeHeading:
		level := 1
		if n.Attrs != nil && n.Attrs.Level > 0 {
			level = n.Attrs.Level
		}
		writeParagraph(b, fmt.Sprintf("Heading%d", level), "", n.Content)

	case docimport.NodeParagraph:
		writeParagraph(b, "", "", n.Content)

	case docimport.NodeBulletList:
		for _, item := range n.Content {
			writeListItem(b, "ListParagraph", "• ", item)
		}

	case docimport.NodeOrderedList:
		// No list style here: the "1. " marker alone drives classification on
		// re-import, a List style would read back as a bullet.
		for i, item := range n.Content {
			writeListItem(b, "", fmt.Sprintf("%d. ", i+1), item)
		}

	case docimport.NodeTable:
		b.WriteString("<w:tbl>")
		for _, row := range n.Content {
			b.WriteString("<w:tr>")
			for _, cell := range row.Content {
				b.WriteString("<w:tc>")
				for _, para := range cell.Content {
					writeParagraph(b, "", "", para.Content)
				}
				b.WriteString("</w:tc>")
			}
			b.WriteString("</w:tr>")
		}
		b.WriteString("</w:tbl>")
	}
}

func writeListItem(b *strings.Builder, style, prefix string, item docimport.Node) {
	for _, child := range item.Content {
		if child.Type == docimport.NodeParagraph {
			writeParagraph(b, style, prefix, child.Content)
		}
	}
}

func writeParagraph(b *strings.Builder, style, prefix string, runs []docimport.Node) {
	b.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(b, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	first := true
	for _, run := range runs {
		if run.Type != docimport.NodeText {
			continue
		}
		text := run.Text
		if first && prefix != "" {
			text = prefix + text
		}
		first = false
		b.WriteString("<w:r>")
		writeRunProps(b, run.Marks)
		fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, escapeXML(text))
		b.WriteString("</w:r>")
	}
	b.WriteString("</w:p>")
}

func writeRunProps(b *strings.Builder, marks []docimport.Mark) {
	if len(marks) == 0 {
		return
	}
	b.WriteString("<w:rPr>")
	for _, m := range marks {
		switch m {
		case docimport.MarkBold:
			b.WriteString("<w:b/>")
		case docimport.MarkItalic:
			b.WriteString("<w:i/>")
		case docimport.MarkUnderline:
			b.WriteString(`<w:u w:val="single"/>`)
		case docimport.MarkStrike:
			b.WriteString("<w:strike/>")
		}
	}
	b.WriteString("</w:rPr>")
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
