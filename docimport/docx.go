// CLAUDE:SUMMARY Parses the docx container (archive/zip) and word/document.xml into raw blocks via an xml.Decoder token walker.
package docimport

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxXMLDepth caps element nesting in word/document.xml and
// docProps/core.xml. Real word-processor output stays far below this;
// deeper input is treated as hostile.
const maxXMLDepth = 256

// ErrNoDocumentPart is returned when the archive lacks word/document.xml.
var ErrNoDocumentPart = errors.New("docimport: word/document.xml not found in archive")

// rawBlock is one top-level body element in document order. Exactly one of
// para and table is set.
type rawBlock struct {
	para  *rawParagraph
	table *rawTable
}

// rawParagraph mirrors a w:p element: its style name, whether list-numbering
// markup (w:numPr) is present, its runs, and the concatenated literal text.
type rawParagraph struct {
	style    string
	numbered bool
	runs     []rawRun
	text     string
}

// rawRun mirrors a w:r element with its four inline style flags.
type rawRun struct {
	text      string
	bold      bool
	italic    bool
	underline bool
	strike    bool
}

type rawTable struct {
	rows []rawRow
}

type rawRow struct {
	cells []rawCell
}

// rawCell holds the literal text of each paragraph inside a w:tc, in order.
type rawCell struct {
	paras []string
}

// parseArchive opens the docx container and returns the body blocks and the
// core properties. Metadata parsing is best-effort; a missing or corrupt
// docProps/core.xml yields empty fields, never an error.
func parseArchive(data []byte) ([]rawBlock, Metadata, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("open zip: %w", err)
	}

	var docFile, propsFile *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			docFile = f
		case "docProps/core.xml":
			propsFile = f
		}
	}
	if docFile == nil {
		return nil, Metadata{}, ErrNoDocumentPart
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	blocks, err := readDocument(rc)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("parse document.xml: %w", err)
	}

	var meta Metadata
	if propsFile != nil {
		if prc, err := propsFile.Open(); err == nil {
			meta = readCoreProps(prc)
			prc.Close()
		}
	}
	return blocks, meta, nil
}

// readDocument walks word/document.xml and collects top-level paragraphs and
// tables. Paragraphs inside a table contribute to the enclosing cell instead
// of the block list. Nested tables are flattened into their outer cell.
func readDocument(r io.Reader) ([]rawBlock, error) {
	decoder := xml.NewDecoder(r)

	var (
		blocks []rawBlock
		depth  int

		curPara    *rawParagraph
		curRun     *rawRun
		inRunProps bool
		inText     bool

		tblDepth int
		curTable *rawTable
		curRow   *rawRow
		curCell  *rawCell
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p":
				curPara = &rawParagraph{}
			case "pStyle":
				if curPara != nil {
					curPara.style = attrVal(t, "val")
				}
			case "numPr":
				if curPara != nil {
					curPara.numbered = true
				}
			case "r":
				if curPara != nil {
					curRun = &rawRun{}
				}
			case "rPr":
				if curRun != nil {
					inRunProps = true
				}
			case "b":
				if inRunProps && flagOn(t) {
					curRun.bold = true
				}
			case "i":
				if inRunProps && flagOn(t) {
					curRun.italic = true
				}
			case "u":
				if inRunProps && attrVal(t, "val") != "none" {
					curRun.underline = true
				}
			case "strike":
				if inRunProps && flagOn(t) {
					curRun.strike = true
				}
			case "t":
				if curPara != nil {
					inText = true
				}
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					curTable = &rawTable{}
				}
			case "tr":
				if tblDepth == 1 {
					curRow = &rawRow{}
				}
			case "tc":
				if tblDepth == 1 {
					curCell = &rawCell{}
				}
			}

		case xml.CharData:
			if inText {
				if curRun != nil {
					curRun.text += string(t)
				}
				curPara.text += string(t)
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPr":
				inRunProps = false
			case "r":
				if curRun != nil && curPara != nil {
					curPara.runs = append(curPara.runs, *curRun)
				}
				curRun = nil
			case "p":
				if curPara == nil {
					break
				}
				switch {
				case curCell != nil:
					curCell.paras = append(curCell.paras, curPara.text)
				case tblDepth == 0:
					blocks = append(blocks, rawBlock{para: curPara})
				}
				curPara = nil
			case "tc":
				if tblDepth == 1 && curCell != nil && curRow != nil {
					curRow.cells = append(curRow.cells, *curCell)
				}
				if tblDepth == 1 {
					curCell = nil
				}
			case "tr":
				if tblDepth == 1 && curRow != nil && curTable != nil {
					curTable.rows = append(curTable.rows, *curRow)
				}
				if tblDepth == 1 {
					curRow = nil
				}
			case "tbl":
				if tblDepth == 1 && curTable != nil {
					blocks = append(blocks, rawBlock{table: curTable})
				}
				tblDepth--
				if tblDepth == 0 {
					curTable = nil
				}
			}
		}
	}
	return blocks, nil
}

// readCoreProps lifts descriptive fields from docProps/core.xml.
// Best-effort: stops quietly on malformed markup and returns what it has.
func readCoreProps(r io.Reader) Metadata {
	decoder := xml.NewDecoder(r)

	var meta Metadata
	var depth int
	var field *string

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return meta
			}
			field = nil
			switch t.Name.Local {
			case "title":
				field = &meta.Title
			case "creator":
				field = &meta.Author
			case "subject":
				field = &meta.Subject
			case "created":
				field = &meta.Created
			case "modified":
				field = &meta.Modified
			case "keywords":
				field = &meta.Keywords
			}
		case xml.CharData:
			if field != nil {
				*field += string(t)
			}
		case xml.EndElement:
			depth--
			field = nil
		}
	}
	return meta
}

// attrVal returns the value of the named attribute, ignoring namespace.
func attrVal(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// flagOn reports whether a boolean run property element (w:b, w:i, w:strike)
// is active: present with no val attribute, or a val other than an explicit
// off marker.
func flagOn(el xml.StartElement) bool {
	switch strings.ToLower(attrVal(el, "val")) {
	case "false", "0", "none", "off":
		return false
	}
	return true
}
