package export

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hazyhaar/cahier/docimport"
	"github.com/hazyhaar/cahier/store"
)

func text(s string, marks ...docimport.Mark) docimport.Node {
	return docimport.Node{Type: docimport.NodeText, Text: s, Marks: marks}
}

func para(runs ...docimport.Node) docimport.Node {
	return docimport.Node{Type: docimport.NodeParagraph, Content: runs}
}

func heading(level int, id, title string) docimport.Node {
	return docimport.Node{
		Type:    docimport.NodeHeading,
		Attrs:   &docimport.Attrs{Level: level, ID: id},
		Content: []docimport.Node{text(title)},
	}
}

func listItem(runs ...docimport.Node) docimport.Node {
	return docimport.Node{Type: docimport.NodeListItem, Content: []docimport.Node{para(runs...)}}
}

func doc(nodes ...docimport.Node) docimport.Node {
	return docimport.Node{Type: docimport.NodeDoc, Content: nodes}
}

func TestHTML(t *testing.T) {
	d := doc(
		heading(2, "a1b2c3d4", "Périmètre"),
		para(text("Texte "), text("important", docimport.MarkBold, docimport.MarkItalic)),
		docimport.Node{Type: docimport.NodeBulletList, Content: []docimport.Node{
			listItem(text("premier")),
			listItem(text("second")),
		}},
	)
	got := HTML(d)

	for _, want := range []string{
		`<h2 id="a1b2c3d4">Périmètre</h2>`,
		`<strong><em>important</em></strong>`,
		`<li>premier</li>`,
		"<ul>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("HTML output missing %q:\n%s", want, got)
		}
	}
}

func TestHTMLEscapesText(t *testing.T) {
	got := HTML(doc(para(text(`<script>alert("x")</script>`))))
	if strings.Contains(got, "<script>") {
		t.Errorf("unescaped markup in output: %s", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("expected escaped text, got: %s", got)
	}
}

func TestHTMLTable(t *testing.T) {
	cell := func(paras ...docimport.Node) docimport.Node {
		return docimport.Node{Type: docimport.NodeTableCell, Content: paras}
	}
	d := doc(docimport.Node{Type: docimport.NodeTable, Content: []docimport.Node{
		{Type: docimport.NodeTableRow, Content: []docimport.Node{
			cell(para(text("Ligne A")), para(text("Ligne B"))),
			cell(para(text("seule"))),
		}},
	}})
	got := HTML(d)
	if !strings.Contains(got, "<td>Ligne A<br>Ligne B</td>") {
		t.Errorf("multi-paragraph cell rendering: %s", got)
	}
	if !strings.Contains(got, "<td>seule</td>") {
		t.Errorf("single-paragraph cell rendering: %s", got)
	}
}

func TestSanitizedHTMLKeepsHeadingIDs(t *testing.T) {
	got := SanitizedHTML(doc(heading(1, "deadbeef", "Introduction")))
	if !strings.Contains(got, `id="deadbeef"`) {
		t.Errorf("heading id stripped: %s", got)
	}
}

func TestMarkdown(t *testing.T) {
	d := doc(
		heading(1, "aaaa1111", "Introduction"),
		para(text("Le projet vise "), text("trois", docimport.MarkBold), text(" objectifs.")),
		docimport.Node{Type: docimport.NodeOrderedList, Content: []docimport.Node{
			listItem(text("réserver")),
			listItem(text("payer")),
		}},
	)
	md, err := Markdown(d)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "Introduction") {
		t.Errorf("missing heading: %s", md)
	}
	if !strings.Contains(md, "**trois**") {
		t.Errorf("missing bold: %s", md)
	}
	if !strings.Contains(md, "réserver") {
		t.Errorf("missing list item: %s", md)
	}
}

func TestMarkdownEmptyDoc(t *testing.T) {
	md, err := Markdown(doc())
	if err != nil {
		t.Fatal(err)
	}
	if md != "" {
		t.Errorf("empty doc markdown = %q", md)
	}
}

func TestDocxRoundTrip(t *testing.T) {
	d := doc(
		heading(1, "11112222", "1. Contexte"),
		para(text("Description du "), text("besoin", docimport.MarkBold)),
		docimport.Node{Type: docimport.NodeBulletList, Content: []docimport.Node{
			listItem(text("un")),
			listItem(text("deux")),
		}},
		docimport.Node{Type: docimport.NodeOrderedList, Content: []docimport.Node{
			listItem(text("étape initiale")),
		}},
	)

	data, err := Docx(d, DocxMeta{Title: "Cahier des charges", Author: "Marie Dupont"})
	if err != nil {
		t.Fatal(err)
	}

	imp := docimport.New(docimport.Config{})
	res, err := imp.Import(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}

	if res.Metadata.Title != "Cahier des charges" {
		t.Errorf("title = %q", res.Metadata.Title)
	}
	if len(res.Sections) != 1 || res.Sections[0].Title != "Contexte" {
		t.Errorf("sections = %+v", res.Sections)
	}

	var types []docimport.NodeType
	for _, n := range res.Content.Content {
		types = append(types, n.Type)
	}
	want := []docimport.NodeType{
		docimport.NodeHeading,
		docimport.NodeParagraph,
		docimport.NodeBulletList,
		docimport.NodeOrderedList,
	}
	if len(types) != len(want) {
		t.Fatalf("block types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("block %d = %s, want %s", i, types[i], want[i])
		}
	}

	bullets := res.Content.Content[2]
	if len(bullets.Content) != 2 {
		t.Errorf("bullet items = %d", len(bullets.Content))
	}

	// Bold survives the round trip.
	paraNode := res.Content.Content[1]
	var foundBold bool
	for _, run := range paraNode.Content {
		for _, m := range run.Marks {
			if m == docimport.MarkBold {
				foundBold = true
			}
		}
	}
	if !foundBold {
		t.Error("bold mark lost in round trip")
	}
}

func TestSessionExport(t *testing.T) {
	session := &store.ChatSession{
		ID:           "sess_1",
		ProjectID:    "proj_1",
		Title:        "Entretien initial",
		Status:       store.SessionActive,
		InputTokens:  1200,
		OutputTokens: 450,
	}
	messages := []*store.Message{
		{Role: store.RoleUser, MessageType: store.MessageText, Content: "Bonjour", CreatedAt: 1},
		{Role: store.RoleAssistant, MessageType: store.MessageSuggestion,
			Content: "Deux exigences détectées", ExtraJSON: `["a","b"]`, CreatedAt: 2},
	}

	data, err := Session(session, messages)
	if err != nil {
		t.Fatal(err)
	}

	var got SessionExport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Session.ID != "sess_1" {
		t.Errorf("session id = %q", got.Session.ID)
	}
	if got.InputTokens != 1200 || got.OutputTokens != 450 {
		t.Errorf("tokens = %d/%d", got.InputTokens, got.OutputTokens)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d", len(got.Messages))
	}
	if string(got.Messages[1].Extra) != `["a","b"]` {
		t.Errorf("extra = %s", got.Messages[1].Extra)
	}
}
