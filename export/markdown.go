package export

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/cahier/docimport"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy

	converterOnce sync.Once
	mdConverter   *converter.Converter
)

// exportPolicy allows the formatting subset the renderer emits, plus heading
// id attributes so anchors survive the HTML export.
func exportPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		policy = p
	})
	return policy
}

func markdownConverter() *converter.Converter {
	converterOnce.Do(func() {
		mdConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	})
	return mdConverter
}

// SanitizedHTML renders the tree and sanitizes the result.
func SanitizedHTML(doc docimport.Node) string {
	return exportPolicy().Sanitize(HTML(doc))
}

// Markdown renders the tree as commonmark markdown.
func Markdown(doc docimport.Node) (string, error) {
	html := SanitizedHTML(doc)
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	md, err := markdownConverter().ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}
