// CLAUDE:SUMMARY Classifies raw paragraphs as heading, bullet item, ordered item, or plain paragraph.
package docimport

import (
	"regexp"
	"strings"
)

// blockKind is the structural classification of one paragraph.
type blockKind int

const (
	kindSkip blockKind = iota
	kindHeading
	kindBullet
	kindOrdered
	kindParagraph
)

// orderedRe matches a leading "1. ", "2) ", "3] " ordered-list marker.
var orderedRe = regexp.MustCompile(`^\d+[.)\]]\s`)

// bulletGlyphs are the leading characters recognized as manual bullets.
var bulletGlyphs = map[rune]bool{
	'•': true, '●': true, '○': true, '■': true, '▪': true,
	'-': true, '*': true,
}

// headingStylePrefixes cover the style names word processors emit for
// headings across locales.
var headingStylePrefixes = []string{"heading", "titre", "überschrift"}

// classify determines the kind of a paragraph. Rules apply in priority
// order; the heading-style check short-circuits everything else, so a
// heading whose text happens to start with a bullet glyph stays a heading.
func classify(p *rawParagraph) blockKind {
	trimmed := strings.TrimSpace(p.text)
	if trimmed == "" {
		return kindSkip
	}
	if isHeadingStyle(p.style) {
		return kindHeading
	}
	if isBullet(p) {
		return kindBullet
	}
	if orderedRe.MatchString(trimmed) {
		return kindOrdered
	}
	return kindParagraph
}

func isHeadingStyle(style string) bool {
	lower := strings.ToLower(style)
	for _, prefix := range headingStylePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// headingLevel extracts the level from a heading style name: the first digit
// run found, clamped to [1,6]. A style with no digits defaults to 1.
func headingLevel(style string) int {
	level := 0
	for _, r := range style {
		if r >= '0' && r <= '9' {
			level = level*10 + int(r-'0')
			continue
		}
		if level > 0 {
			break
		}
	}
	if level == 0 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// isBullet reports a bullet list item: leading bullet glyph, a style name
// containing "List", or list-numbering markup on the paragraph.
func isBullet(p *rawParagraph) bool {
	trimmed := strings.TrimSpace(p.text)
	for _, r := range trimmed {
		if bulletGlyphs[r] {
			return true
		}
		break
	}
	if strings.Contains(strings.ToLower(p.style), "list") {
		return true
	}
	return p.numbered
}
