package rendering

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BlockKind classifies a block of extracted text.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockItem
)

// Block is one paragraph, heading or list item of section content.
type Block struct {
	Kind BlockKind
	Text string
}

const blockSelector = "h1,h2,h3,h4,h5,h6,p,li,blockquote"

// Blocks splits section HTML into text blocks in document order. Markup without
// block elements becomes a single paragraph.
func Blocks(html string) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	doc.Find(unsafeElements).Remove()

	var blocks []Block
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// nested blocks are part of their outer block's text
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		text := collapse(s.Text())
		if text == "" {
			return
		}
		kind := BlockParagraph
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			kind = BlockHeading
		case "li":
			kind = BlockItem
		}
		blocks = append(blocks, Block{Kind: kind, Text: text})
	})

	if len(blocks) == 0 {
		if text := collapse(doc.Text()); text != "" {
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: text})
		}
	}
	return blocks, nil
}

// PlainText converts section HTML to plain text, one block per paragraph.
func PlainText(html string) (string, error) {
	blocks, err := Blocks(html)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Kind == BlockItem {
			lines = append(lines, "- "+b.Text)
			continue
		}
		lines = append(lines, b.Text)
	}
	return strings.Join(lines, "\n\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RenderText renders the document as plain text with underlined titles.
func RenderText(d *Document) (string, error) {
	var sb strings.Builder
	title := d.Title()
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len([]rune(title))) + "\n\n")

	for _, s := range d.Sections {
		body, err := PlainText(s.Content)
		if err != nil {
			return "", &RenderError{Format: FormatText, Section: s.Title, Cause: err}
		}
		sb.WriteString(s.Title + "\n")
		sb.WriteString(strings.Repeat("-", len([]rune(s.Title))) + "\n\n")
		if body != "" {
			sb.WriteString(body + "\n\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}
