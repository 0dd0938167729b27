// -----------------------------------------------------------------------
// Semantic chunking - markdown structure drives the split points so a
// chunk never straddles a heading boundary
// -----------------------------------------------------------------------

package chunker

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// semanticBlocks parses content as markdown and groups it into sections at
// heading boundaries. Sections beyond maxSize fall back to sentence
// packing within the section.
func semanticBlocks(content string, maxSize, overlap int) ([]string, error) {
	source := []byte(content)
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	var sections []string
	var current strings.Builder

	flushSection := func() {
		if section := strings.TrimSpace(current.String()); section != "" {
			sections = append(sections, section)
		}
		current.Reset()
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		block := blockText(node, source)
		if block == "" {
			continue
		}
		if node.Kind() == ast.KindHeading {
			flushSection()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(block)
	}
	flushSection()

	if len(sections) == 0 {
		// No markdown structure at all; treat the whole text as one section.
		sections = []string{strings.TrimSpace(content)}
	}

	// Merge small neighbors, split oversized sections.
	var out []string
	var pending string
	for _, section := range sections {
		if pending != "" && len(pending)+2+len(section) <= maxSize {
			pending = pending + "\n\n" + section
			continue
		}
		if pending != "" {
			out = append(out, splitOversized(pending, maxSize, overlap)...)
		}
		pending = section
	}
	if pending != "" {
		out = append(out, splitOversized(pending, maxSize, overlap)...)
	}
	if out == nil {
		return nil, fmt.Errorf("semantic chunking produced no sections")
	}
	return out, nil
}

func splitOversized(section string, maxSize, overlap int) []string {
	if len(section) <= maxSize {
		return []string{section}
	}
	return packSentences(section, maxSize, overlap)
}

// blockText renders one top-level block back to plain text, headings with
// their markdown prefix so chunk boundaries stay self-describing.
func blockText(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.Heading:
		return strings.Repeat("#", n.Level) + " " + string(n.Text(source))

	case *ast.FencedCodeBlock:
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimRight(sb.String(), "\n")

	default:
		var sb strings.Builder
		lines := node.Lines()
		if lines.Len() > 0 {
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(source))
			}
			return strings.TrimRight(sb.String(), "\n")
		}
		// Container blocks (lists, quotes) have no direct lines; walk kids.
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if text := blockText(child, source); text != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(text)
			}
		}
		return sb.String()
	}
}
