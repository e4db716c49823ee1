// Package termwrap formats help text to fit the terminal.
package termwrap

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

// TermWrap wraps text at the width of the attached terminal.
type TermWrap struct {
	width  int
	height int
}

// New measures the terminal on stdin, falling back to the given size when
// there isn't one.
func New(defaultWidth, defaultHeight int) *TermWrap {
	var err error
	tw := &TermWrap{}

	tw.width, tw.height, err = term.GetSize(0)
	if err != nil || tw.width <= 0 {
		tw.width = defaultWidth
		tw.height = defaultHeight
	}

	return tw
}

// Width is the column count text is wrapped at.
func (tw *TermWrap) Width() int {
	return tw.width
}

// Paragraph wraps content at the terminal width.
func (tw *TermWrap) Paragraph(content string) string {
	return wordwrap.WrapString(content, uint(tw.width))
}

// IndentedParagraph wraps content so that it still fits once every line is
// prefixed. Narrow terminals (at most minimumWidth) are not indented.
func (tw *TermWrap) IndentedParagraph(prefix, content string, minimumWidth int) string {
	if tw.width <= minimumWidth {
		return tw.Paragraph(content)
	}

	paragraph := wordwrap.WrapString(content, uint(tw.width-len(prefix)))

	var sb strings.Builder
	for _, line := range strings.Split(paragraph, "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}
