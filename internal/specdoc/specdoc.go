// Package specdoc reads back a written specification and summarises its
// heading structure.
package specdoc

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

type Heading struct {
	Level  int
	Text   string
	Anchor string
}

// Outline is the heading structure of a markdown document.
type Outline struct {
	Title    string
	Headings []Heading
	Bytes    int
}

// Sections returns the top-level section titles: level-2 headings when
// the document has any, otherwise level-1 headings other than the title.
func (o Outline) Sections() []string {
	level := 1
	for _, h := range o.Headings {
		if h.Level == 2 {
			level = 2
			break
		}
	}
	var out []string
	for i, h := range o.Headings {
		if h.Level != level {
			continue
		}
		if level == 1 && i == 0 && h.Text == o.Title {
			continue
		}
		out = append(out, h.Text)
	}
	return out
}

func (o Outline) Empty() bool {
	return len(o.Headings) == 0
}

func Parse(src []byte) Outline {
	doc := markdown.Parser().Parse(text.NewReader(src))
	out := Outline{Bytes: len(src)}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		inlineText(h, src, &b)
		heading := Heading{Level: h.Level, Text: strings.TrimSpace(b.String())}
		if id, ok := h.AttributeString("id"); ok {
			if v, ok := id.([]byte); ok {
				heading.Anchor = string(v)
			}
		}
		if out.Title == "" && h.Level == 1 {
			out.Title = heading.Text
		}
		out.Headings = append(out.Headings, heading)
		return ast.WalkSkipChildren, nil
	})
	return out
}

func ReadFile(path string) (Outline, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Outline{}, fmt.Errorf("specdoc: %w", err)
	}
	return Parse(src), nil
}

func inlineText(n ast.Node, src []byte, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		default:
			inlineText(c, src, b)
		}
	}
}
