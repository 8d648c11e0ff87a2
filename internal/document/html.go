package document

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

var invisible = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Br: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Dt: true, atom.Dd: true, atom.Blockquote: true, atom.Pre: true, atom.Hr: true,
}

// HTMLSource returns the visible text of an HTML document, one line per
// block element.
type HTMLSource struct{}

func (HTMLSource) Kind() Kind { return KindHTML }

func (HTMLSource) Text(_ context.Context, data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return StripTags(string(data)), nil
	}
	var sb strings.Builder
	walkVisible(root, &sb)
	return tidyLines(sb.String()), nil
}

// StripTags removes anything that looks like a tag and collapses whitespace.
func StripTags(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func walkVisible(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if invisible[n.DataAtom] {
			return
		}
		if blocks[n.DataAtom] {
			sb.WriteByte('\n')
			defer sb.WriteByte('\n')
		} else {
			defer sb.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkVisible(c, sb)
	}
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}
