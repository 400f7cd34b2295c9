package parser

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify))

func parseMarkdown(raw []byte) CandidateList {
	doc := markdown.Parser().Parse(text.NewReader(raw))
	out := CandidateList{}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		var dest string
		switch node := n.(type) {
		case *ast.Link:
			dest = string(node.Destination)
		case *ast.AutoLink:
			if node.AutoLinkType != ast.AutoLinkURL {
				return ast.WalkContinue, nil
			}
			dest = string(node.URL(raw))
		default:
			return ast.WalkContinue, nil
		}

		if cleaned, ok := cleanLine(dest); ok {
			out = append(out, cleaned)
		}

		return ast.WalkSkipChildren, nil
	})

	return out
}
