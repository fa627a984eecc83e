package render

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// toHTML renders markdown for the chat UI. SkipHTML drops raw HTML from
// the model's answer so nothing model-authored reaches the DOM as markup.
func toHTML(md string) string {
	// Parser and renderer instances are single-use.
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return string(markdown.ToHTML([]byte(md), p, r))
}
