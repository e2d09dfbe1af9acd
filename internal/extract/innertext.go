package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is never rendered
var hiddenElements = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"noscript": true, "title": true, "meta": true, "link": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true,
}

// Paragraph-like elements are separated by a blank line
var paragraphElements = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// textContent concatenates every text node below n. Template content is a
// separate fragment in a browser and is skipped.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				sb.WriteString(c.Data)
			case c.Type == html.ElementNode && c.Data == "template":
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// innerText approximates the rendered text of n for a static document:
// hidden elements are dropped, whitespace is collapsed outside <pre>, and
// block boundaries become line breaks.
func innerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node, pre bool)
	walk = func(n *html.Node, pre bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if pre {
					sb.WriteString(c.Data)
				} else {
					sb.WriteString(spaceRun.ReplaceAllString(c.Data, " "))
				}
			case html.ElementNode:
				name := c.Data
				switch {
				case hiddenElements[name]:
				case name == "br":
					sb.WriteString("\n")
				case paragraphElements[name]:
					sb.WriteString("\n\n")
					walk(c, pre)
					sb.WriteString("\n\n")
				case blockElements[name]:
					sb.WriteString("\n")
					walk(c, pre || name == "pre")
					sb.WriteString("\n")
				case name == "td" || name == "th":
					walk(c, pre)
					sb.WriteString("\t")
				default:
					walk(c, pre)
				}
			}
		}
	}
	walk(n, n.Type == html.ElementNode && n.Data == "pre")
	return tidyLines(sb.String())
}

// tidyLines trims the spaces left around line breaks and limits blank runs
// to a single empty line.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Trim(l, " \t")
	}
	return newlineRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}
