package book

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML converts an HTML document or fragment into blocks.
func ParseHTML(r io.Reader) ([]Block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var blocks []Block
	collectBlocks(doc, &blocks)
	return blocks, nil
}

// documentTitle returns the text of <title>, if any.
func documentTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return collapse(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := documentTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func collectBlocks(n *html.Node, out *[]Block) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if text := collapse(c.Data); text != "" {
				*out = append(*out, Block{Type: BlockParagraph, Text: text})
			}
		case html.ElementNode:
			collectElement(c, out)
		}
	}
}

func collectElement(n *html.Node, out *[]Block) {
	switch n.Data {
	case "head", "script", "style", "noscript", "template":
		return
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if text := collapse(textContent(n)); text != "" {
			*out = append(*out, Block{Type: BlockHeading, Level: int(n.Data[1] - '0'), Text: text})
		}
	case "p":
		collectParagraph(n, out)
	case "pre":
		*out = append(*out, codeBlock(n))
	case "ul", "ol":
		if items := listItems(n); len(items) > 0 {
			*out = append(*out, Block{Type: BlockList, Items: items, Ordered: n.Data == "ol"})
		}
	case "blockquote":
		if text := collapse(textContent(n)); text != "" {
			*out = append(*out, Block{Type: BlockQuote, Text: text})
		}
	case "table":
		if tb, ok := tableBlock(n); ok {
			*out = append(*out, tb)
		}
	case "img":
		*out = append(*out, imageBlock(n))
	case "hr":
		*out = append(*out, Block{Type: BlockRule})
	default:
		collectBlocks(n, out)
	}
}

// collectParagraph emits the paragraph text followed by any images it holds.
func collectParagraph(n *html.Node, out *[]Block) {
	if text := collapse(textContent(n)); text != "" {
		*out = append(*out, Block{Type: BlockParagraph, Text: text})
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "img" {
				*out = append(*out, imageBlock(c))
			}
			walk(c)
		}
	}
	walk(n)
}

func codeBlock(pre *html.Node) Block {
	b := Block{Type: BlockCode, Text: strings.TrimRight(textContent(pre), "\n")}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			for _, class := range strings.Fields(getAttr(c, "class")) {
				if lang, ok := strings.CutPrefix(class, "language-"); ok {
					b.Language = lang
				}
			}
		}
	}
	return b
}

func listItems(list *html.Node) []string {
	var items []string
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			if text := collapse(textContent(c)); text != "" {
				items = append(items, text)
			}
		}
	}
	return items
}

func tableBlock(table *html.Node) (Block, bool) {
	b := Block{Type: BlockTable}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.Data != "tr" {
				walk(c)
				continue
			}
			var cells []string
			header := true
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
					continue
				}
				if cell.Data == "td" {
					header = false
				}
				cells = append(cells, collapse(textContent(cell)))
			}
			if len(cells) == 0 {
				continue
			}
			if header && b.Headers == nil && len(b.Rows) == 0 {
				b.Headers = cells
			} else {
				b.Rows = append(b.Rows, cells)
			}
		}
	}
	walk(table)
	return b, b.Headers != nil || len(b.Rows) > 0
}

func imageBlock(img *html.Node) Block {
	return Block{Type: BlockImage, Path: getAttr(img, "src"), Alt: getAttr(img, "alt")}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return text.String()
}

// collapse trims and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
