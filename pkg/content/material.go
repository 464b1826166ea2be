package content

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaterialInfo holds the cleaned prose of one uploaded course document.
type MaterialInfo struct {
	Prose      string
	WordCount  int
	IsReliable bool
}

// ExtractProse strips an HTML course document down to its paragraph text,
// dropping scripts, styles, navigation, and citation markers. The result
// feeds prompt context chunks.
func ExtractProse(r io.Reader) (*MaterialInfo, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var paragraphs []string
	var totalWords int

	body := findBody(doc)
	if body == nil {
		body = doc
	}
	collectParagraphs(body, &paragraphs, &totalWords)

	prose := strings.Join(paragraphs, "\n\n")
	return &MaterialInfo{
		Prose:      prose,
		WordCount:  totalWords,
		IsReliable: totalWords > 20,
	}, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findBody(c); res != nil {
			return res
		}
	}
	return nil
}

func collectParagraphs(n *html.Node, out *[]string, words *int) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header:
			return
		case atom.P, atom.Li:
			text := cleanBlock(n)
			if text != "" {
				*out = append(*out, text)
				*words += len(strings.Fields(text))
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectParagraphs(c, out, words)
	}
}

func cleanBlock(n *html.Node) string {
	var b strings.Builder
	traverseBlock(n, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func traverseBlock(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
		return
	}
	if n.Type == html.ElementNode {
		if n.DataAtom == atom.Sup || n.DataAtom == atom.Style || n.DataAtom == atom.Script {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverseBlock(c, b)
	}
}

// ChunkProse splits extracted prose into prompt-sized chunks on paragraph
// boundaries.
func ChunkProse(prose string, maxChars int) []string {
	if maxChars <= 0 || len(prose) <= maxChars {
		if prose == "" {
			return nil
		}
		return []string{prose}
	}
	var chunks []string
	var cur strings.Builder
	for _, para := range strings.Split(prose, "\n\n") {
		if cur.Len() > 0 && cur.Len()+len(para)+2 > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
