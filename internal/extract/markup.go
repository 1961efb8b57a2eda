package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "hr": {}, "li": {}, "tr": {}, "td": {},
	"table": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "section": {}, "article": {},
}

var skipTags = map[string]struct{}{
	"script": {}, "style": {}, "head": {}, "noscript": {}, "svg": {},
}

// StripTags converts markup to plain text: script/style/head subtrees
// dropped, block boundaries become newlines, whitespace collapsed.
func StripTags(markup string) string {
	if markup == "" {
		return ""
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipTags[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			if _, block := blockTags[n.Data]; block {
				b.WriteString("\n")
			}
		}
	}
	walk(root)

	out := multiSpaces.ReplaceAllString(b.String(), " ")
	out = multiNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// textContent collects the trimmed text of a node's subtree.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(multiSpaces.ReplaceAllString(b.String(), " "))
}

var attrTokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// hasAttrToken reports whether any attribute key or value of n carries the
// needle as a whole word (case-insensitive). Token matching keeps compound
// identifiers like "total-amount" in while excluding lookalikes such as
// "subtotal".
func hasAttrToken(n *html.Node, needle string) bool {
	for _, a := range n.Attr {
		for _, field := range []string{a.Key, a.Val} {
			for _, tok := range attrTokenSplit.Split(strings.ToLower(field), -1) {
				if tok == needle {
					return true
				}
			}
		}
	}
	return false
}

// dateFragments returns the text of elements carrying a date-like attribute,
// in document order. Receipt templates tag the ride date and time cells this
// way when the plain body omits them.
func dateFragments(markup string) []string {
	return taggedFragments(markup, "date")
}

// totalFragment returns the text of the first element whose test identifier
// denotes the total fare amount, or "".
func totalFragment(markup string) string {
	frags := taggedFragments(markup, "total")
	if len(frags) == 0 {
		return ""
	}
	return frags[0]
}

func taggedFragments(markup, needle string) []string {
	if markup == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasAttrToken(n, needle) {
			if text := textContent(n); text != "" {
				out = append(out, text)
			}
			// Tagged containers nest; the outermost carries the fragment.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
