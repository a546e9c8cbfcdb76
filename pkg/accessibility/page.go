package accessibility

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"schemeaccess/pkg/speech"
)

// ErrNoReadableText is returned when a page has no text to read.
var ErrNoReadableText = errors.New("page has no readable text")

// PageText extracts the visible text of the page's <main> element, or of
// <body> when there is no <main>, with whitespace collapsed.
func PageText(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	root := findElement(doc, atom.Main)
	if root == nil {
		root = findElement(doc, atom.Body)
	}
	if root == nil {
		return "", ErrNoReadableText
	}

	var sb strings.Builder
	collectText(root, &sb)
	text := strings.Join(strings.Fields(sb.String()), " ")
	if text == "" {
		return "", ErrNoReadableText
	}
	return text, nil
}

// ReadPage speaks the readable text of page.
func (s *Store) ReadPage(page string) (*speech.Utterance, error) {
	text, err := PageText(page)
	if err != nil {
		return nil, err
	}
	return s.Speak(text), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
		if _, hidden := attr(n, "hidden"); hidden {
			return
		}
		if v, _ := attr(n, "aria-hidden"); v == "true" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
