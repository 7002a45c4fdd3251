package transport

import (
	"io"
	"regexp"
	"strings"

	"github.com/munnme/orangecarrier2-bot/bridge"
	"golang.org/x/net/html"
)

var audioURLRe = regexp.MustCompile(`https?://[^\s"'<>]+\.(?:mp3|ogg|m4a)\b`)

// Tags treated as one call block on the live-calls page.
var blockTags = map[string]bool{
	"div": true,
	"p":   true,
	"li":  true,
	"tr":  true,
}

// ExtractBlocks parses the live-calls page and returns its innermost block
// elements as text fragments paired with any audio URL found in the same
// subtree. Length filtering and dedup keying happen in the normalizer.
func ExtractBlocks(r io.Reader) ([]bridge.Block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var blocks []bridge.Block
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		childHasBlock := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				childHasBlock = true
			}
		}
		if n.Type != html.ElementNode || !blockTags[n.Data] {
			return childHasBlock
		}
		if childHasBlock {
			return true
		}
		text := collapseSpace(subtreeText(n))
		if text == "" {
			return false
		}
		blocks = append(blocks, bridge.Block{
			Text:     text,
			AudioURL: subtreeAudioURL(n),
		})
		return true
	}
	walk(doc)
	return blocks, nil
}

func subtreeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func subtreeAudioURL(n *html.Node) string {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			switch attr.Key {
			case "href", "src", "data-src":
				if u := audioURLRe.FindString(attr.Val); u != "" {
					return u
				}
			}
		}
	}
	if n.Type == html.TextNode {
		if u := audioURLRe.FindString(n.Data); u != "" {
			return u
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if u := subtreeAudioURL(c); u != "" {
			return u
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
