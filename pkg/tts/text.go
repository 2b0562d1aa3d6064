package tts

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText turns an HTML answer into text suitable for synthesis. Tags
// are dropped, block elements become sentence breaks and script or style
// content is skipped.
func PlainText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "li", "div", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "li", "div", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// collapseSpace joins lines into one string, collapsing whitespace runs.
func collapseSpace(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if f := strings.Join(strings.Fields(line), " "); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Speakable picks the text to synthesize for an answer. The rendered HTML
// is preferred because it carries no markdown markers.
func Speakable(text, htmlText string) string {
	if strings.TrimSpace(htmlText) != "" {
		if s := PlainText(htmlText); s != "" {
			return s
		}
	}
	r := strings.NewReplacer("**", "", "__", "", "`", "", "#", "")
	return collapseSpace(r.Replace(text))
}
