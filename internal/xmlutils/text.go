package xmlutils

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// elements that never contribute visible text
var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"noscript": true,
	"template": true,
}

// block elements end a line of visible text
var block = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "li": true,
	"table": true, "h1": true, "h2": true, "h3": true, "h4": true,
}

// VisibleText renders the text a reader would see in an HTML document, one
// line per block element, whitespace collapsed within each line.
func VisibleText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)

	var (
		lines   []string
		current strings.Builder
		hidden  int
	)
	flush := func() {
		if line := CleanText(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			flush()
			return strings.Join(lines, "\n"), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tt == html.StartTagToken && invisible[tag] {
				hidden++
			}
			if block[tag] {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case invisible[tag]:
				if hidden > 0 {
					hidden--
				}
			case block[tag]:
				flush()
			case tag == "td" || tag == "th":
				current.WriteByte(' ')
			}
		case html.TextToken:
			if hidden == 0 {
				current.Write(z.Text())
			}
		}
	}
}
