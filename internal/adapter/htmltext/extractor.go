package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the readable part of an HTML document.
type Page struct {
	Title string
	Text  string
}

// Extract parses htmlContent and returns its title and body text with markup,
// scripts and styles removed and whitespace collapsed.
func Extract(htmlContent string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	doc.Find("script, style, noscript, template").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	// Block elements would otherwise glue neighbouring words together.
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return &Page{
		Title: collapse(doc.Find("title").First().Text()),
		Text:  collapseLines(doc.Find("body").Text()),
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func collapseLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
