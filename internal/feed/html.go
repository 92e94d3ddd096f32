package feed

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// nonContentSelectors lists elements stripped before extracting text.
const nonContentSelectors = "script, style, noscript, svg, iframe, nav, header, footer, form"

// blockSelectors end a line of text.
const blockSelectors = "p, div, li, tr, dt, dd, h1, h2, h3, h4, h5, h6, section, article, table, ul, ol, blockquote"

// Page is a saved listing page reduced to text.
type Page struct {
	Title       string
	Description string
	URL         string
	Text        string
}

// ParsePage parses a listing page. Text starts with the title and meta
// description, followed by the visible body text one block per line.
func ParsePage(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, eris.Wrap(err, "feed: parse html")
	}

	p := Page{
		Title:       pageTitle(doc),
		Description: metaContent(doc, "meta[name='description']", "meta[property='og:description']"),
		URL:         pageURL(doc),
	}

	var lines []string
	if p.Title != "" {
		lines = append(lines, p.Title)
	}
	if p.Description != "" {
		lines = append(lines, p.Description)
	}
	lines = append(lines, bodyLines(doc)...)
	p.Text = strings.Join(dedupeAdjacent(lines), "\n")
	return p, nil
}

// HTMLText returns the visible text of an HTML listing page.
func HTMLText(r io.Reader) (string, error) {
	p, err := ParsePage(r)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

func pageTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return metaContent(doc, "meta[property='og:title']")
}

func pageURL(doc *goquery.Document) string {
	if href, ok := doc.Find("link[rel='canonical']").Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	return metaContent(doc, "meta[property='og:url']")
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func bodyLines(doc *goquery.Document) []string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	body.Find(nonContentSelectors).Remove()
	body.Find("br").ReplaceWithHtml("\n")
	body.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(body.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func dedupeAdjacent(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if len(out) > 0 && out[len(out)-1] == l {
			continue
		}
		out = append(out, l)
	}
	return out
}
