package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// linkRule maps a CSS selector group onto a link classification.
type linkRule struct {
	selector    string
	kind        analyzer.LinkKind
	location    string
	defaultText string
}

var anchorRules = []linkRule{
	{"nav a, header a, .menu a, .navigation a", analyzer.LinkNavigation, "header/nav", "Navigation link"},
	{"main a, .content a, article a", analyzer.LinkContent, "main content", "Content link"},
}

var footerRule = linkRule{"footer a", analyzer.LinkFooter, "footer", "Footer link"}

const buttonSelector = "button[onclick], a.button, .btn"

// ExtractPageData parses html loaded from pageURL and returns its title,
// meta description and classified links. Anchors are kept only when they
// resolve to an http(s) URL; buttons are kept when they have visible text.
// Links are returned in document order per group: navigation, content,
// buttons, footer.
func ExtractPageData(pageURL, html string) (analyzer.PageData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return analyzer.PageData{}, fmt.Errorf("parse html: %w", err)
	}
	base, err := baseURL(doc, pageURL)
	if err != nil {
		return analyzer.PageData{}, err
	}

	data := analyzer.PageData{
		URL:         pageURL,
		Title:       cleanText(doc.Find("title").First().Text()),
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", "")),
	}
	for _, rule := range anchorRules {
		data.Links = append(data.Links, collectAnchors(doc, base, rule)...)
	}
	data.Links = append(data.Links, collectButtons(doc, base, pageURL)...)
	data.Links = append(data.Links, collectAnchors(doc, base, footerRule)...)
	return data, nil
}

func collectAnchors(doc *goquery.Document, base *url.URL, rule linkRule) []analyzer.ExtractedLink {
	var out []analyzer.ExtractedLink
	doc.Find(rule.selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := resolveHref(base, sel)
		if !ok {
			return
		}
		text := cleanText(sel.Text())
		if text == "" {
			text = strings.TrimSpace(sel.AttrOr("aria-label", ""))
		}
		if text == "" {
			text = rule.defaultText
		}
		out = append(out, analyzer.ExtractedLink{
			URL:      href,
			Text:     text,
			Kind:     rule.kind,
			Location: rule.location,
		})
	})
	return out
}

func collectButtons(doc *goquery.Document, base *url.URL, pageURL string) []analyzer.ExtractedLink {
	var out []analyzer.ExtractedLink
	doc.Find(buttonSelector).Each(func(_ int, sel *goquery.Selection) {
		text := cleanText(sel.Text())
		if text == "" {
			return
		}
		target := pageURL
		if href, ok := resolveHref(base, sel); ok {
			target = href
		} else if onclick := strings.TrimSpace(sel.AttrOr("onclick", "")); onclick != "" {
			target = onclick
		}
		out = append(out, analyzer.ExtractedLink{
			URL:      target,
			Text:     text,
			Kind:     analyzer.LinkButton,
			Location: "interactive element",
		})
	})
	return out
}

// resolveHref returns the absolute http(s) target of an anchor.
func resolveHref(base *url.URL, sel *goquery.Selection) (string, bool) {
	if goquery.NodeName(sel) != "a" {
		return "", false
	}
	raw, ok := sel.Attr("href")
	if !ok {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	// Fragments address the same document.
	abs.Fragment, abs.RawFragment = "", ""
	return abs.String(), true
}

// baseURL honors a <base href> element the way a browser would.
func baseURL(doc *goquery.Document, pageURL string) (*url.URL, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			return page.ResolveReference(ref), nil
		}
	}
	return page, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
