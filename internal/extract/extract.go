package extract

import (
	"bytes"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
)

// WeChat pages render the publish time from an epoch assigned in inline script.
var scriptTimestampExpr = regexp.MustCompile(`var\s+ct\s*=\s*"(\d{9,11})"`)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Extractor recovers labelled article fields from a fetched page.
type Extractor struct {
	titleSelectors      []string
	publisherSelectors  []string
	bodySelectors       []string
	publishedSelectors  []string
	challengeMarkers    []string
	readabilityFallback bool
	location            *time.Location
}

// New creates an extractor from the extract section of the config.
func New(cfg config.Extract) *Extractor {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Printf("Unknown timezone %q, using UTC: %v", cfg.Timezone, err)
		} else {
			loc = l
		}
	}

	markers := make([]string, 0, len(cfg.ChallengeMarkers))
	for _, m := range cfg.ChallengeMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}

	return &Extractor{
		titleSelectors:      cfg.TitleSelectors,
		publisherSelectors:  cfg.PublisherSelectors,
		bodySelectors:       cfg.BodySelectors,
		publishedSelectors:  cfg.PublishedSelectors,
		challengeMarkers:    markers,
		readabilityFallback: cfg.ReadabilityFallback,
		location:            loc,
	}
}

// Extract parses doc into a Content record. Only a missing or empty body is
// fatal; the other regions fall back to placeholders. The call does no I/O.
func (e *Extractor) Extract(doc *article.RawDocument) (*article.Content, error) {
	if doc == nil || len(doc.Body) == 0 {
		return nil, article.ContentNotFound("empty document")
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, article.ContentNotFound("unparsable markup: " + err.Error())
	}

	content := &article.Content{
		Title:       firstMatch(page, e.titleSelectors),
		Publisher:   firstMatch(page, e.publisherSelectors),
		PublishedAt: e.publishedAt(page, doc.Body),
		SourceURL:   doc.RequestURL,
	}

	body := firstSelection(page, e.bodySelectors)
	if body == nil {
		if marker := e.challengeMarker(doc.Body); marker != "" {
			return nil, article.ChallengePage(marker)
		}
		if e.readabilityFallback {
			if e.fillFromReadability(content, doc) {
				fillPlaceholders(content)
				return content, nil
			}
		}
		return nil, article.ContentNotFound("no body container matched")
	}

	body.Find("script, style, noscript, template").Remove()
	content.BodyText = nodeText(body)
	if content.BodyText == "" {
		return nil, article.ContentNotFound("body container is empty")
	}

	fillPlaceholders(content)
	return content, nil
}

func (e *Extractor) challengeMarker(raw []byte) string {
	text := strings.ToLower(string(raw))
	for _, m := range e.challengeMarkers {
		if strings.Contains(text, m) {
			return m
		}
	}
	return ""
}

func (e *Extractor) fillFromReadability(content *article.Content, doc *article.RawDocument) bool {
	pageURL, _ := url.Parse(doc.FinalURL)
	parsed, err := readability.FromReader(bytes.NewReader(doc.Body), pageURL)
	if err != nil {
		log.Printf("Readability fallback failed for %s: %v", doc.RequestURL, err)
		return false
	}
	text := collapse(parsed.TextContent)
	if text == "" {
		return false
	}

	content.BodyText = text
	if content.Title == "" {
		content.Title = collapse(parsed.Title)
	}
	if content.Publisher == "" {
		content.Publisher = collapse(parsed.SiteName)
	}
	if content.Publisher == "" {
		content.Publisher = collapse(parsed.Byline)
	}
	log.Printf("Body container missing, used readability fallback for %s", doc.RequestURL)
	return true
}

func (e *Extractor) publishedAt(page *goquery.Document, raw []byte) string {
	if text := firstMatch(page, e.publishedSelectors); text != "" {
		return e.normalizeTime(text)
	}
	if m := scriptTimestampExpr.FindSubmatch(raw); m != nil {
		if sec, err := strconv.ParseInt(string(m[1]), 10, 64); err == nil {
			return time.Unix(sec, 0).In(e.location).Format(time.RFC3339)
		}
	}
	return ""
}

// normalizeTime rewrites parseable timestamps as RFC 3339 and keeps anything else verbatim.
func (e *Extractor) normalizeTime(text string) string {
	t, err := dateparse.ParseIn(text, e.location)
	if err != nil {
		return text
	}
	return t.Format(time.RFC3339)
}

func fillPlaceholders(c *article.Content) {
	if c.Title == "" {
		c.Title = article.UnknownTitle
	}
	if c.Publisher == "" {
		c.Publisher = article.UnknownPublisher
	}
	if c.PublishedAt == "" {
		c.PublishedAt = article.UnknownPublished
	}
}

func firstSelection(page *goquery.Document, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		sel := page.Find(s).First()
		if sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// firstMatch returns the text of the first selector that yields a non-empty value.
// Meta tags contribute their content attribute.
func firstMatch(page *goquery.Document, selectors []string) string {
	for _, s := range selectors {
		sel := page.Find(s).First()
		if sel.Length() == 0 {
			continue
		}
		var text string
		if goquery.NodeName(sel) == "meta" {
			text = collapse(sel.AttrOr("content", ""))
		} else {
			text = collapse(sel.Text())
		}
		if text != "" {
			return text
		}
	}
	return ""
}

// nodeText flattens a selection to text, separating block elements so adjacent
// paragraphs do not run together.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			block := blockElements[n.Data]
			if block {
				b.WriteByte(' ')
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				b.WriteByte(' ')
			}
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return collapse(b.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
