package markup

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Placeholders returned instead of an error when a body cannot be rendered.
const (
	EmptyContent      = "[Empty email content]"
	NoTextContent     = "[Could not extract text content]"
	UnparsableContent = "[ERROR: Could not parse email content]"
)

const cidScheme = "cid:"

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Converter turns serialized HTML into markdown.
type Converter func(html string) (string, error)

// Cleaner renders HTML email bodies as markdown text.
type Cleaner struct {
	convert Converter
}

// NewCleaner returns a Cleaner using convert, or the ATX-heading markdown
// converter when convert is nil.
func NewCleaner(convert Converter) *Cleaner {
	if convert == nil {
		convert = markdownConverter()
	}
	return &Cleaner{convert: convert}
}

func markdownConverter() Converter {
	converter := md.NewConverter("", true, &md.Options{HeadingStyle: "atx"})
	return converter.ConvertString
}

var defaultCleaner = NewCleaner(nil)

// HTMLToText renders body with the default Cleaner.
func HTMLToText(body string, inlineImagePaths map[string]string) string {
	return defaultCleaner.HTMLToText(body, inlineImagePaths)
}

// HTMLToText converts an HTML body to markdown. References of the form
// cid:<id> are rewritten to inlineImagePaths[id] when present. It never fails:
// every error path yields a placeholder or a degraded plain-text rendering.
func (c *Cleaner) HTMLToText(body string, inlineImagePaths map[string]string) (text string) {
	if body == "" {
		return EmptyContent
	}

	defer func() {
		if r := recover(); r != nil {
			text = stripTags(body)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return stripTags(body)
	}

	rewriteInlineImages(doc, inlineImagePaths)
	doc.Find("style, script, meta, link, head").Remove()
	doc.Find("img").FilterFunction(isTrackingPixel).Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return extractText(doc)
	}

	markdown, err := c.safeConvert(cleaned)
	if err != nil {
		return extractText(doc)
	}

	return Clean(markdown)
}

func (c *Cleaner) safeConvert(cleaned string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("markdown conversion panicked: %v", r)
		}
	}()
	return c.convert(cleaned)
}

func rewriteInlineImages(doc *goquery.Document, inlineImagePaths map[string]string) {
	if len(inlineImagePaths) == 0 {
		return
	}
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || !strings.HasPrefix(src, cidScheme) {
			return
		}
		if path, found := inlineImagePaths[strings.TrimPrefix(src, cidScheme)]; found && path != "" {
			img.SetAttr("src", path)
		}
	})
}

// isTrackingPixel compares the literal attribute values, so width="1.0" survives.
func isTrackingPixel(_ int, img *goquery.Selection) bool {
	width, _ := img.Attr("width")
	height, _ := img.Attr("height")
	return width == "1" || height == "1"
}

// extractText joins the trimmed, non-empty text nodes of the document with newlines.
func extractText(doc *goquery.Document) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	if len(parts) == 0 {
		return NoTextContent
	}
	return strings.Join(parts, "\n")
}

func stripTags(body string) string {
	text := tagPattern.ReplaceAllString(body, "")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return UnparsableContent
	}
	return text
}
