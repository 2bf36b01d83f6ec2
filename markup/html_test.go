package markup

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToTextEmpty(t *testing.T) {
	assert.Equal(t, EmptyContent, HTMLToText("", nil))
}

func TestHTMLToTextBasicMarkup(t *testing.T) {
	got := HTMLToText("<b>hi</b>", nil)
	assert.Contains(t, got, "hi")
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, ">")
}

func TestHTMLToTextHeadingsAreATX(t *testing.T) {
	got := HTMLToText("<h1>Title</h1><h2>Section</h2><p>text</p>", nil)
	assert.Contains(t, got, "# Title")
	assert.Contains(t, got, "## Section")
	assert.NotContains(t, got, "=====")
}

func TestHTMLToTextRemovesTrackingPixel(t *testing.T) {
	got := HTMLToText(`<img src="x.png" width="1" height="1">body text`, nil)
	assert.Contains(t, got, "body text")
	assert.NotContains(t, got, "x.png")
}

func TestHTMLToTextTrackingPixelLiteralMatch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKept bool
	}{
		{name: "width only", body: `<p>a</p><img src="w.png" width="1" height="40">`, wantKept: false},
		{name: "height only", body: `<p>a</p><img src="h.png" height="1">`, wantKept: false},
		{name: "decimal width kept", body: `<p>a</p><img src="d.png" width="1.0" height="1.0">`, wantKept: true},
		{name: "px suffix kept", body: `<p>a</p><img src="p.png" width="1px">`, wantKept: true},
		{name: "normal image kept", body: `<p>a</p><img src="n.png" width="600" height="300">`, wantKept: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HTMLToText(tt.body, nil)
			src := tt.body[strings.Index(tt.body, `src="`)+5:]
			src = src[:strings.Index(src, `"`)]
			assert.Equal(t, tt.wantKept, strings.Contains(got, src), "output: %q", got)
		})
	}
}

func TestHTMLToTextRewritesContentIDs(t *testing.T) {
	got := HTMLToText(`<img src="cid:abc">`, map[string]string{"abc": "attachments/img1.png"})
	assert.Contains(t, got, "attachments/img1.png")
	assert.NotContains(t, got, "cid:abc")
}

func TestHTMLToTextLeavesUnknownContentIDs(t *testing.T) {
	body := `<p>see</p><img src="cid:missing"><img src="cid:ABC">`
	got := HTMLToText(body, map[string]string{"abc": "images/a.png"})
	assert.Contains(t, got, "cid:missing")
	assert.Contains(t, got, "cid:ABC")
	assert.NotContains(t, got, "images/a.png")
}

func TestHTMLToTextDropsNonContentElements(t *testing.T) {
	body := `<html><head><title>ignored title</title><style>.x{color:red}</style></head>
<body><script>var leaked = 1;</script><p>visible</p><link rel="stylesheet" href="s.css"></body></html>`
	got := HTMLToText(body, nil)
	assert.Contains(t, got, "visible")
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "leaked")
	assert.NotContains(t, got, "ignored title")
	assert.NotContains(t, got, "s.css")
}

func TestHTMLToTextMalformedMarkup(t *testing.T) {
	got := HTMLToText(`<div><p>unclosed <b>bold <i>text</div></span>`, nil)
	assert.Contains(t, got, "unclosed")
	assert.Contains(t, got, "text")
}

func TestHTMLToTextAppliesFooterStripping(t *testing.T) {
	body := "<p>" + strings.Repeat("Real newsletter content. ", 20) + "</p>" +
		`<p>Click here to unsubscribe from this list.</p>`
	got := HTMLToText(body, nil)
	assert.Contains(t, got, "Real newsletter content.")
	assert.NotContains(t, strings.ToLower(got), "unsubscribe")
}

func TestCleanerFallsBackToTextExtraction(t *testing.T) {
	failing := NewCleaner(func(string) (string, error) {
		return "", errors.New("converter broke")
	})

	got := failing.HTMLToText(`<div>  first line </div><p>second   line</p><script>hidden()</script>`, nil)
	assert.Equal(t, "first line\nsecond   line", got)
}

func TestCleanerFallbackWithoutText(t *testing.T) {
	failing := NewCleaner(func(string) (string, error) {
		return "", errors.New("converter broke")
	})

	assert.Equal(t, NoTextContent, failing.HTMLToText(`<img src="a.png"><br>`, nil))
}

func TestCleanerRecoversFromConverterPanic(t *testing.T) {
	panicking := NewCleaner(func(string) (string, error) {
		panic("boom")
	})

	assert.Equal(t, "still here", panicking.HTMLToText(`<p>still here</p>`, nil))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "a b c", stripTags("<p>a</p>\n\n<b>b</b>   c"))
	assert.Equal(t, UnparsableContent, stripTags("<br/><hr>"))
}
