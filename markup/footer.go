package markup

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// LinkPlaceholder replaces tracking URLs in cleaned content.
const LinkPlaceholder = "[link]"

// footerIndicators are matched case-insensitively; order only matters for ties.
var footerIndicators = []string{
	"unsubscribe",
	"update your preferences",
	"privacy policy",
	"terms of service",
	"(c) 20",
	"© 20",
	"copyright",
	"forward to a friend",
	"view in your browser",
	"manage your subscription",
}

var (
	footerPatterns = compileIndicators(footerIndicators)

	excessNewlines = regexp.MustCompile(`\n{4,}`)
	excessSpaces   = regexp.MustCompile(`[ \t]{3,}`)

	// URL matching is case-sensitive on purpose.
	trackingURLs = []*regexp.Regexp{
		regexp.MustCompile(`https?://[^\s]*(?:track|click|analytics|pixel|utm_)[^\s]*`),
		regexp.MustCompile(`https?://[^\s]*mailchi\.mp[^\s]*`),
		regexp.MustCompile(`https?://[^\s]*list-manage\.com[^\s]*`),
	}
)

func compileIndicators(indicators []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(indicators))
	for _, indicator := range indicators {
		patterns = append(patterns, regexp.MustCompile("(?i)"+regexp.QuoteMeta(indicator)))
	}
	return patterns
}

// Clean strips promotional footers found past the midpoint of content,
// normalises blank space and replaces tracking links with LinkPlaceholder.
func Clean(content string) string {
	if content == "" {
		return content
	}

	content = content[:footerCut(content)]
	content = excessNewlines.ReplaceAllString(content, "\n\n\n")
	content = excessSpaces.ReplaceAllString(content, "  ")

	for _, re := range trackingURLs {
		content = re.ReplaceAllLiteralString(content, LinkPlaceholder)
	}

	return strings.TrimSpace(content)
}

// footerCut returns the byte offset of the earliest footer indicator lying
// strictly past the midpoint, or len(content) when there is none.
func footerCut(content string) int {
	cut := len(content)
	total := float64(utf8.RuneCountInString(content))

	for _, re := range footerPatterns {
		loc := re.FindStringIndex(content)
		if loc == nil {
			continue
		}
		pos := loc[0]
		if pos <= 0 || pos >= cut {
			continue
		}
		if float64(utf8.RuneCountInString(content[:pos]))/total > 0.5 {
			cut = pos
		}
	}

	return cut
}
