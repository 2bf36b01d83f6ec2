// Package quotes removes quoted reply chains from message bodies.
package quotes

import (
	"regexp"
	"strings"
)

var quoteStarts = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^On .+ wrote:`),
	regexp.MustCompile(`(?i)^From:.*`),
	regexp.MustCompile(`(?i)^-----Original (Message|Appointment)-----`),
	regexp.MustCompile(`(?i)^\*{0,2}From:\*{0,2}`),
	regexp.MustCompile(`(?i)^_{10,}`),
	regexp.MustCompile(`(?i)^-{10,}`),
	regexp.MustCompile(`(?i)^\s*>+`),
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Remove drops everything from the first quote indicator onwards.
//
// Once a quote block starts, every later line is dropped, including a
// signature written after the quoted text. Content without any indicator is
// returned unchanged.
func Remove(content string) string {
	var (
		kept          []string
		inQuoteBlock  bool
		anyQuoteFound bool
	)

	for _, line := range strings.Split(content, "\n") {
		if isQuoteStart(line) {
			inQuoteBlock = true
			anyQuoteFound = true
		}

		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			inQuoteBlock = true
			continue
		}

		if !inQuoteBlock {
			kept = append(kept, line)
		}
	}

	if !anyQuoteFound {
		return content
	}

	result := blankRuns.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

func isQuoteStart(line string) bool {
	for _, re := range quoteStarts {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
