package document

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/source"
)

const (
	delimiter = "---"

	// DateLayout matches ISO-8601 with a numeric offset, e.g. 2024-01-01T10:00:00+00:00.
	DateLayout = "2006-01-02T15:04:05-07:00"
)

// FrontMatter renders the metadata block, delimiters included.
func FrontMatter(rec model.MessageRecord, includeImagePaths bool) string {
	lines := []string{
		delimiter,
		field("subject", rec.Subject),
		field("from", rec.From),
		field("to", rec.To),
	}
	if rec.CC != "" {
		lines = append(lines, field("cc", rec.CC))
	}
	lines = append(lines, field("date", rec.Date))
	parsed := rec.ParsedDate
	if parsed.IsZero() {
		parsed = source.ParseDate(rec.Date)
	}
	if !parsed.IsZero() {
		lines = append(lines, field("date_parsed", FormatDate(parsed)))
	}

	if len(rec.Attachments) > 0 {
		lines = append(lines, "attachments:")
		for _, att := range rec.Attachments {
			lines = append(lines,
				"  - filename: "+quote(att.Filename),
				"    type: "+quote(att.MIMEType),
				"    size: "+strconv.FormatInt(att.Size, 10),
			)
			if includeImagePaths && att.LocalPath != "" {
				lines = append(lines, "    local_path: "+quote(att.LocalPath))
			}
		}
	}

	lines = append(lines, delimiter)
	return strings.Join(lines, "\n")
}

// FormatDate renders t the way date_parsed is written.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func field(key, value string) string {
	return key + ": " + quote(value)
}

// quote renders value as a JSON string literal, which is also a valid
// double-quoted YAML scalar.
func quote(value string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return strconv.Quote(value)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
