// Package report prints run summaries and message listings to the terminal.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/pterm/pterm"

	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/stats"
)

const cellWidth = 48

// Printer writes styled output to w.
type Printer struct {
	w       io.Writer
	enabled bool
}

// New returns a Printer. Summaries are only printed at the info log level,
// where they do not interleave with debug logging.
func New(w io.Writer, logLevel string) *Printer {
	return &Printer{w: w, enabled: logLevel == "info"}
}

func (p *Printer) Enabled() bool {
	return p.enabled
}

// Summary prints the totals of an export run.
func (p *Printer) Summary(s stats.Summary, duration time.Duration, folder string, dryRun bool) {
	if !p.enabled {
		return
	}

	info := pterm.Info.WithWriter(p.w)
	title := "Export Summary"
	if dryRun {
		title = "Export Summary (dry run)"
	}

	pterm.Fprintln(p.w)
	pterm.DefaultSection.WithWriter(p.w).Println(title)
	info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	info.Printf("Listed: %d\n", s.Listed)
	if dryRun {
		info.Printf("Would export: %d\n", s.DryRunExported)
	} else {
		info.Printf("Exported: %d\n", s.Exported)
	}
	info.Printf("Already exported (skipped): %d\n", s.AlreadyExported)
	info.Printf("Filtered: %d\n", s.Filtered)
	info.Printf("Binaries written: %d\n", s.BinariesWritten)
	info.Printf("Attachments over size limit: %d\n", s.AttachmentsSkipped)
	info.Printf("Failed: %d\n", s.Failed())
	if s.BinaryFailures > 0 {
		pterm.Warning.WithWriter(p.w).Printf("Binaries not saved: %d\n", s.BinaryFailures)
	}
	if s.LastError != nil {
		pterm.Error.WithWriter(p.w).Printf("Last error: %v\n", s.LastError)
	}
	if folder != "" && !dryRun && s.Exported > 0 {
		pterm.Success.WithWriter(p.w).Printf("Documents written to %s\n", folder)
	}
}

// Headers renders one table row per message. snippets is optional and keyed by message ID.
func (p *Printer) Headers(rows []model.Headers, snippets map[string]string) error {
	if len(rows) == 0 {
		pterm.Info.WithWriter(p.w).Println("No messages matched.")
		return nil
	}

	header := []string{"#", "Date", "From", "To", "Subject"}
	if snippets != nil {
		header = append(header, "Snippet")
	}
	data := pterm.TableData{header}
	for i, h := range rows {
		row := []string{strconv.Itoa(i + 1), h.Date, truncate(h.From, cellWidth), truncate(h.To, cellWidth), truncate(h.Subject, cellWidth)}
		if snippets != nil {
			row = append(row, truncate(snippets[h.ID], cellWidth))
		}
		data = append(data, row)
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(p.w).WithData(data).Render()
}

// TopSenders prints the most frequent senders.
func (p *Printer) TopSenders(counts map[string]int, limit int) {
	if len(counts) == 0 {
		return
	}
	var buf bytes.Buffer
	stats.PrintTop(&buf, counts, limit)
	pterm.DefaultSection.WithWriter(p.w).Println(fmt.Sprintf("Top %d senders", limit))
	pterm.Fprint(p.w, buf.String())
}

// Snippet returns a single-line plain-text preview of the message body.
func Snippet(rec model.MessageRecord, maxRunes int) string {
	text := rec.BodyPlain
	if strings.TrimSpace(text) == "" && rec.BodyHTML != "" {
		text = html2text.HTML2Text(rec.BodyHTML)
	}
	return truncate(strings.Join(strings.Fields(text), " "), maxRunes)
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
