// Package document renders a message record as a markdown document with a
// metadata block.
package document

import (
	"regexp"
	"strings"

	"github.com/saadiq/gmail-to-md/markup"
	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/quotes"
)

// NoContent is written when a message has no usable body.
const NoContent = "*[No content available]*"

var plainLine = regexp.MustCompile(`(?m)^(\w.+)$`)

type Options struct {
	RemoveQuotes bool
	// IncludeImagePaths substitutes resolved inline images and lists attachment local paths.
	IncludeImagePaths bool
	// BoldPlainLines bolds each word-initial line of a plain-text body.
	BoldPlainLines bool
}

// DefaultOptions returns the options used by the export command.
func DefaultOptions() Options {
	return Options{RemoveQuotes: true}
}

// Assembler renders documents with a specific markup cleaner.
type Assembler struct {
	cleaner *markup.Cleaner
}

func NewAssembler(cleaner *markup.Cleaner) *Assembler {
	if cleaner == nil {
		cleaner = markup.NewCleaner(nil)
	}
	return &Assembler{cleaner: cleaner}
}

var defaultAssembler = NewAssembler(nil)

// Assemble renders rec with the default Assembler.
func Assemble(rec model.MessageRecord, opts Options) model.CleanedDocument {
	return defaultAssembler.Assemble(rec, opts)
}

// Assemble renders rec. The output depends only on rec and opts, so rendering
// again after placement yields the final document.
func (a *Assembler) Assemble(rec model.MessageRecord, opts Options) model.CleanedDocument {
	lines := []string{
		"# " + rec.Subject,
		"",
		"## Email Details",
		"**From:** " + rec.From + "  ",
		"**To:** " + rec.To + "  ",
	}
	if rec.CC != "" {
		lines = append(lines, "**CC:** "+rec.CC+"  ")
	}
	lines = append(lines,
		"**Date:** "+rec.Date+"  ",
		"",
		"## Content",
		"",
		a.body(rec, opts),
	)

	return model.CleanedDocument{
		Metadata: FrontMatter(rec, opts.IncludeImagePaths),
		Content:  strings.Join(lines, "\n"),
	}
}

func (a *Assembler) body(rec model.MessageRecord, opts Options) string {
	var body string

	switch {
	case rec.BodyHTML != "":
		var paths map[string]string
		if opts.IncludeImagePaths {
			paths = inlineImagePaths(rec.InlineImages)
		}
		body = a.cleaner.HTMLToText(rec.BodyHTML, paths)
		if opts.RemoveQuotes {
			body = quotes.Remove(body)
		}
	case rec.BodyPlain != "":
		body = rec.BodyPlain
		if opts.RemoveQuotes {
			body = quotes.Remove(body)
		}
		if opts.BoldPlainLines {
			body = plainLine.ReplaceAllString(body, "**$1**")
		}
	}

	if strings.TrimSpace(body) == "" {
		return NoContent
	}
	return body
}

func inlineImagePaths(images map[string]model.InlineImageRef) map[string]string {
	paths := make(map[string]string, len(images))
	for cid, img := range images {
		if img.LocalPath != "" {
			paths[cid] = img.LocalPath
		}
	}
	return paths
}
