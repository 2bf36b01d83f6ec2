// Package placement stores attachment and inline-image binaries next to an
// exported document and records where they went.
package placement

import (
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/sanitize"
	"github.com/saadiq/gmail-to-md/sink"
)

const defaultFilename = "unnamed"

// Options controls destinations and limits for one message.
type Options struct {
	AttachmentsDir  string
	InlineImagesDir string
	// BaseDir is the folder holding the document; recorded paths are relative to it.
	BaseDir string
	// SizeLimitBytes applies to attachments only; a negative value disables it.
	SizeLimitBytes int64
}

// Result holds updated copies of the inputs. The originals are never modified.
type Result struct {
	Written      []string
	Attachments  []model.AttachmentRef
	InlineImages map[string]model.InlineImageRef
	// Skipped lists attachment filenames excluded by the size limit.
	Skipped  []string
	Failures []error
}

// InlineImagePaths returns the content-ID substitution table for resolved images.
func (r Result) InlineImagePaths() map[string]string {
	paths := make(map[string]string, len(r.InlineImages))
	for cid, img := range r.InlineImages {
		if img.LocalPath != "" {
			paths[cid] = img.LocalPath
		}
	}
	return paths
}

// Place writes every accepted binary through s at a unique, sanitized path.
// Failures on one binary are collected and do not stop the others.
func Place(s sink.Sink, attachments []model.AttachmentRef, inline map[string]model.InlineImageRef, opts Options) Result {
	result := Result{
		Attachments:  make([]model.AttachmentRef, len(attachments)),
		InlineImages: make(map[string]model.InlineImageRef, len(inline)),
	}

	for i, att := range attachments {
		result.Attachments[i] = att
		if att.Data == nil {
			continue
		}
		if opts.SizeLimitBytes >= 0 && attachmentSize(att) > opts.SizeLimitBytes {
			result.Skipped = append(result.Skipped, att.Filename)
			continue
		}

		written, rel, err := store(s, opts.AttachmentsDir, opts.BaseDir, att.Filename, att.Data)
		if err != nil {
			result.Failures = append(result.Failures, errors.Wrapf(err, "attachment %q", att.Filename))
			continue
		}
		result.Attachments[i].LocalPath = rel
		result.Written = append(result.Written, written)
	}

	// Sorted so collision suffixes are stable between runs.
	cids := make([]string, 0, len(inline))
	for cid := range inline {
		cids = append(cids, cid)
	}
	sort.Strings(cids)

	for _, cid := range cids {
		img := inline[cid]
		result.InlineImages[cid] = img
		if img.Data == nil {
			continue
		}

		written, rel, err := store(s, opts.InlineImagesDir, opts.BaseDir, img.Filename, img.Data)
		if err != nil {
			result.Failures = append(result.Failures, errors.Wrapf(err, "inline image %q", cid))
			continue
		}
		img.LocalPath = rel
		result.InlineImages[cid] = img
		result.Written = append(result.Written, written)
	}

	return result
}

func attachmentSize(att model.AttachmentRef) int64 {
	if att.Size > 0 {
		return att.Size
	}
	return int64(len(att.Data))
}

func store(s sink.Sink, dir, baseDir, filename string, data []byte) (string, string, error) {
	if filename == "" {
		filename = defaultFilename
	}
	dest := sanitize.UniquePath(filepath.Join(dir, sanitize.Sanitize(filename, sanitize.DefaultMaxLength)), s.Exists)

	if err := s.WriteBytes(dest, data); err != nil {
		return "", "", err
	}

	rel, err := filepath.Rel(baseDir, dest)
	if err != nil {
		return dest, "", errors.Wrapf(err, "relative path for %s", dest)
	}
	return dest, filepath.ToSlash(rel), nil
}
