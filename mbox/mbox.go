// Package mbox serves messages from a local mbox archive such as a Google
// Takeout export.
package mbox

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message/textproto"

	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/source"
)

var ErrPathEmpty = errors.New("mbox path is empty")

type Options struct {
	Path string
}

// Source indexes an mbox archive in memory and serves its messages by
// Message-Id. Messages without one get a content-hash identifier.
type Source struct {
	path   string
	logger *slog.Logger
	ids    []string
	raw    map[string][]byte
}

var _ source.Source = (*Source)(nil)

// Open reads and indexes the archive at opts.Path.
func Open(opts Options, logger *slog.Logger) (*Source, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, ErrPathEmpty
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return newSource(path, file, logger)
}

// NewSourceFromReader indexes an archive read from r.
func NewSourceFromReader(r io.Reader, logger *slog.Logger) (*Source, error) {
	return newSource("", r, logger)
}

func newSource(path string, r io.Reader, logger *slog.Logger) (*Source, error) {
	s := &Source{
		path:   path,
		logger: logger,
		raw:    make(map[string][]byte),
	}
	if err := s.load(r); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Debug("mbox indexed", "path", path, "messages", len(s.ids))
	}
	return s, nil
}

func (s *Source) load(r io.Reader) error {
	reader := mboxlib.NewReader(r)

	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("message %d read: %w", idx, err)
		}

		id := messageID(raw)
		if _, dup := s.raw[id]; dup {
			if s.logger != nil {
				s.logger.Debug("mbox duplicate message skipped", "path", s.path, "index", idx, "messageID", id)
			}
			continue
		}
		s.ids = append(s.ids, id)
		s.raw[id] = raw
	}
}

// ListIDs returns identifiers in archive order. A non-empty query is a
// case-insensitive regular expression matched against the header block.
func (s *Source) ListIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	var re *regexp.Regexp
	if query = strings.TrimSpace(query); query != "" {
		var err error
		re, err = regexp.Compile("(?i)" + query)
		if err != nil {
			return nil, fmt.Errorf("compile query %q: %w", query, err)
		}
	}

	ids := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if maxResults > 0 && len(ids) >= maxResults {
			break
		}
		if re != nil {
			header, _ := splitRawMessage(s.raw[id])
			if !re.Match(header) {
				continue
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Source) Headers(_ context.Context, id string) (model.Headers, error) {
	raw, ok := s.raw[id]
	if !ok {
		return model.Headers{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return source.ParseHeaders(id, raw)
}

func (s *Source) Fetch(_ context.Context, id string, downloadBinaries bool) (model.MessageRecord, error) {
	raw, ok := s.raw[id]
	if !ok {
		return model.MessageRecord{}, fmt.Errorf("%w: %s", source.ErrNotFound, id)
	}
	return source.ParseMessage(id, raw, downloadBinaries)
}

// Count returns the number of distinct messages in the archive.
func (s *Source) Count() int {
	return len(s.ids)
}

func (s *Source) Close() error {
	s.raw = map[string][]byte{}
	s.ids = nil
	return nil
}

func messageID(raw []byte) string {
	header, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err == nil {
		if id := source.NormalizeMessageID(header.Get("Message-Id")); id != "" {
			return id
		}
	}

	sum := sha256.Sum256(raw)
	return "sha256-" + hex.EncodeToString(sum[:8])
}

func splitRawMessage(raw []byte) (header, body []byte) {
	if len(raw) == 0 {
		return nil, nil
	}

	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:]
	}

	return raw, nil
}
