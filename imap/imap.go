// Package imap serves messages from a remote IMAP mailbox, e.g. Gmail's
// "[Gmail]/All Mail".
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/source"
)

var ErrInvalidID = errors.New("imap message id is not a UID")

const DefaultMailbox = "INBOX"

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	// SinceDays restricts listing to messages newer than this many days; zero lists all.
	SinceDays int
}

// Source reads a single mailbox over one lazily opened, read-only connection.
type Source struct {
	opts   Options
	logger *slog.Logger

	client  *imapclient.Client
	cleanup func()
}

var _ source.Source = (*Source)(nil)

func NewSource(opts Options, logger *slog.Logger) (*Source, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	return &Source{opts: opts, logger: logger}, nil
}

// ListIDs returns the UIDs of the most recent maxResults matching messages.
// A non-empty query becomes an IMAP TEXT search key.
func (s *Source) ListIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	criteria := &imapv2.SearchCriteria{}
	if s.opts.SinceDays > 0 {
		criteria.Since = time.Now().AddDate(0, 0, -s.opts.SinceDays)
	}
	if query = strings.TrimSpace(query); query != "" {
		criteria.Text = []string{query}
	}

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.mailbox(), err)
	}

	uids := data.AllUIDs()
	if maxResults > 0 && len(uids) > maxResults {
		uids = uids[len(uids)-maxResults:]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

func (s *Source) Headers(ctx context.Context, id string) (model.Headers, error) {
	buf, err := s.fetch(ctx, id, &imapv2.FetchOptions{Envelope: true, UID: true})
	if err != nil {
		return model.Headers{}, err
	}

	headers := model.Headers{ID: id}
	if env := buf.Envelope; env != nil {
		headers.Subject = env.Subject
		headers.From = formatAddresses(env.From)
		headers.To = formatAddresses(env.To)
		if !env.Date.IsZero() {
			headers.Date = env.Date.Format(time.RFC1123Z)
		}
	}
	return headers, nil
}

func (s *Source) Fetch(ctx context.Context, id string, downloadBinaries bool) (model.MessageRecord, error) {
	section := &imapv2.FetchItemBodySection{Peek: true}
	buf, err := s.fetch(ctx, id, &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	})
	if err != nil {
		return model.MessageRecord{}, err
	}

	raw := buf.FindBodySection(section)
	if raw == nil {
		return model.MessageRecord{}, fmt.Errorf("message %s: empty body section", id)
	}
	return source.ParseMessage(id, raw, downloadBinaries)
}

func (s *Source) fetch(ctx context.Context, id string, opts *imapv2.FetchOptions) (*imapclient.FetchMessageBuffer, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	cmd := client.Fetch(imapv2.UIDSetNum(imapv2.UID(uid)), opts)
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("%w: uid %d", source.ErrNotFound, uid)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch uid %d: %w", uid, err)
	}
	return buf, nil
}

func (s *Source) connect(ctx context.Context) (*imapclient.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	client, cleanup, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.client, s.cleanup = client, cleanup
	return client, nil
}

func (s *Source) Close() error {
	if s.cleanup != nil {
		s.cleanup()
	}
	s.client, s.cleanup = nil, nil
	return nil
}

func (s *Source) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	options := &imapclient.Options{}

	if s.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         s.opts.Host,
			InsecureSkipVerify: s.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if s.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(s.opts.Username, s.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if _, err := client.Select(s.mailbox(), &imapv2.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("select mailbox %s: %w", s.mailbox(), err)
	}

	if s.logger != nil {
		s.logger.Debug("imap connection established", "address", address, "user", s.opts.Username, "mailbox", s.mailbox(), "tls", s.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil && s.logger != nil {
				s.logger.Warn("imap logout failed", "err", err)
			}
		}
		if err := client.Close(); err != nil && s.logger != nil {
			s.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (s *Source) mailbox() string {
	if s.opts.Mailbox == "" {
		return DefaultMailbox
	}
	return s.opts.Mailbox
}

func formatAddresses(addrs []imapv2.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", addr.Name, addr.Addr()))
			continue
		}
		parts = append(parts, addr.Addr())
	}
	return strings.Join(parts, ", ")
}
