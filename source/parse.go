package source

import (
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/jhillyerd/enmime"

	"github.com/saadiq/gmail-to-md/model"
)

// ParseMessage decodes a raw message into a record. Inline images are parts
// with a Content-ID, an image/* type and no disposition or an inline one;
// every other named part is an attachment.
func ParseMessage(id string, raw []byte, downloadBinaries bool) (model.MessageRecord, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return model.MessageRecord{}, fmt.Errorf("parse message %s: %w", id, err)
	}

	rec := model.MessageRecord{
		ID:        id,
		Subject:   env.GetHeader("Subject"),
		From:      env.GetHeader("From"),
		To:        env.GetHeader("To"),
		CC:        env.GetHeader("Cc"),
		Date:      env.GetHeader("Date"),
		BodyHTML:  env.HTML,
		BodyPlain: env.Text,
	}
	rec.ParsedDate = ParseDate(rec.Date)

	parts := make([]*enmime.Part, 0, len(env.Inlines)+len(env.Attachments)+len(env.OtherParts))
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.OtherParts...)

	for idx, part := range parts {
		cid := NormalizeContentID(part.ContentID)
		if isInlineImage(cid, part) {
			if rec.InlineImages == nil {
				rec.InlineImages = make(map[string]model.InlineImageRef)
			}
			if _, dup := rec.InlineImages[cid]; dup {
				continue
			}
			img := model.InlineImageRef{
				ContentID: cid,
				MIMEType:  part.ContentType,
				Filename:  part.FileName,
			}
			if img.Filename == "" {
				img.Filename = cid + "." + subtype(part.ContentType)
			}
			if downloadBinaries {
				img.Data = part.Content
			}
			rec.InlineImages[cid] = img
			continue
		}

		if part.FileName == "" {
			continue
		}
		att := model.AttachmentRef{
			Filename: part.FileName,
			MIMEType: part.ContentType,
			Size:     int64(len(part.Content)),
			BlobID:   fmt.Sprintf("%s/%d", id, idx),
		}
		if downloadBinaries {
			att.Data = part.Content
		}
		rec.Attachments = append(rec.Attachments, att)
	}

	return rec, nil
}

func isInlineImage(cid string, part *enmime.Part) bool {
	if cid == "" || !strings.HasPrefix(strings.ToLower(part.ContentType), "image/") {
		return false
	}
	disposition := strings.ToLower(part.Disposition)
	return disposition == "" || strings.Contains(disposition, "inline")
}

func subtype(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}

// ParseHeaders decodes only the header block of a raw message.
func ParseHeaders(id string, raw []byte) (model.Headers, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return model.Headers{}, fmt.Errorf("parse headers %s: %w", id, err)
	}
	defer mr.Close()

	return model.Headers{
		ID:      id,
		Subject: headerText(mr.Header, "Subject"),
		From:    headerText(mr.Header, "From"),
		To:      headerText(mr.Header, "To"),
		Date:    mr.Header.Get("Date"),
	}, nil
}

func headerText(h gomail.Header, key string) string {
	value, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}
	return value
}

// ParseDate parses an RFC 5322 date, returning the zero time when it cannot.
func ParseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		return time.Time{}
	}
	return t
}
