package model

import "time"

// MessageRecord represents a single email message fetched from a message source.
type MessageRecord struct {
	ID      string
	Subject string
	From    string
	To      string
	CC      string

	// Date is the original Date header; ParsedDate is zero when it could not be parsed.
	Date       string
	ParsedDate time.Time

	BodyHTML  string
	BodyPlain string

	Attachments  []AttachmentRef
	InlineImages map[string]InlineImageRef
}

// HasParsedDate reports whether the Date header was parsed successfully.
func (m MessageRecord) HasParsedDate() bool {
	return !m.ParsedDate.IsZero()
}

// AttachmentRef describes a non-inline binary part of a message.
type AttachmentRef struct {
	Filename  string
	MIMEType  string
	Size      int64
	BlobID    string
	Data      []byte
	LocalPath string
}

// InlineImageRef describes an image part referenced from the HTML body via cid:.
type InlineImageRef struct {
	ContentID string
	MIMEType  string
	Filename  string
	Data      []byte
	LocalPath string
}

// Headers is the lightweight view of a message used for listings.
type Headers struct {
	ID      string
	Subject string
	From    string
	To      string
	Date    string
}

// CleanedDocument is the rendered output for one message.
type CleanedDocument struct {
	Metadata string
	Content  string
}

// String joins the metadata block and the content block.
func (d CleanedDocument) String() string {
	return d.Metadata + "\n\n" + d.Content
}

// Envelope wraps a message identifier alongside an optional error encountered while listing.
type Envelope struct {
	ID  string
	Err error
}
