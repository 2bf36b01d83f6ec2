// Package source defines where messages come from and turns raw RFC 5322
// data into message records.
package source

import (
	"context"
	"errors"
	"strings"

	"github.com/saadiq/gmail-to-md/model"
)

var ErrNotFound = errors.New("message not found")

// Source yields messages by opaque identifier.
type Source interface {
	// ListIDs returns at most maxResults identifiers; the query syntax is source specific.
	ListIDs(ctx context.Context, query string, maxResults int) ([]string, error)
	Headers(ctx context.Context, id string) (model.Headers, error)
	// Fetch returns the full record. Binary data is populated only when downloadBinaries is set.
	Fetch(ctx context.Context, id string, downloadBinaries bool) (model.MessageRecord, error)
	Close() error
}

// NormalizeMessageID strips whitespace and angle brackets from a Message-Id value.
func NormalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// NormalizeContentID strips whitespace, angle brackets and a cid: prefix.
func NormalizeContentID(cid string) string {
	cid = strings.TrimSpace(cid)
	if len(cid) >= 4 && strings.EqualFold(cid[:4], "cid:") {
		cid = cid[4:]
	}
	return strings.Trim(cid, "<>")
}
