package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

var relatedMessage = crlf(`From: Alice Example <alice@example.com>
To: bob@example.com
Cc: carol@example.com
Subject: =?UTF-8?Q?Caf=C3=A9_menu?=
Date: Mon, 1 Jan 2024 10:00:00 +0000
Message-ID: <menu-1@example.com>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/related; boundary="rel"

--rel
Content-Type: multipart/alternative; boundary="alt"

--alt
Content-Type: text/plain; charset=utf-8

Menu attached.
--alt
Content-Type: text/html; charset=utf-8

<p>Menu:</p><img src="cid:logo@example.com">
--alt--
--rel
Content-Type: image/png
Content-ID: <logo@example.com>
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--rel
Content-Type: image/gif
Content-ID: <banner>
Content-Disposition: inline; filename="banner.gif"
Content-Transfer-Encoding: base64

R0lGODlh
--rel--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="menu.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer
Content-Type: image/jpeg
Content-ID: <photo>
Content-Disposition: attachment; filename="photo.jpg"
Content-Transfer-Encoding: base64

/9j/4AAQ
--outer--
`)

func TestParseMessage(t *testing.T) {
	rec, err := ParseMessage("id-1", relatedMessage, true)
	require.NoError(t, err)

	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "Café menu", rec.Subject)
	assert.Contains(t, rec.From, "alice@example.com")
	assert.Equal(t, "bob@example.com", rec.To)
	assert.Equal(t, "carol@example.com", rec.CC)
	assert.Equal(t, "Mon, 1 Jan 2024 10:00:00 +0000", rec.Date)
	assert.True(t, rec.HasParsedDate())
	assert.Contains(t, rec.BodyHTML, `cid:logo@example.com`)
	assert.Contains(t, rec.BodyPlain, "Menu attached.")

	require.Len(t, rec.InlineImages, 2)
	logo := rec.InlineImages["logo@example.com"]
	assert.Equal(t, "logo@example.com.png", logo.Filename)
	assert.Equal(t, "image/png", logo.MIMEType)
	assert.NotEmpty(t, logo.Data)
	assert.Equal(t, "banner.gif", rec.InlineImages["banner"].Filename)

	names := make([]string, 0, len(rec.Attachments))
	for _, att := range rec.Attachments {
		names = append(names, att.Filename)
		assert.NotEmpty(t, att.Data)
		assert.Equal(t, int64(len(att.Data)), att.Size)
		assert.NotEmpty(t, att.BlobID)
	}
	assert.ElementsMatch(t, []string{"menu.pdf", "photo.jpg"}, names)
}

func TestParseMessageWithoutBinaries(t *testing.T) {
	rec, err := ParseMessage("id-1", relatedMessage, false)
	require.NoError(t, err)

	for _, att := range rec.Attachments {
		assert.Nil(t, att.Data)
		assert.Positive(t, att.Size)
	}
	for _, img := range rec.InlineImages {
		assert.Nil(t, img.Data)
	}
}

func TestParseMessagePlainOnly(t *testing.T) {
	raw := crlf("From: a@x.com\nTo: b@x.com\nSubject: Test\nDate: garbage\n\nHi there\n")
	rec, err := ParseMessage("p", raw, true)
	require.NoError(t, err)

	assert.Equal(t, "Test", rec.Subject)
	assert.Empty(t, rec.BodyHTML)
	assert.Contains(t, rec.BodyPlain, "Hi there")
	assert.False(t, rec.HasParsedDate())
	assert.Empty(t, rec.Attachments)
	assert.Empty(t, rec.InlineImages)
}

func TestParseHeaders(t *testing.T) {
	h, err := ParseHeaders("id-1", relatedMessage)
	require.NoError(t, err)

	assert.Equal(t, "id-1", h.ID)
	assert.Equal(t, "Café menu", h.Subject)
	assert.Contains(t, h.From, "alice@example.com")
	assert.Equal(t, "bob@example.com", h.To)
	assert.Equal(t, "Mon, 1 Jan 2024 10:00:00 +0000", h.Date)
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, "abc@x", NormalizeMessageID("  <abc@x> "))
	assert.Equal(t, "img1", NormalizeContentID("<img1>"))
	assert.Equal(t, "img1", NormalizeContentID("CID:img1"))
	assert.Equal(t, "", NormalizeContentID("  "))
}

func TestParseDate(t *testing.T) {
	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("yesterday").IsZero())
	assert.Equal(t, 2024, ParseDate("Tue, 2 Jan 2024 08:30:00 -0500").Year())
}
