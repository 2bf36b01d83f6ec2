package exporter

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadiq/gmail-to-md/document"
	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/sink"
)

var runDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestExporter(mem *sink.Memory, download bool) *Exporter {
	return New(mem, Options{
		OutputDir:      "exports",
		Label:          "Work/Reports",
		RunDate:        runDate,
		RemoveQuotes:   true,
		DownloadImages: download,
		SizeLimitBytes: 10,
	}, nil)
}

func sampleRecord() model.MessageRecord {
	return model.MessageRecord{
		ID:         "msg-1",
		Subject:    "Quarterly report",
		From:       "Alice <alice@example.com>",
		To:         "bob@example.com",
		Date:       "Mon, 15 Jan 2024 10:30:00 +0000",
		ParsedDate: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		BodyHTML:   `<p>See the chart</p><img src="cid:logo">`,
		Attachments: []model.AttachmentRef{
			{Filename: "notes.txt", MIMEType: "text/plain", Size: 5, Data: []byte("notes")},
			{Filename: "huge.zip", MIMEType: "application/zip", Size: 50, Data: []byte("zip")},
		},
		InlineImages: map[string]model.InlineImageRef{
			"logo": {ContentID: "logo", MIMEType: "image/png", Filename: "logo.png", Data: []byte("png-data-beyond-limit")},
		},
	}
}

func TestFolderLayout(t *testing.T) {
	exp := newTestExporter(sink.NewMemory(), false)
	assert.Equal(t, filepath.Join("exports", "2024-03-01_export", "Work_Reports"), exp.Folder())
}

func TestFolderDefaultLabel(t *testing.T) {
	exp := New(sink.NewMemory(), Options{OutputDir: "out", RunDate: runDate}, nil)
	assert.Equal(t, filepath.Join("out", "2024-03-01_export", DefaultLabel), exp.Folder())
}

func TestExportWithoutBinaries(t *testing.T) {
	mem := sink.NewMemory()
	exp := newTestExporter(mem, false)
	rec := sampleRecord()

	res, err := exp.Export(rec)
	require.NoError(t, err)

	want := filepath.Join(exp.Folder(), "2024-01-15_10-30-00_Quarterly_report.md")
	assert.Equal(t, want, res.DocumentPath)
	assert.Equal(t, []string{want}, mem.Paths())

	data, ok := mem.Read(want)
	require.True(t, ok)
	expected := document.Assemble(rec, document.Options{RemoveQuotes: true})
	assert.Equal(t, expected.String(), string(data))
	assert.NotContains(t, string(data), "local_path")
}

func TestExportPlacesBinariesAndRewritesDocument(t *testing.T) {
	mem := sink.NewMemory()
	exp := newTestExporter(mem, true)
	rec := sampleRecord()

	res, err := exp.Export(rec)
	require.NoError(t, err)

	stem := "2024-01-15_10-30-00_Quarterly_report"
	folder := exp.Folder()
	assert.True(t, mem.Exists(filepath.Join(folder, "attachments", stem, "notes.txt")))
	assert.True(t, mem.Exists(filepath.Join(folder, "images", stem, "logo.png")), "inline images ignore the size limit")
	assert.Equal(t, []string{"huge.zip"}, res.Placement.Skipped)

	data, ok := mem.Read(res.DocumentPath)
	require.True(t, ok)
	doc := string(data)
	assert.Contains(t, doc, `local_path: "attachments/`+stem+`/notes.txt"`)
	assert.Contains(t, doc, "images/"+stem+"/logo.png")
	assert.NotContains(t, doc, "cid:logo")
	assert.Equal(t, 1, strings.Count(doc, "local_path"))

	assert.Empty(t, rec.Attachments[0].LocalPath, "caller record must not change")
}

func TestExportCollisionGetsSuffixedNames(t *testing.T) {
	mem := sink.NewMemory()
	exp := newTestExporter(mem, true)

	first, err := exp.Export(sampleRecord())
	require.NoError(t, err)
	second, err := exp.Export(sampleRecord())
	require.NoError(t, err)

	assert.NotEqual(t, first.DocumentPath, second.DocumentPath)
	assert.Equal(t, "2024-01-15_10-30-00_Quarterly_report_1.md", filepath.Base(second.DocumentPath))
	assert.True(t, mem.Exists(filepath.Join(exp.Folder(), "attachments", "2024-01-15_10-30-00_Quarterly_report_1", "notes.txt")))
}

func TestExportFallbacksForSubjectAndDate(t *testing.T) {
	mem := sink.NewMemory()
	exp := newTestExporter(mem, false)
	exp.now = func() time.Time { return time.Date(2024, 2, 2, 8, 7, 6, 0, time.UTC) }

	res, err := exp.Export(model.MessageRecord{ID: "x", BodyPlain: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-02_08-07-06_no_subject.md", filepath.Base(res.DocumentPath))
}

func TestExportWriteFailure(t *testing.T) {
	mem := sink.NewMemory()
	mem.FailOn = func(string) bool { return true }
	exp := newTestExporter(mem, false)

	_, err := exp.Export(sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "msg-1")
}

func TestRelative(t *testing.T) {
	exp := newTestExporter(sink.NewMemory(), false)
	assert.Equal(t, "a/b.md", exp.Relative(filepath.Join(exp.Folder(), "a", "b.md")))
}
