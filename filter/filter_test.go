package filter

import (
	"testing"

	"github.com/saadiq/gmail-to-md/model"
)

func record(subject, from, body string) model.MessageRecord {
	return model.MessageRecord{Subject: subject, From: from, To: "me@example.com", BodyPlain: body}
}

func TestFilter_Allows_IncludeMode(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"Subject: Test"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(record("Test Message", "sender@example.com", "This is the message body")) {
		t.Error("Expected message to be allowed (header matches)")
	}
	if f.Allows(record("Other", "sender@example.com", "This is the message body")) {
		t.Error("Expected message to be filtered out (header doesn't match)")
	}
}

func TestFilter_Allows_ExcludeMode(t *testing.T) {
	f, err := New(Options{ExcludeHeader: []string{"spam"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(record("Normal Message", "sender@example.com", "body")) {
		t.Error("Expected message to be allowed (no spam)")
	}
	if f.Allows(record("This is spam", "spammer@example.com", "body")) {
		t.Error("Expected message to be filtered out (contains spam)")
	}

	hits := f.Hits()
	if hits["spam"] != 1 {
		t.Errorf("Hits()[spam] = %d, want 1", hits["spam"])
	}
}

func TestFilter_MutuallyExclusive(t *testing.T) {
	_, err := New(Options{IncludeHeader: []string{"test"}, ExcludeHeader: []string{"spam"}})
	if err == nil {
		t.Error("Expected error when both include and exclude are specified")
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	if _, err := New(Options{IncludeBody: []string{"("}}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestFilter_NoFilters(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"  "}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if f.Active() {
		t.Error("blank patterns should not activate the filter")
	}
	if !f.Allows(record("Any Message", "x@example.com", "Any body content")) {
		t.Error("Expected message to be allowed when no filters are active")
	}
}

func TestFilter_BodyFiltering(t *testing.T) {
	f, err := New(Options{IncludeBody: []string{"important"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(record("Message", "x@example.com", "This is an important message")) {
		t.Error("Expected message to be allowed (body matches)")
	}
	if f.Allows(record("Message", "x@example.com", "This is a regular message")) {
		t.Error("Expected message to be filtered out (body doesn't match)")
	}

	htmlOnly := model.MessageRecord{Subject: "Message", BodyHTML: "<p>important</p>"}
	if !f.Allows(htmlOnly) {
		t.Error("Expected HTML body to be used when plain body is empty")
	}
}

func TestHeaderText(t *testing.T) {
	rec := model.MessageRecord{Subject: "Hi", From: "a@x.com", Date: "Mon, 1 Jan 2024 10:00:00 +0000"}
	want := "Subject: Hi\nFrom: a@x.com\nDate: Mon, 1 Jan 2024 10:00:00 +0000\n"
	if got := HeaderText(rec); got != want {
		t.Errorf("HeaderText() = %q, want %q", got, want)
	}
}
