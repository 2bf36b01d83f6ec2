package stats

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	fn func(context.Context, <-chan Event) error
}

func (f *fakeStream) SubscribeStats(_ string, fn func(context.Context, <-chan Event) error) {
	f.fn = fn
}

func TestCollectorCountsEvents(t *testing.T) {
	events := make(chan Event, 16)
	boom := errors.New("fetch failed")

	events <- Event{Stage: StageSource, Type: EventTypeListed, MessageID: "1"}
	events <- Event{Stage: StageSource, Type: EventTypeListed, MessageID: "2"}
	events <- Event{Stage: StageSource, Type: EventTypeListed, MessageID: "3"}
	events <- Event{Stage: StageExport, Type: EventTypeExported, MessageID: "1", Detail: "out/a.md"}
	events <- Event{Stage: StageExport, Type: EventTypeBinaryWritten, MessageID: "1"}
	events <- Event{Stage: StageExport, Type: EventTypeAttachmentSkipped, MessageID: "1"}
	events <- Event{Stage: StageExport, Type: EventTypeAlreadyExported, MessageID: "2"}
	events <- Event{Stage: StageExport, Type: EventTypeError, MessageID: "3", Err: boom}
	close(events)

	c := NewCollector()
	c.Run(context.Background(), events)
	s := c.Snapshot()

	assert.Equal(t, 3, s.Listed)
	assert.Equal(t, 1, s.Exported)
	assert.Equal(t, 1, s.BinariesWritten)
	assert.Equal(t, 1, s.AttachmentsSkipped)
	assert.Equal(t, 1, s.AlreadyExported)
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, boom, s.LastError)
	assert.Equal(t, []string{"out/a.md"}, s.Documents)
	assert.Contains(t, s.LogAttrs(), "lastError")
}

func TestReporterSummary(t *testing.T) {
	stream := &fakeStream{}
	r := NewReporter(stream, nil)
	require.NotNil(t, stream.fn)

	events := make(chan Event, 2)
	events <- Event{Type: EventTypeFiltered}
	close(events)

	require.NoError(t, stream.fn(context.Background(), events))
	<-r.Done()
	assert.Equal(t, 1, r.Summary().Filtered)
}

func TestPrintTop(t *testing.T) {
	var buf bytes.Buffer
	PrintTop(&buf, map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	assert.Equal(t, "1. c (5)\n2. a (2)\n3. b (2)\n", buf.String())
}

func TestCollectorRecordsDryRunDocuments(t *testing.T) {
	events := make(chan Event, 2)
	events <- Event{Stage: StageExport, Type: EventTypeDryRunExport, MessageID: "1", Detail: "a.md"}
	close(events)

	c := NewCollector()
	c.Run(context.Background(), events)
	s := c.Snapshot()

	assert.Equal(t, 1, s.DryRunExported)
	assert.Zero(t, s.Exported)
	assert.Equal(t, []string{"a.md"}, s.Documents)
}
