package state

import (
	"fmt"
	"testing"
)

func BenchmarkFileTracker_MarkExported(b *testing.B) {
	tracker, err := NewFileTracker(b.TempDir(), true)
	if err != nil {
		b.Fatal(err)
	}
	defer tracker.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tracker.MarkExported(fmt.Sprintf("mbox:msg-%d", i), fmt.Sprintf("exports/%d.md", i)); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	if err := tracker.Close(); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkFileTracker_AlreadyExported(b *testing.B) {
	tracker, err := NewFileTracker(b.TempDir(), true)
	if err != nil {
		b.Fatal(err)
	}
	defer tracker.Close()

	for i := 0; i < 1000; i++ {
		if err := tracker.MarkExported(fmt.Sprintf("mbox:msg-%d", i), "exports/x.md"); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.AlreadyExported(fmt.Sprintf("mbox:msg-%d", i%2000))
	}
}
