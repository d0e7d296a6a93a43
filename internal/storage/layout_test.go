package storage

import (
	"testing"
	"time"
)

func TestLayout_Paths(t *testing.T) {
	var l Layout
	if got := l.PageMeta("nb1", "pg1"); got != "notebooks/nb1/pages/pg1/meta.json" {
		t.Errorf("PageMeta = %q", got)
	}
	if got := l.Strokes("nb1", "pg1"); got != "notebooks/nb1/pages/pg1/strokes.json" {
		t.Errorf("Strokes = %q", got)
	}
	if got := l.TranscriptionText("nb1", "pg1"); got != "notebooks/nb1/pages/pg1/transcription.md" {
		t.Errorf("TranscriptionText = %q", got)
	}
	if got := l.PendingDir(); got != "queue/pending" {
		t.Errorf("PendingDir = %q", got)
	}
}

func TestLayout_JobFileNameOrdering(t *testing.T) {
	var l Layout
	t0 := time.UnixMilli(1700000000000)
	earlier := l.JobFileName(t0, "pg2")
	later := l.JobFileName(t0.Add(time.Second), "pg1")
	if !(earlier < later) {
		t.Errorf("lexicographic order must follow creation time: %q vs %q", earlier, later)
	}
}

func TestLayout_JobPageID(t *testing.T) {
	var l Layout
	name := l.JobFileName(time.Now(), "pg_abc")
	if got := l.JobPageID(name); got != "pg_abc" {
		t.Errorf("JobPageID = %q, want pg_abc", got)
	}
	if got := l.JobPageID("garbage.txt"); got != "" {
		t.Errorf("JobPageID(garbage) = %q, want empty", got)
	}
}
