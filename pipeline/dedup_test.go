package pipeline

import (
	"strings"
	"testing"
	"time"
)

func TestMessageIdentity(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := MessageIdentity("chan", "u1", "what is elden ring", at)

	if MessageIdentity("other", "u1", "what is elden ring", at) == base {
		t.Error("channel should change identity")
	}
	if MessageIdentity("chan", "u2", "what is elden ring", at) == base {
		t.Error("user should change identity")
	}
	if MessageIdentity("chan", "u1", "what is hollow knight", at) == base {
		t.Error("text should change identity")
	}
	if MessageIdentity("chan", "u1", "what is elden ring", at.Add(2*time.Second)) == base {
		t.Error("receive second should change identity")
	}

	// Text beyond the first 100 runes does not participate.
	long := strings.Repeat("x", 100)
	if MessageIdentity("chan", "u1", long+"aaa", at) != MessageIdentity("chan", "u1", long+"bbb", at) {
		t.Error("identities should collapse past the truncation point")
	}

	// Sub-second skew between duplicate deliveries rounds away.
	if MessageIdentity("chan", "u1", "hi", at) != MessageIdentity("chan", "u1", "hi", at.Add(300*time.Millisecond)) {
		t.Error("sub-second skew should not change identity")
	}
}

func TestDedupFilter(t *testing.T) {
	now := time.Now()
	d := NewDedupFilter()
	d.now = func() time.Time { return now }

	id := MessageIdentity("chan", "u1", "hello", now)
	if !d.ShouldProcess(id) {
		t.Fatal("unseen identity should process")
	}
	d.MarkProcessed(id)
	if d.ShouldProcess(id) {
		t.Error("seen identity inside the window should not process")
	}

	now = now.Add(DedupWindow)
	if !d.ShouldProcess(id) {
		t.Error("identity past the window should process again")
	}

	d.Sweep()
	if d.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", d.Len())
	}
}
