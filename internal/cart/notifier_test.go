package cart

import (
	"testing"
	"time"
)

func TestNotifierReplacesCurrent(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(3 * time.Second)
	notifier.Push(LevelInfo, "first")
	notifier.Push(LevelWarn, "second")

	notice, ok := notifier.Current()
	if !ok {
		t.Fatal("expected a live notice")
	}
	if notice.Message != "second" || notice.Level != LevelWarn {
		t.Errorf("expected the newest notice, got %+v", notice)
	}
}

func TestNotifierExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	notifier := NewNotifier(3 * time.Second)
	notifier.now = func() time.Time { return now }

	notifier.Push(LevelInfo, "added to cart")

	now = now.Add(2999 * time.Millisecond)
	if _, ok := notifier.Current(); !ok {
		t.Fatal("notice should still be live just before the ttl")
	}

	now = now.Add(time.Millisecond)
	if _, ok := notifier.Current(); ok {
		t.Fatal("notice should expire at the ttl boundary")
	}

	// Expiry is sticky: the slot stays empty afterwards.
	if _, ok := notifier.Current(); ok {
		t.Fatal("expired notice must not come back")
	}
}

func TestNotifierClear(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(0)
	notifier.Push(LevelInfo, "added")
	notifier.Clear()

	if _, ok := notifier.Current(); ok {
		t.Fatal("cleared notice should read as absent")
	}
}

func TestNotifierIgnoresEmptyMessage(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(time.Second)
	notifier.Push(LevelInfo, "")

	if _, ok := notifier.Current(); ok {
		t.Fatal("empty message should not produce a notice")
	}
}
