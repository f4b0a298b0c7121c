package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessage_ShortUnchanged(t *testing.T) {
	t.Parallel()
	chunks := splitMessage("hello world")
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitMessage_PrefersLineBoundaries(t *testing.T) {
	t.Parallel()

	lineA := strings.Repeat("a", 3000)
	lineB := strings.Repeat("b", 3000)
	chunks := splitMessage(lineA + "\n" + lineB)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0] != lineA {
		t.Error("first chunk should end at the line boundary")
	}
	if chunks[1] != lineB {
		t.Error("second chunk should start at the line boundary")
	}
}

func TestSplitMessage_ForceSplitsOversizedLine(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", maxMessageRunes*2+100)
	chunks := splitMessage(text)

	if len(chunks) < 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	var total int
	for i, chunk := range chunks {
		n := len([]rune(chunk))
		if n > maxMessageRunes {
			t.Errorf("chunk %d has %d runes, over the limit", i, n)
		}
		total += n
	}
	if total != len(text) {
		t.Errorf("rune count changed: %d != %d", total, len(text))
	}
}

func TestSplitMessage_MultibyteRunes(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("日", maxMessageRunes+10)
	chunks := splitMessage(text)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasPrefix(chunk, "日") && chunk != "" {
			t.Errorf("chunk %d corrupted: %q...", i, chunk[:3])
		}
		if n := len([]rune(chunk)); n > maxMessageRunes {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
}
