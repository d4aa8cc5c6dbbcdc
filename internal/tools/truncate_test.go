package tools

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateToolOutput_NoTruncation(t *testing.T) {
	s := "short"
	if got := TruncateToolOutput(s, 0); got != s {
		t.Errorf("maxRunes 0: got %q", got)
	}
	if got := TruncateToolOutput(s, -1); got != s {
		t.Errorf("maxRunes -1: got %q", got)
	}
	if got := TruncateToolOutput(s, 100); got != s {
		t.Errorf("short string: got %q", got)
	}
}

func TestTruncateToolOutput_Truncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := TruncateToolOutput(long, 200)
	if utf8.RuneCountInString(got) > 200+100 {
		t.Errorf("truncated length too large: %d runes", utf8.RuneCountInString(got))
	}
	if !strings.Contains(got, "...[output truncated, total 500 runes]") {
		t.Errorf("missing truncation suffix: %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 200-suffixReserve)) {
		t.Errorf("prefix not preserved")
	}
}

func TestTruncateToolOutput_Unicode(t *testing.T) {
	s := strings.Repeat("搜", 100)
	got := TruncateToolOutput(s, 50)
	if !strings.Contains(got, "...[output truncated, total 100 runes]") {
		t.Errorf("unicode: missing suffix: %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("unicode: result is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n > 80 {
		t.Errorf("unicode: result too long: %d runes", n)
	}
}
