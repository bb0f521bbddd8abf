package textutil

import "testing"

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	got := NormalizeWhitespace("  hello \n\t world \r\n again  ")
	if got != "hello world again" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	got := CleanHTML(`  <b>bold</b> and <a href="x">link</a> `)
	if got != "bold and link" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestTruncateAtWord(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short text", 100, "short text"},
		{"one two three four", 12, "one two"},
		{"nospacesatall", 5, "nospa"},
	}
	for _, tc := range cases {
		if got := TruncateAtWord(tc.in, tc.maxLen); got != tc.want {
			t.Fatalf("TruncateAtWord(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	got := SanitizeFilename(`What is "Go"? A <great> story/part 1`)
	if got != "What_is_Go_A_great_storypart_1" {
		t.Fatalf("unexpected filename: %q", got)
	}

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long)); len(got) != 100 {
		t.Fatalf("expected 100-char cap, got %d", len(got))
	}
}
