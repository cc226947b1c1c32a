package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ACME", "acme"},
		{"BRK.B", "brk_b"},
		{"  ", "unknown"},
		{"--", "unknown"},
		{"2024-Q1", "2024-q1"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEpisodeSlug(t *testing.T) {
	if got := EpisodeSlug("BRK.B", "2024-Q1"); got != "brk_b-2024-q1" {
		t.Fatalf("EpisodeSlug = %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	text := "Revenue grew twelve percent on strong demand across every region."
	if got := Excerpt(text, 200); got != text {
		t.Fatalf("short text changed: %q", got)
	}
	got := Excerpt(text, 30)
	if got != "Revenue grew twelve percent..." {
		t.Fatalf("unexpected excerpt %q", got)
	}
}
