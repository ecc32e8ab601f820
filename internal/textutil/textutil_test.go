package textutil

import "testing"

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Solo Leveling":          "solo-leveling",
		"  --solo__leveling--  ": "solo-leveling",
		"One Piece: Vol. 2":      "one-piece-vol-2",
		"سولو ليفلينج":           "سولو-ليفلينج",
		"":                       "",
	}

	for input, want := range tests {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestUniqueNonEmptyKeepsFirstSpelling(t *testing.T) {
	got := UniqueNonEmpty([]string{"Action", " action ", "", "Sci-Fi", "sci fi", "Drama"})
	want := []string{"Action", "Sci-Fi", "Drama"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("Na Honjaman Level Up / 나 혼자만 레벨업; Only I Level Up, ")
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d (%v)", len(got), got)
	}
	if got[1] != "나 혼자만 레벨업" {
		t.Fatalf("unexpected second item %q", got[1])
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := Truncate("مستمر جدا", 5); got != "مستمر" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("expected untouched value, got %q", got)
	}
}
