package match

import "testing"

func TestMatchParagraphStandaloneWord(t *testing.T) {
	if !MatchParagraph("Jokowi", "Kemarin Jokowi, didampingi menteri, meninjau lokasi.") {
		t.Error("expected standalone word match")
	}
	if MatchParagraph("Joko", "Widjoko hadir di lokasi") {
		t.Error("expected no match for embedded word")
	}
}

func TestMatchParagraphPhrase(t *testing.T) {
	if !MatchParagraph("Sri Mulyani", "Menteri Keuangan Sri Mulyani memaparkan APBN") {
		t.Error("expected verbatim phrase match")
	}
}

func TestMatchParagraphFuzzyWindow(t *testing.T) {
	// OCR-style typo: one substituted letter in a 15-rune name.
	if !MatchParagraph("Basuki Tjahaja", "Dokumen menyebut Basuki Tjahaya sebagai saksi") {
		t.Error("expected fuzzy window match")
	}
	if MatchParagraph("Basuki Tjahaja", "Dokumen menyebut Budi Santoso sebagai saksi") {
		t.Error("expected unrelated name to be rejected")
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("abc", "abc"); s != 100 {
		t.Errorf("expected 100, got %v", s)
	}
	if s := Similarity("", ""); s != 0 {
		t.Errorf("expected 0 for empty strings, got %v", s)
	}
}
