package match

import (
	"reflect"
	"testing"
)

func TestMentionedFullName(t *testing.T) {
	if !Mentioned("Joko Widodo", nil, "Presiden Joko Widodo menyatakan dukungannya terhadap program tersebut.") {
		t.Error("expected full name to match")
	}
}

func TestMentionedRejectsSubstringOfWord(t *testing.T) {
	if Mentioned("Joko", nil, "Widjoko adalah nama panggilan") {
		t.Error("expected no match for name embedded in a longer word")
	}
}

func TestMentionedCaseInsensitive(t *testing.T) {
	if !Mentioned("Prabowo", nil, "PRABOWO hadir dalam rapat") {
		t.Error("expected case-insensitive match")
	}
}

func TestAliasCheckedWhenNameMissing(t *testing.T) {
	aliases := SplitAliases("Jokowi; Pak Jokowi")
	r := Check("Joko Widodo", aliases, "Jokowi meresmikan bendungan baru.")
	if r.NameBoundary {
		t.Error("primary name should not match")
	}
	if !r.AliasBoundary || r.Alias != "Jokowi" {
		t.Errorf("expected alias 'Jokowi' to match, got %+v", r)
	}
	if !r.AliasStrict {
		t.Error("expected alias to pass strict check")
	}
	if !r.Found() || !r.Strict() {
		t.Error("expected Found and Strict")
	}
}

func TestAliasesSkippedWhenNameMatches(t *testing.T) {
	r := Check("Anies", []string{"Anies Baswedan"}, "Anies berbicara di depan wartawan")
	if !r.NameBoundary || r.AliasBoundary {
		t.Errorf("expected name match only, got %+v", r)
	}
}

func TestStrictFailsOnHyphenatedName(t *testing.T) {
	// \b accepts the hyphen as a boundary but the strict flank set does not.
	r := Check("Ganjar", nil, "Tim pro-Ganjar-Mahfud berkumpul")
	if !r.NameBoundary {
		t.Fatal("expected boundary match")
	}
	if r.NameStrict {
		t.Error("expected strict check to fail next to hyphens")
	}
}

func TestEmptyNameNeverMatches(t *testing.T) {
	if Mentioned("", nil, "apa saja") {
		t.Error("expected empty name to never match")
	}
	if Mentioned("   ", []string{""}, "apa saja") {
		t.Error("expected blank name to never match")
	}
}

func TestNameWithRegexMetacharacters(t *testing.T) {
	if !Mentioned("H. Muhammad", nil, "Rapat dipimpin H. Muhammad pagi ini") {
		t.Error("expected quoted metacharacters to match literally")
	}
	if Mentioned("H. Muhammad", nil, "Rapat dipimpin HX Muhammad pagi ini") {
		t.Error("expected '.' to be matched literally")
	}
}

func TestSplitAliases(t *testing.T) {
	got := SplitAliases(" Jokowi , Pak Jokowi;;\nJW \n")
	want := []string{"Jokowi", "Pak Jokowi", "JW"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitAliases = %v, want %v", got, want)
	}
	if SplitAliases("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestSentences(t *testing.T) {
	text := "Gubernur Ridwan Kamil membuka acara. Cuaca cerah. Kang Emil juga menyapa warga"
	got := Sentences(text, "Ridwan Kamil", []string{"Kang Emil"})
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %v", got)
	}
	if got[0] != "Gubernur Ridwan Kamil membuka acara" {
		t.Errorf("unexpected first sentence %q", got[0])
	}
}
