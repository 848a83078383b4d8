package scoring_test

import (
	"testing"

	"github.com/MrWong99/lectora/internal/scoring"
)

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"perro", "pero", 8.0 / 9},
		{"casa", "cosa", 0.75},
		{"nube", "nave", 0.5},
		{"sol", "sol", 1},
		{"", "", 1},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		if got := scoring.Ratio(tt.a, tt.b); !approx(got, tt.want) {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	if got := scoring.Levenshtein("casa", "cosa"); !approx(got, 0.75) {
		t.Errorf("Levenshtein(casa, cosa) = %v, want 0.75", got)
	}
	if got := scoring.Levenshtein("", ""); got != 1 {
		t.Errorf("Levenshtein(\"\", \"\") = %v, want 1", got)
	}
}

func TestJaroWinkler(t *testing.T) {
	t.Parallel()

	if got := scoring.JaroWinkler("gato", "gato"); got != 1 {
		t.Errorf("JaroWinkler(gato, gato) = %v, want 1", got)
	}
	if got := scoring.JaroWinkler("gato", "gatos"); got <= 0.9 {
		t.Errorf("JaroWinkler(gato, gatos) = %v, want > 0.9", got)
	}
}

func TestSimilarityByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", scoring.MetricRatio, scoring.MetricLevenshtein, scoring.MetricJaroWinkler} {
		fn, err := scoring.SimilarityByName(name)
		if err != nil {
			t.Errorf("SimilarityByName(%q): unexpected error: %v", name, err)
			continue
		}
		if got := fn("luna", "luna"); got != 1 {
			t.Errorf("SimilarityByName(%q)(luna, luna) = %v, want 1", name, got)
		}
	}
	if _, err := scoring.SimilarityByName("soundex"); err == nil {
		t.Error("SimilarityByName(soundex): expected error, got nil")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	res := scoring.Result{
		Accuracy: 76,
		Errors: []scoring.PronunciationError{
			{Kind: scoring.Substitution},
			{Kind: scoring.Omission},
			{Kind: scoring.Omission},
			{Kind: scoring.Insertion},
		},
	}
	o := scoring.Summarize(res)
	if o.Tier != scoring.TierVeryGood {
		t.Errorf("Tier = %q, want %q", o.Tier, scoring.TierVeryGood)
	}
	if o.Substitutions != 1 || o.Omissions != 2 || o.Insertions != 1 || o.Total() != 4 {
		t.Errorf("Summarize = %+v, want 1/2/1", o)
	}

	tiers := map[float64]scoring.Tier{
		100: scoring.TierExcellent,
		90:  scoring.TierExcellent,
		75:  scoring.TierVeryGood,
		60:  scoring.TierGood,
		59:  scoring.TierPracticing,
	}
	for acc, want := range tiers {
		if got := scoring.TierFor(acc); got != want {
			t.Errorf("TierFor(%v) = %q, want %q", acc, got, want)
		}
	}
}

func TestErrorKind_TextRoundTrip(t *testing.T) {
	t.Parallel()

	for _, k := range []scoring.ErrorKind{scoring.Substitution, scoring.Omission, scoring.Insertion} {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", k, err)
		}
		var got scoring.ErrorKind
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != k {
			t.Errorf("round trip of %v = %v", k, got)
		}
	}
	if _, err := scoring.ParseErrorKind("stutter"); err == nil {
		t.Error("ParseErrorKind(stutter): expected error, got nil")
	}
}
