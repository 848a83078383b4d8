package scoring_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/lectora/internal/scoring"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore_ExactMatch(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el perro corre", "el perro corre", 3*time.Second)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if res.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100", res.Accuracy)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", res.Errors)
	}
	if !approx(res.WordsPerMinute, 60) {
		t.Errorf("WordsPerMinute = %v, want 60", res.WordsPerMinute)
	}
}

func TestScore_ExactMatchAfterNormalization(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("Él comió   una\ncanción.", "el comio una cancion", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if res.Accuracy != 100 || res.RawAccuracy != 100 {
		t.Errorf("Accuracy = %v (raw %v), want 100 (raw 100)", res.Accuracy, res.RawAccuracy)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", res.Errors)
	}
	if res.ReferenceWords != 4 {
		t.Errorf("ReferenceWords = %d, want 4 (punctuation excluded)", res.ReferenceWords)
	}
}

func TestScore_SingleOmissionForcesFullMarks(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el gato negro duerme", "el gato duerme", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	want := []scoring.PronunciationError{{
		Kind:     scoring.Omission,
		Expected: "negro",
		Position: 2,
		Severity: scoring.DefaultSeverity,
	}}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %+v, want %+v", res.Errors, want)
	}
	if res.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100", res.Accuracy)
	}
	if !approx(res.RawAccuracy, 75) {
		t.Errorf("RawAccuracy = %v, want 75", res.RawAccuracy)
	}
}

func TestScore_DistantSubstitutionsHitFloor(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score(
		"uno dos tres cuatro cinco seis siete",
		"uno dos tres bbb fff jjj lll",
		0,
	)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 4 {
		t.Fatalf("len(Errors) = %d, want 4: %+v", len(res.Errors), res.Errors)
	}
	for i, e := range res.Errors {
		if e.Kind != scoring.Substitution {
			t.Errorf("Errors[%d].Kind = %v, want substitution", i, e.Kind)
		}
		if e.Position != 3+i {
			t.Errorf("Errors[%d].Position = %d, want %d", i, e.Position, 3+i)
		}
	}
	if !approx(res.RawAccuracy, 300.0/7) {
		t.Errorf("RawAccuracy = %v, want %v", res.RawAccuracy, 300.0/7)
	}
	if res.Accuracy != 50 {
		t.Errorf("Accuracy = %v, want 50", res.Accuracy)
	}
}

func TestScore_EmptyHypothesis(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el perro, corre.", "", 10*time.Second)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("len(Errors) = %d, want 3: %+v", len(res.Errors), res.Errors)
	}
	for i, e := range res.Errors {
		if e.Kind != scoring.Omission {
			t.Errorf("Errors[%d].Kind = %v, want omission", i, e.Kind)
		}
		if e.Expected == "," || e.Expected == "." {
			t.Errorf("Errors[%d] reports punctuation %q", i, e.Expected)
		}
	}
	if res.Accuracy != 50 {
		t.Errorf("Accuracy = %v, want 50", res.Accuracy)
	}
	if res.WordsPerMinute != 0 {
		t.Errorf("WordsPerMinute = %v, want 0", res.WordsPerMinute)
	}
}

func TestScore_InvalidReference(t *testing.T) {
	t.Parallel()

	for _, ref := range []string{"", "   \n", "¡!", "..."} {
		_, err := scoring.Score(ref, "hola", time.Second)
		if !errors.Is(err, scoring.ErrInvalidInput) {
			t.Errorf("Score(%q): err = %v, want ErrInvalidInput", ref, err)
		}
	}
}

func TestScore_StutterIsNotAnInsertion(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el perro corre", "el el perro perro perro corre", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", res.Errors)
	}
	if res.HypothesisWords != 3 {
		t.Errorf("HypothesisWords = %d, want 3", res.HypothesisWords)
	}
}

func TestScore_NearMissIsForgiven(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el perro corre", "el pero corre", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", res.Errors)
	}
	if res.RawAccuracy != 100 {
		t.Errorf("RawAccuracy = %v, want 100", res.RawAccuracy)
	}
}

func TestScore_PartialCreditStillReported(t *testing.T) {
	t.Parallel()

	// "nube" vs "nave" share two of eight characters: similarity 0.5.
	res, err := scoring.Score("la nube es blanca", "la nave es blanca", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1: %+v", len(res.Errors), res.Errors)
	}
	e := res.Errors[0]
	if e.Kind != scoring.Substitution || e.Expected != "nube" || e.Observed != "nave" {
		t.Errorf("Errors[0] = %+v, want substitution nube->nave", e)
	}
	if !approx(e.Similarity, 0.5) {
		t.Errorf("Similarity = %v, want 0.5", e.Similarity)
	}
	if !approx(e.WordAccuracy(), 50) {
		t.Errorf("WordAccuracy() = %v, want 50", e.WordAccuracy())
	}
	if !approx(res.RawAccuracy, 92.5) {
		t.Errorf("RawAccuracy = %v, want 92.5", res.RawAccuracy)
	}
}

func TestScore_Insertions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hyp      string
		observed string
		position int
	}{
		{name: "inside", hyp: "el perro grande corre", observed: "grande", position: 2},
		{name: "trailing", hyp: "el perro corre mucho", observed: "mucho", position: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := scoring.Score("el perro corre", tt.hyp, 0)
			if err != nil {
				t.Fatalf("Score: unexpected error: %v", err)
			}
			if len(res.Errors) != 1 {
				t.Fatalf("len(Errors) = %d, want 1: %+v", len(res.Errors), res.Errors)
			}
			e := res.Errors[0]
			if e.Kind != scoring.Insertion || e.Observed != tt.observed || e.Expected != "" {
				t.Errorf("Errors[0] = %+v, want insertion of %q", e, tt.observed)
			}
			if e.Position != tt.position {
				t.Errorf("Position = %d, want %d", e.Position, tt.position)
			}
		})
	}
}

func TestScore_UnevenReplacement(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el perro corre", "el xyz qwk corre", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	want := []scoring.PronunciationError{
		{Kind: scoring.Substitution, Expected: "perro", Observed: "xyz", Position: 1, Severity: 1},
		{Kind: scoring.Insertion, Observed: "qwk", Position: 2, Severity: 1},
	}
	if !reflect.DeepEqual(res.Errors, want) {
		t.Errorf("Errors = %+v, want %+v", res.Errors, want)
	}
}

func TestScore_KeepsAccentsInReportedWords(t *testing.T) {
	t.Parallel()

	res, err := scoring.Score("el camión rojo", "el rojo", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].Expected != "camión" {
		t.Errorf("Errors = %+v, want one omission of %q", res.Errors, "camión")
	}
}

func TestScore_Properties(t *testing.T) {
	t.Parallel()

	ref := "¿Dónde vive el pequeño ratón? El ratón vive en una casa, junto al río."
	hyps := []string{
		"",
		"donde vive el pequeño raton el raton vive en una casa junto al rio",
		"dónde vive el ratón el ratón vive en la casa",
		"el gato come pescado en la cocina todos los dias",
		"donde donde vive vive el el pequeño",
		"xx yy zz",
	}
	for _, hyp := range hyps {
		first, err := scoring.Score(ref, hyp, 20*time.Second)
		if err != nil {
			t.Fatalf("Score(%q): unexpected error: %v", hyp, err)
		}
		if first.Accuracy < 50 || first.Accuracy > 100 {
			t.Errorf("Score(%q): Accuracy = %v, want within [50, 100]", hyp, first.Accuracy)
		}
		for _, e := range first.Errors {
			for _, w := range []string{e.Expected, e.Observed} {
				if w == "¿" || w == "?" || w == "," || w == "." {
					t.Errorf("Score(%q): error %+v reports punctuation", hyp, e)
				}
			}
			if e.Position < 0 || e.Position >= len(scoring.Tokenize(ref)) {
				t.Errorf("Score(%q): error %+v has position outside the reference", hyp, e)
			}
		}
		second, err := scoring.Score(ref, hyp, 20*time.Second)
		if err != nil {
			t.Fatalf("Score(%q) second call: unexpected error: %v", hyp, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Score(%q) is not repeatable: %+v vs %+v", hyp, first, second)
		}
	}
}

func TestScorer_WithSimilarity(t *testing.T) {
	t.Parallel()

	strict := scoring.New(scoring.WithSimilarity(func(a, b string) float64 {
		if a == b {
			return 1
		}
		return 0
	}))
	res, err := strict.Score("el perro corre", "el pero corre", 0)
	if err != nil {
		t.Fatalf("Score: unexpected error: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != scoring.Substitution {
		t.Errorf("Errors = %+v, want one substitution", res.Errors)
	}
}

func TestCurve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		accuracy float64
		errors   int
		want     float64
	}{
		{accuracy: 40, errors: 0, want: 100},
		{accuracy: 10, errors: 1, want: 100},
		{accuracy: 80, errors: 2, want: 95},
		{accuracy: 74, errors: 3, want: 90},
		{accuracy: 72, errors: 5, want: 90},
		{accuracy: 69, errors: 4, want: 89},
		{accuracy: 80, errors: 6, want: 95},
		{accuracy: 90, errors: 6, want: 100},
		{accuracy: 65, errors: 6, want: 85},
		{accuracy: 55, errors: 6, want: 70},
		{accuracy: 45, errors: 6, want: 50},
		{accuracy: 0, errors: 10, want: 50},
	}
	for _, tt := range tests {
		if got := scoring.Curve(tt.accuracy, tt.errors); !approx(got, tt.want) {
			t.Errorf("Curve(%v, %d) = %v, want %v", tt.accuracy, tt.errors, got, tt.want)
		}
	}
}
