package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityFunc scores how alike two normalized words are, from 0 (nothing
// in common) to 1 (identical).
type SimilarityFunc func(a, b string) float64

// Similarity metric names accepted by [SimilarityByName].
const (
	MetricRatio       = "ratio"
	MetricLevenshtein = "levenshtein"
	MetricJaroWinkler = "jaro-winkler"
)

// Ratio is the default word similarity: twice the number of characters in
// matching blocks divided by the total character count of both words.
// "perro" vs "pero" scores 0.89, "casa" vs "cosa" scores 0.75.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// Levenshtein converts edit distance into a similarity by dividing it by the
// longer word's rune count.
func Levenshtein(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
}

// JaroWinkler is the Jaro-Winkler similarity, which rewards shared prefixes.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	return matchr.JaroWinkler(a, b, false)
}

// SimilarityByName resolves a metric name from configuration. The empty
// string selects [Ratio].
func SimilarityByName(name string) (SimilarityFunc, error) {
	switch name {
	case "", MetricRatio:
		return Ratio, nil
	case MetricLevenshtein:
		return Levenshtein, nil
	case MetricJaroWinkler:
		return JaroWinkler, nil
	default:
		return nil, fmt.Errorf("scoring: unknown similarity metric %q", name)
	}
}
