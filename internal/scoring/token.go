package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuationMarks lists every rune the tokenizer emits as a standalone
// punctuation token. All other non-letter, non-digit runes separate tokens.
const punctuationMarks = "¿?¡!.,;:"

// Token is one unit of tokenized text: a word or a single punctuation mark.
//
// Surface keeps diacritics and is used when reporting words back to the
// reader. Normalized has diacritics removed and is the form every comparison
// runs on. Both are lowercase.
type Token struct {
	Surface    string
	Normalized string

	// Index is the token's position within the sequence it was cut from.
	Index int

	// Punct is true when the token is one of the punctuation marks.
	Punct bool
}

// Tokenize cleans text and splits it into word and punctuation tokens.
//
// The display and comparison forms come out of a single pass over the
// NFC-composed text, so both channels always have the same length and
// indices. Combining marks that survive composition stay attached to the
// word they follow.
func Tokenize(text string) []Token {
	clean := norm.NFC.String(cleanText(text))

	var (
		tokens []Token
		word   strings.Builder
	)
	flush := func() {
		if word.Len() == 0 {
			return
		}
		surface := word.String()
		tokens = append(tokens, Token{
			Surface:    surface,
			Normalized: stripDiacritics(surface),
			Index:      len(tokens),
		})
		word.Reset()
	}

	for _, r := range clean {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		case unicode.Is(unicode.Mn, r) && word.Len() > 0:
			word.WriteRune(r)
		case strings.ContainsRune(punctuationMarks, r):
			flush()
			tokens = append(tokens, Token{
				Surface:    string(r),
				Normalized: string(r),
				Index:      len(tokens),
				Punct:      true,
			})
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// Normalize returns the comparison form of text: newlines replaced,
// lowercased, diacritics stripped and whitespace collapsed.
func Normalize(text string) string {
	return stripDiacritics(cleanText(text))
}

// cleanText lowercases text and collapses every whitespace run (newlines
// included) to a single space.
func cleanText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// stripDiacritics decomposes s and drops nonspacing marks, turning "canción"
// into "cancion" and "pingüino" into "pinguino".
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// words returns the non-punctuation tokens of toks.
func words(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if !t.Punct {
			out = append(out, t)
		}
	}
	return out
}

// collapseRepeats drops tokens whose normalized form equals the token right
// before them. Speech-to-text engines echo stuttered words ("el el perro"),
// and those echoes must not count as insertions. Indices are renumbered.
func collapseRepeats(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if n := len(out); n > 0 && out[n-1].Normalized == t.Normalized {
			continue
		}
		t.Index = len(out)
		out = append(out, t)
	}
	return out
}
