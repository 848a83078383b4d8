package scoring

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// OpKind identifies what an [Operation] does to its reference range.
type OpKind int

const (
	// OpEqual marks ranges where reference and hypothesis agree.
	OpEqual OpKind = iota
	// OpReplace marks ranges where the hypothesis read something else.
	OpReplace
	// OpDelete marks reference tokens missing from the hypothesis.
	OpDelete
	// OpInsert marks hypothesis tokens with no reference counterpart.
	OpInsert
)

// String returns the diff tag name of k.
func (k OpKind) String() string {
	switch k {
	case OpEqual:
		return "equal"
	case OpReplace:
		return "replace"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is one segment of an alignment. Ranges are half-open:
// reference tokens [RefStart, RefEnd) map to hypothesis tokens
// [HypStart, HypEnd).
type Operation struct {
	Kind     OpKind
	RefStart int
	RefEnd   int
	HypStart int
	HypEnd   int
}

// Align diffs two token streams by their normalized forms and returns the
// ordered operations covering both sequences completely.
func Align(ref, hyp []Token) []Operation {
	m := difflib.NewMatcher(normalizedForms(ref), normalizedForms(hyp))
	codes := m.GetOpCodes()

	ops := make([]Operation, 0, len(codes))
	for _, c := range codes {
		op := Operation{RefStart: c.I1, RefEnd: c.I2, HypStart: c.J1, HypEnd: c.J2}
		switch c.Tag {
		case 'e':
			op.Kind = OpEqual
		case 'r':
			op.Kind = OpReplace
		case 'd':
			op.Kind = OpDelete
		case 'i':
			op.Kind = OpInsert
		default:
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

func normalizedForms(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Normalized
	}
	return out
}
