package scoring

// Tier buckets an accuracy into a level a learner-facing layer can phrase.
type Tier string

const (
	TierExcellent  Tier = "excellent"
	TierVeryGood   Tier = "very_good"
	TierGood       Tier = "good"
	TierPracticing Tier = "practicing"
)

// TierFor returns the tier of an accuracy percentage.
func TierFor(accuracy float64) Tier {
	switch {
	case accuracy >= 90:
		return TierExcellent
	case accuracy >= 75:
		return TierVeryGood
	case accuracy >= 60:
		return TierGood
	default:
		return TierPracticing
	}
}

// Outcome is the structured summary of a [Result]. Message selection is left
// to whoever presents it.
type Outcome struct {
	Tier          Tier `json:"tier"`
	Substitutions int  `json:"substitutions"`
	Omissions     int  `json:"omissions"`
	Insertions    int  `json:"insertions"`
}

// Total returns the number of errors summarized by o.
func (o Outcome) Total() int {
	return o.Substitutions + o.Omissions + o.Insertions
}

// Summarize builds the outcome of r.
func Summarize(r Result) Outcome {
	o := Outcome{Tier: TierFor(r.Accuracy)}
	for _, e := range r.Errors {
		switch e.Kind {
		case Substitution:
			o.Substitutions++
		case Omission:
			o.Omissions++
		case Insertion:
			o.Insertions++
		}
	}
	return o
}
