package scoring

// Thresholds for near-miss words. They were tuned by hand against recordings
// of children aged 7 to 10 and are product policy: keep them literal.
const (
	fullCreditSimilarity    = 0.65
	partialCreditSimilarity = 0.50
	partialCredit           = 0.7
)

// Floor and ceiling of every published accuracy.
const (
	MinAccuracy = 50.0
	MaxAccuracy = 100.0
)

// Curve lifts a raw accuracy percentage given the number of real
// (non-punctuation) errors behind it. The steps are evaluated in order and
// the first match wins:
//
//	errors <= 1                    -> 100
//	errors <= 3 and accuracy >= 75 -> 95
//	errors <= 5 and accuracy >= 70 -> 90
//	accuracy >= 75                 -> accuracy + 15
//	accuracy >= 60                 -> accuracy + 20
//	accuracy >= 50                 -> accuracy + 15
//
// The result is always clamped to [MinAccuracy, MaxAccuracy]; the floor
// applies unconditionally.
func Curve(accuracy float64, realErrors int) float64 {
	switch {
	case realErrors <= 1:
		accuracy = 100
	case realErrors <= 3 && accuracy >= 75:
		accuracy = 95
	case realErrors <= 5 && accuracy >= 70:
		accuracy = 90
	case accuracy >= 75:
		accuracy = min(100, accuracy+15)
	case accuracy >= 60:
		accuracy = min(100, accuracy+20)
	case accuracy >= 50:
		accuracy = min(100, accuracy+15)
	}
	return max(MinAccuracy, min(MaxAccuracy, accuracy))
}
