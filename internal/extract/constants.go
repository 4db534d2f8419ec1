package extract

// Extraction defaults
const (
	DefaultMinConfidence = 0.85

	// Field names, also used as change-detection region names
	FieldBalance    = "balance"
	FieldBet        = "bet"
	FieldWin        = "win"
	FieldMultiplier = "multiplier"
)

// fieldOrder is the order regions are recognized in.
var fieldOrder = []string{FieldBalance, FieldBet, FieldWin, FieldMultiplier}

// keywords maps label text to the field it introduces when no template is bound.
var keywords = []struct {
	field string
	words []string
}{
	{FieldBalance, []string{"balance", "credit"}},
	{FieldBet, []string{"bet", "stake"}},
	{FieldWin, []string{"win", "payout"}},
}
