package board

// Outcome of a board evaluation.
type Outcome uint8

const (
	InProgress Outcome = iota
	Win
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Result describes the state of the game after Evaluate.
// Winner and Line are only meaningful when Outcome is Win.
type Result struct {
	Outcome Outcome
	Winner  Owner
	Line    Mask
}

// Finished reports whether the game is over.
func (r Result) Finished() bool {
	return r.Outcome != InProgress
}
