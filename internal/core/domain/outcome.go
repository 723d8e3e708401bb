package domain

// Score is the numeric label assigned to a record.
type Score int

const (
	ScoreNegative Score = -1
	ScoreNeutral  Score = 0
	ScorePositive Score = 1
)

// Valid reports whether s is one of the three allowed scores.
func (s Score) Valid() bool {
	return s >= ScoreNegative && s <= ScorePositive
}

// Diagnostic reasons for outcomes that did not come from a parsed reply.
const (
	ReasonAborted     = "aborted"
	ReasonExhausted   = "exceeded retry limit"
	ReasonUnparseable = "unparseable response"
	ReasonEmptyInput  = "empty input"
)

// Outcome is the classification result for a single record.
type Outcome struct {
	Index  int
	Score  Score
	Reason string

	// Aborted marks a placeholder produced after the run was cancelled.
	// Aborted outcomes are never written to the output.
	Aborted bool
	// Attempts is the number of network round trips spent on the record.
	Attempts int
}

// AbortedOutcome returns the placeholder used when a record is cancelled.
func AbortedOutcome(index, attempts int) Outcome {
	return Outcome{Index: index, Score: ScoreNeutral, Reason: ReasonAborted, Aborted: true, Attempts: attempts}
}
