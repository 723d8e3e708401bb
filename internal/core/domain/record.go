package domain

// Record is one row of the input artifact. Index is its 0-based position in
// source order and never changes once the record is read.
type Record struct {
	Index int
	ID    string
	Year  int
	Text  string
}
