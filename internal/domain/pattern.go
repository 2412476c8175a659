package domain

// Pattern is a known error signature with its historical fix. Patterns are
// read-only at runtime; frequency and success-rate upkeep belongs to the
// surrounding system.
type Pattern struct {
	ID          string
	Signature   string
	Regex       string
	Solution    string
	SuccessRate float64
	Frequency   int
}
