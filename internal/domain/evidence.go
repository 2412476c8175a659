package domain

// EvidenceBundle aggregates everything gathered for one diagnosis attempt.
// It is ephemeral: consumed once by the diagnostic engine and discarded,
// never persisted on its own.
type EvidenceBundle struct {
	Documents []ScoredChunk
	LogLines  []string
	Patterns  []Pattern
}

// IsEmpty reports whether no evidence of any kind was gathered.
func (b EvidenceBundle) IsEmpty() bool {
	return len(b.Documents) == 0 && len(b.LogLines) == 0 && len(b.Patterns) == 0
}
