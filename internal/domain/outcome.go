package domain

type Outcome string

const (
	OutcomeStored            Outcome = "stored"
	OutcomeDuplicateRejected Outcome = "duplicate_rejected"
)

// SubmitResult carries the classification of a submission. Event holds the
// stored record for OutcomeStored and the rejected candidate otherwise.
type SubmitResult struct {
	Outcome Outcome
	Event   Event
}

func (r SubmitResult) Stored() bool { return r.Outcome == OutcomeStored }
