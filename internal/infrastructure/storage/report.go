package storage

// Outcome classifies the result of a write operation. Outcomes are surfaced
// to the user-facing message layer verbatim.
type Outcome string

const (
	OutcomeInserted   Outcome = "inserted"
	OutcomeUpdated    Outcome = "updated"
	OutcomeDeleted    Outcome = "deleted"
	OutcomeNotWritten Outcome = "not-written"
	OutcomeNotUpdated Outcome = "not-updated"
)

// WriteReport describes what a single write did.
type WriteReport struct {
	Outcome Outcome `json:"outcome"`
	ID      string  `json:"id,omitempty"`
	Matched int64   `json:"matched,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Inserted reports a successful insert of a new document.
func Inserted(id string) WriteReport {
	return WriteReport{Outcome: OutcomeInserted, ID: id, Matched: 1}
}

// Updated reports a successful update of one document.
func Updated(id string) WriteReport {
	return WriteReport{Outcome: OutcomeUpdated, ID: id, Matched: 1}
}

// Deleted reports a successful removal of one document.
func Deleted(id string) WriteReport {
	return WriteReport{Outcome: OutcomeDeleted, ID: id, Matched: 1}
}

// NotWritten reports a write that never reached the engine.
func NotWritten(reason string) WriteReport {
	return WriteReport{Outcome: OutcomeNotWritten, Reason: reason}
}

// NotUpdated reports an update that matched an unexpected document count,
// e.g. zero documents for an update by id.
func NotUpdated(id string, matched int64, reason string) WriteReport {
	return WriteReport{Outcome: OutcomeNotUpdated, ID: id, Matched: matched, Reason: reason}
}
