package models

// MatchState is what the facade reports back to a member.
type MatchState string

const (
	MatchStateIdle    MatchState = "idle"
	MatchStateWaiting MatchState = "waiting"
	MatchStateMatched MatchState = "matched"
)

// MatchStatus is the result of requestMatch and pollMatchStatus.
type MatchStatus struct {
	Status    MatchState `json:"status"`
	SessionID string     `json:"session_id,omitempty"`
}

// MatchOutcome is the result of one pairing attempt. Claimed is set when
// this attempt performed the transition, as opposed to finding its entry
// already claimed by a concurrent one.
type MatchOutcome struct {
	Paired  bool
	Claimed bool
	Partner *QueueEntry
}

// Waiting is the outcome when no compatible partner could be claimed.
var Waiting = MatchOutcome{}

// Paired builds the outcome for a pairing this attempt committed.
func Paired(partner *QueueEntry) MatchOutcome {
	return MatchOutcome{Paired: true, Claimed: true, Partner: partner}
}

// PairedElsewhere builds the outcome for an entry a concurrent attempt paired.
func PairedElsewhere(partner *QueueEntry) MatchOutcome {
	return MatchOutcome{Paired: true, Partner: partner}
}
