package models

// Status is the resolution state of a bank transaction. It is a closed
// set: the only legal mutations are the ones listed in AllowedTransitions.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusToReview  Status = "TO_REVIEW"
	StatusMatched   Status = "MATCHED"
	StatusManual    Status = "MANUAL"
	StatusUnmatched Status = "UNMATCHED"
	StatusIgnored   Status = "IGNORED"
)

// AllowedTransitions is the full state machine. IGNORED is terminal, and
// MATCHED/MANUAL can only be left through UNMATCHED so a consumed entry is
// always released before anything else happens to the transaction.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusMatched, StatusToReview, StatusUnmatched, StatusManual, StatusIgnored},
	StatusToReview:  {StatusMatched, StatusManual, StatusUnmatched, StatusIgnored},
	StatusUnmatched: {StatusMatched, StatusToReview, StatusManual, StatusIgnored},
	StatusMatched:   {StatusUnmatched},
	StatusManual:    {StatusUnmatched},
	StatusIgnored:   {},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := AllowedTransitions[s]
	return ok
}

// Resolved reports whether the transaction is paired to an entry.
func (s Status) Resolved() bool {
	return s == StatusMatched || s == StatusManual
}
