package domain

// User is a user profile document. Tokens is the set of FCM device tokens
// registered for the account; it is kept duplicate-free by the store's
// array-union/array-remove primitives, never by list overwrites.
type User struct {
	ID       string   `firestore:"-" json:"id,omitempty"`
	Name     string   `firestore:"name" json:"name"`
	PhotoURL string   `firestore:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	Locale   string   `firestore:"locale,omitempty" json:"locale,omitempty"`
	Tokens   []string `firestore:"tokens,omitempty" json:"tokens,omitempty"`

	// Creator statistics, mutated only through the transactional stats
	// aggregation path. Both values never decrease.
	TotalParticipantsUntilNow int64 `firestore:"total_participants_until_now" json:"total_participants_until_now"`
	MaxParticipantsInOnePlan  int64 `firestore:"max_participants_in_one_plan" json:"max_participants_in_one_plan"`
}

// Plan is a social plan document, read-only for this service. The creator's
// statistics are the only state derived from it.
type Plan struct {
	ID             string   `firestore:"-" json:"id,omitempty"`
	Type           string   `firestore:"type,omitempty" json:"type,omitempty"`
	CreatedBy      string   `firestore:"createdBy" json:"createdBy"`
	Participants   []string `firestore:"participants,omitempty" json:"participants,omitempty"`
	CheckedInUsers []string `firestore:"checkedInUsers,omitempty" json:"checkedInUsers,omitempty"`
	CheckInActive  bool     `firestore:"checkInActive" json:"checkInActive"`
}
