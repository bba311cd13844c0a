package domain

// SendStatus classifies the delivery result for a single device token.
type SendStatus int

const (
	// SendSuccess means the transport accepted the message for the token.
	SendSuccess SendStatus = iota
	// SendUnregistered means the transport reported the token as permanently
	// stale (app uninstalled, token rotated). Safe to delete.
	SendUnregistered
	// SendTransient covers every other failure (rate limits, network). The
	// token must be kept.
	SendTransient
)

// SendOutcome is the per-token result of one multicast call, aligned
// positionally with the token list that was sent.
type SendOutcome struct {
	Token  string
	Status SendStatus
}

// PushContent is a composed, localized notification ready for delivery.
type PushContent struct {
	Title string
	Body  string
}

// StaleTokens extracts the tokens reported permanently unregistered.
// Transient failures are deliberately excluded.
func StaleTokens(outcomes []SendOutcome) []string {
	var stale []string
	for _, o := range outcomes {
		if o.Status == SendUnregistered {
			stale = append(stale, o.Token)
		}
	}
	return stale
}
