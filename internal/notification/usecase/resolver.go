package usecase

// ResolveTokens computes the delivery target set for one receiver: the
// receiver's tokens minus the sender's tokens. Subtraction removes devices
// where both accounts are logged in, so the sender does not get pushed their
// own action. If the subtraction empties the set, the full receiver set is
// returned instead — a duplicate on a shared device is preferred over
// silently dropping the notification for a legitimate receiver.
//
// The result is always a subset of the receiver's tokens and carries no
// duplicates.
func ResolveTokens(receiverTokens, senderTokens []string) []string {
	receiver := dedupe(receiverTokens)
	if len(receiver) == 0 {
		return nil
	}

	exclude := toSet(senderTokens)
	var candidates []string
	for _, t := range receiver {
		if _, shared := exclude[t]; !shared {
			candidates = append(candidates, t)
		}
	}

	if len(candidates) == 0 {
		return receiver
	}
	return candidates
}

// FanOutTargets computes the user ids to notify for a plan-wide event:
// participants plus the creator, minus the sender and any explicit exclusion
// set. Order follows the participant list; the creator is appended when not
// already a participant.
func FanOutTargets(participants []string, creatorID, senderID string, excluded []string) []string {
	skip := toSet(excluded)
	skip[senderID] = struct{}{}

	seen := make(map[string]struct{})
	var targets []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := skip[id]; ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	for _, id := range participants {
		add(id)
	}
	add(creatorID)
	return targets
}

// subtract returns the elements of a absent from b, deduplicated, preserving
// the order of a.
func subtract(a, b []string) []string {
	exclude := toSet(b)
	seen := make(map[string]struct{})
	var out []string
	for _, v := range a {
		if _, ok := exclude[v]; ok {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
