package domain

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the store mutation an event describes.
type Kind string

const (
	KindNotificationCreated Kind = "notification.created"
	KindMessageCreated      Kind = "message.created"
	KindPlanChatCreated     Kind = "plan.chat.created"
	KindPlanWritten         Kind = "plan.written"
	KindUserCreated         Kind = "user.created"
	KindUserDeleted         Kind = "user.deleted"
)

// Event is the envelope the trigger forwarder publishes for every committed
// document write. Created-style events carry Snapshot; written-style events
// carry Before and After (either may be absent for create/delete writes).
// Delivery is at-least-once and unordered across documents, so handlers must
// tolerate replays.
type Event struct {
	Kind     Kind              `json:"kind"`
	Params   map[string]string `json:"params,omitempty"`
	Snapshot json.RawMessage   `json:"snapshot,omitempty"`
	Before   json.RawMessage   `json:"before,omitempty"`
	After    json.RawMessage   `json:"after,omitempty"`
}

// Param returns the named routing parameter or "" when absent.
func (e Event) Param(name string) string {
	if e.Params == nil {
		return ""
	}
	return e.Params[name]
}

// DecodeSnapshot unmarshals the created-document snapshot into v. It reports
// false when the event carries no snapshot at all.
func (e Event) DecodeSnapshot(v any) (bool, error) {
	return decodeDoc(e.Snapshot, v)
}

// DecodeBefore unmarshals the pre-write document state into v.
func (e Event) DecodeBefore(v any) (bool, error) {
	return decodeDoc(e.Before, v)
}

// DecodeAfter unmarshals the post-write document state into v.
func (e Event) DecodeAfter(v any) (bool, error) {
	return decodeDoc(e.After, v)
}

func decodeDoc(raw json.RawMessage, v any) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode event document: %w", err)
	}
	return true, nil
}
