package domain

import "time"

// Notification type tags. The set is closed: producers and the message
// composer must agree on it. An unknown tag degrades to the generic
// title/body instead of failing.
const (
	TypeJoinRequest        = "join_request"
	TypeInvitation         = "invitation"
	TypeInvitationAccepted = "invitation_accepted"
	TypeInvitationRejected = "invitation_rejected"
	TypeJoinAccepted       = "join_accepted"
	TypeJoinRejected       = "join_rejected"
	TypeFollowRequest      = "follow_request"
	TypeFollowAccepted     = "follow_accepted"
	TypeFollowRejected     = "follow_rejected"
	TypeNewPlanPublished   = "new_plan_published"
	TypePlanChatMessage    = "plan_chat_message"
	TypeWelcome            = "welcome"
	TypePlanLeft           = "plan_left"
	TypeRemovedFromPlan    = "removed_from_plan"
	TypeSpecialPlanDeleted = "special_plan_deleted"
	TypeSpecialPlanLeft    = "special_plan_left"
	TypeCheckInStarted     = "plan_checkin_started"
	TypeChatMessage        = "chat_message"
)

// SystemSender is the sender id used on notifications generated by the
// platform itself (e.g. the welcome notice).
const SystemSender = "system"

// Notification is a stored notification record. Creation of these records is
// what triggers push delivery; this service never mutates them afterwards.
type Notification struct {
	ID               string    `firestore:"-" json:"id,omitempty"`
	Type             string    `firestore:"type" json:"type"`
	SenderID         string    `firestore:"senderId" json:"senderId"`
	ReceiverID       string    `firestore:"receiverId" json:"receiverId"`
	PlanID           string    `firestore:"planId,omitempty" json:"planId,omitempty"`
	PlanType         string    `firestore:"planType,omitempty" json:"planType,omitempty"`
	SenderName       string    `firestore:"senderName,omitempty" json:"senderName,omitempty"`
	SenderProfilePic string    `firestore:"senderProfilePic,omitempty" json:"senderProfilePic,omitempty"`
	Message          string    `firestore:"message,omitempty" json:"message,omitempty"`
	Timestamp        time.Time `firestore:"timestamp,serverTimestamp" json:"timestamp,omitempty"`
	Read             bool      `firestore:"read" json:"read"`
}

// Message is a direct chat message between two users.
type Message struct {
	ID         string `firestore:"-" json:"id,omitempty"`
	SenderID   string `firestore:"senderId" json:"senderId"`
	ReceiverID string `firestore:"receiverId" json:"receiverId"`
	Text       string `firestore:"text,omitempty" json:"text,omitempty"`
}

// PlanChatMessage is a message posted to a plan's shared chat. The plan id
// travels in the event params, not in the document itself.
type PlanChatMessage struct {
	ID       string `firestore:"-" json:"id,omitempty"`
	SenderID string `firestore:"senderId" json:"senderId"`
	Text     string `firestore:"text,omitempty" json:"text,omitempty"`
}
