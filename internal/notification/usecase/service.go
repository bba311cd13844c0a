package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"plan-notifier/internal/notification/domain"
	"plan-notifier/internal/notification/repository"
	"plan-notifier/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// welcomeMessage is the fixed body of the welcome notification record created
// for every new account.
const welcomeMessage = "El equipo de Plan te da la bienvenida a la app que te conecta " +
	"con nuevas experiencias y personas. ¡Comienza a explorar y a " +
	"crear momentos inolvidables!"

// systemSenderName is the display name on system-generated notifications.
const systemSenderName = "Plan"

// defaultFanOutLimit bounds concurrent per-recipient deliveries for plan-wide
// fan-outs.
const defaultFanOutLimit = 8

// PushSender is the push-delivery capability the pipeline consumes. One call
// multicasts a composed message to a token set and reports per-token
// outcomes positionally.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, content domain.PushContent, data map[string]string) ([]domain.SendOutcome, error)
}

// Service implements the dispatch pipeline: recipient resolution, message
// composition, multicast delivery, token reconciliation and stats
// aggregation. One Service instance is shared by all concurrently handled
// events; it holds no mutable state beyond its collaborators.
type Service struct {
	users         repository.UserRepository
	plans         repository.PlanRepository
	notifications repository.NotificationRepository
	push          PushSender
	composer      *Composer
	metrics       metrics.Recorder
	fanOutLimit   int
}

// NewService creates the pipeline service with its collaborators.
func NewService(users repository.UserRepository, plans repository.PlanRepository, notifications repository.NotificationRepository, push PushSender, composer *Composer, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Service{
		users:         users,
		plans:         plans,
		notifications: notifications,
		push:          push,
		composer:      composer,
		metrics:       rec,
		fanOutLimit:   defaultFanOutLimit,
	}
}

// HandleNotificationCreated delivers a freshly created notification record as
// a push to the receiver's devices. Replaying the event repeats the same
// delivery; token reconciliation is a set-remove, so replays cannot corrupt
// the token set.
func (s *Service) HandleNotificationCreated(ctx context.Context, ev domain.Event) error {
	var n domain.Notification
	ok, err := ev.DecodeSnapshot(&n)
	if err != nil {
		log.Printf("[Dispatch] Dropping malformed notification event: %v", err)
		return nil
	}
	if !ok || n.ReceiverID == "" || n.SenderID == n.ReceiverID {
		return nil
	}

	receiver, err := s.users.GetByID(ctx, n.ReceiverID)
	if err != nil {
		return err
	}
	if receiver == nil || len(receiver.Tokens) == 0 {
		return nil
	}

	senderTokens, _, err := s.senderProfile(ctx, n.SenderID)
	if err != nil {
		return err
	}

	content := s.composer.Compose(&n, receiver.Locale)
	data := map[string]string{
		"type":     n.Type,
		"planId":   n.PlanID,
		"senderId": n.SenderID,
	}
	return s.deliver(ctx, receiver, senderTokens, content, data)
}

// HandleMessageCreated pushes a direct chat message to the receiver.
func (s *Service) HandleMessageCreated(ctx context.Context, ev domain.Event) error {
	var m domain.Message
	ok, err := ev.DecodeSnapshot(&m)
	if err != nil {
		log.Printf("[Dispatch] Dropping malformed message event: %v", err)
		return nil
	}
	if !ok || m.ReceiverID == "" || m.SenderID == m.ReceiverID {
		return nil
	}

	receiver, err := s.users.GetByID(ctx, m.ReceiverID)
	if err != nil {
		return err
	}
	if receiver == nil || len(receiver.Tokens) == 0 {
		return nil
	}

	senderTokens, senderName, err := s.senderProfile(ctx, m.SenderID)
	if err != nil {
		return err
	}

	content := s.composer.Compose(&domain.Notification{
		Type:       domain.TypeChatMessage,
		SenderName: senderName,
	}, receiver.Locale)
	data := map[string]string{
		"type":      domain.TypeChatMessage,
		"senderId":  m.SenderID,
		"messageId": ev.Param("id"),
	}
	return s.deliver(ctx, receiver, senderTokens, content, data)
}

// HandlePlanChatCreated fans a plan chat message out to every participant and
// the creator, except the sender. Recipients are resolved and delivered
// independently; one failing recipient does not block the others.
func (s *Service) HandlePlanChatCreated(ctx context.Context, ev domain.Event) error {
	var m domain.PlanChatMessage
	ok, err := ev.DecodeSnapshot(&m)
	if err != nil {
		log.Printf("[Dispatch] Dropping malformed plan chat event: %v", err)
		return nil
	}
	planID := ev.Param("planId")
	if !ok || planID == "" {
		return nil
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	senderTokens, senderName, err := s.senderProfile(ctx, m.SenderID)
	if err != nil {
		return err
	}

	notif := &domain.Notification{
		Type:       domain.TypePlanChatMessage,
		SenderName: senderName,
		PlanType:   planLabel(plan.Type),
	}
	data := map[string]string{
		"type":     domain.TypePlanChatMessage,
		"planId":   planID,
		"senderId": m.SenderID,
	}

	targets := FanOutTargets(plan.Participants, plan.CreatedBy, m.SenderID, nil)

	var g errgroup.Group
	g.SetLimit(s.fanOutLimit)
	for _, uid := range targets {
		uid := uid
		g.Go(func() error {
			receiver, err := s.users.GetByID(ctx, uid)
			if err != nil {
				return err
			}
			if receiver == nil || len(receiver.Tokens) == 0 {
				return nil
			}
			content := s.composer.Compose(notif, receiver.Locale)
			return s.deliver(ctx, receiver, senderTokens, content, data)
		})
	}
	return g.Wait()
}

// HandlePlanWritten reacts to a plan document write: removed-participant
// notices, creator check-in statistics, and the check-in-started fan-out.
// The three reactions are independent; failures are joined so the broker
// redelivers, and each reaction is safe to repeat.
func (s *Service) HandlePlanWritten(ctx context.Context, ev domain.Event) error {
	var before, after domain.Plan
	okBefore, err := ev.DecodeBefore(&before)
	if err != nil {
		log.Printf("[Dispatch] Dropping malformed plan event: %v", err)
		return nil
	}
	okAfter, err := ev.DecodeAfter(&after)
	if err != nil {
		log.Printf("[Dispatch] Dropping malformed plan event: %v", err)
		return nil
	}
	// Pure creations and deletions carry no reaction here.
	if !okBefore || !okAfter {
		return nil
	}

	planID := ev.Param("planId")
	return errors.Join(
		s.notifyRemovedParticipants(ctx, planID, &before, &after),
		s.updateCreatorStats(ctx, &before, &after),
		s.notifyCheckInStarted(ctx, planID, &before, &after),
	)
}

// HandleUserCreated writes the one-time welcome notification record for a new
// account.
func (s *Service) HandleUserCreated(ctx context.Context, ev domain.Event) error {
	userID := ev.Param("userId")
	if userID == "" {
		return nil
	}
	var u domain.User
	ok, err := ev.DecodeSnapshot(&u)
	if err != nil {
		log.Printf("[Dispatch] Dropping malformed user event: %v", err)
		return nil
	}
	if !ok {
		return nil
	}

	err = s.notifications.Create(ctx, &domain.Notification{
		Type:       domain.TypeWelcome,
		ReceiverID: userID,
		SenderID:   domain.SystemSender,
		SenderName: systemSenderName,
		Message:    welcomeMessage,
	})
	if err != nil {
		return err
	}
	s.metrics.RecordNotificationCreated(domain.TypeWelcome)
	return nil
}

// HandleUserDeleted removes the user document and cascades to the
// notification records addressed to it.
func (s *Service) HandleUserDeleted(ctx context.Context, ev domain.Event) error {
	userID := ev.Param("userId")
	if userID == "" {
		return nil
	}
	return errors.Join(
		s.users.Delete(ctx, userID),
		s.notifications.DeleteByReceiver(ctx, userID),
	)
}

// notifyRemovedParticipants creates a removed-from-plan notification record
// for every participant present before the write and absent after it.
// Delivery happens through the standard notification-created path, never
// inline.
func (s *Service) notifyRemovedParticipants(ctx context.Context, planID string, before, after *domain.Plan) error {
	removed := subtract(before.Participants, after.Participants)
	if len(removed) == 0 {
		return nil
	}

	senderName, senderPhoto := s.creatorProfile(ctx, after.CreatedBy)
	planType := planLabel(after.Type)

	var g errgroup.Group
	g.SetLimit(s.fanOutLimit)
	for _, uid := range removed {
		uid := uid
		g.Go(func() error {
			err := s.notifications.Create(ctx, &domain.Notification{
				Type:             domain.TypeRemovedFromPlan,
				ReceiverID:       uid,
				SenderID:         after.CreatedBy,
				PlanID:           planID,
				PlanType:         planType,
				SenderName:       senderName,
				SenderProfilePic: senderPhoto,
			})
			if err != nil {
				return err
			}
			s.metrics.RecordNotificationCreated(domain.TypeRemovedFromPlan)
			return nil
		})
	}
	return g.Wait()
}

// updateCreatorStats folds newly checked-in participants into the plan
// creator's aggregate statistics. The actual read-modify-write runs inside a
// store transaction, so two plans of the same creator racing each other
// cannot lose an update.
func (s *Service) updateCreatorStats(ctx context.Context, before, after *domain.Plan) error {
	if len(after.CheckedInUsers) <= len(before.CheckedInUsers) {
		return nil
	}
	added := subtract(after.CheckedInUsers, before.CheckedInUsers)
	if len(added) == 0 {
		return nil
	}
	if after.CreatedBy == "" {
		return nil
	}

	if err := s.users.AddCheckInStats(ctx, after.CreatedBy, len(added), len(after.CheckedInUsers)); err != nil {
		return err
	}
	s.metrics.RecordStatsApplied(len(added))
	return nil
}

// notifyCheckInStarted fires only on the rising edge of the check-in flag and
// creates a notification record for every participant who has not checked in
// yet, excluding the creator.
func (s *Service) notifyCheckInStarted(ctx context.Context, planID string, before, after *domain.Plan) error {
	if before.CheckInActive || !after.CheckInActive {
		return nil
	}

	targets := subtract(after.Participants, append([]string{after.CreatedBy}, after.CheckedInUsers...))
	if len(targets) == 0 {
		return nil
	}

	senderName, senderPhoto := s.creatorProfile(ctx, after.CreatedBy)
	planType := planLabel(after.Type)

	var g errgroup.Group
	g.SetLimit(s.fanOutLimit)
	for _, uid := range targets {
		uid := uid
		g.Go(func() error {
			err := s.notifications.Create(ctx, &domain.Notification{
				Type:             domain.TypeCheckInStarted,
				ReceiverID:       uid,
				SenderID:         after.CreatedBy,
				PlanID:           planID,
				PlanType:         planType,
				SenderName:       senderName,
				SenderProfilePic: senderPhoto,
			})
			if err != nil {
				return err
			}
			s.metrics.RecordNotificationCreated(domain.TypeCheckInStarted)
			return nil
		})
	}
	return g.Wait()
}

// deliver resolves the target token set against the sender's devices, sends
// the multicast, and reconciles permanently stale tokens best-effort.
func (s *Service) deliver(ctx context.Context, receiver *domain.User, senderTokens []string, content domain.PushContent, data map[string]string) error {
	tokens := ResolveTokens(receiver.Tokens, senderTokens)
	if len(tokens) == 0 {
		return nil
	}

	outcomes, err := s.push.SendMulticast(ctx, tokens, content, data)
	if err != nil {
		return fmt.Errorf("send push to user %s: %w", receiver.ID, err)
	}

	success := 0
	for _, o := range outcomes {
		if o.Status == domain.SendSuccess {
			success++
		}
	}
	s.metrics.RecordDeliveries(success, len(outcomes)-success)

	s.reconcileTokens(ctx, receiver.ID, outcomes)
	return nil
}

// reconcileTokens prunes tokens the transport reported as permanently
// unregistered. Best effort: a failed prune is logged, not escalated, since
// the next delivery reports the same tokens again.
func (s *Service) reconcileTokens(ctx context.Context, userID string, outcomes []domain.SendOutcome) {
	stale := domain.StaleTokens(outcomes)
	if len(stale) == 0 {
		return
	}

	if err := s.users.RemoveTokens(ctx, userID, stale); err != nil {
		log.Printf("[Dispatch] Failed to prune %d stale tokens for user %s: %v", len(stale), userID, err)
		return
	}
	s.metrics.RecordTokensPruned(len(stale))
}

// senderProfile fetches the sender's tokens and display name. System and
// absent senders resolve to an empty profile; a sender deleted concurrently
// is benign.
func (s *Service) senderProfile(ctx context.Context, senderID string) (tokens []string, name string, err error) {
	if senderID == "" || senderID == domain.SystemSender {
		return nil, systemSenderName, nil
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, "", err
	}
	if sender == nil {
		return nil, "", nil
	}
	return sender.Tokens, sender.Name, nil
}

// creatorProfile fetches the creator's display fields for fan-out records.
// A missing creator yields empty fields, matching the read-only nature of
// this lookup.
func (s *Service) creatorProfile(ctx context.Context, creatorID string) (name, photoURL string) {
	if creatorID == "" {
		return "", ""
	}
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil || creator == nil {
		if err != nil {
			log.Printf("[Dispatch] Failed to load creator %s: %v", creatorID, err)
		}
		return "", ""
	}
	return creator.Name, creator.PhotoURL
}

func planLabel(planType string) string {
	if planType == "" {
		return "Plan"
	}
	return planType
}
