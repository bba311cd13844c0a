package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"plan-notifier/internal/notification/domain"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const notificationsCollection = "notifications"

// NotificationRepository persists notification records. Creating a record is
// what fans out push delivery (via the notification-created event), so
// fan-out handlers write records here instead of sending pushes inline.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	// DeleteByReceiver removes every notification addressed to the given
	// user. Used for the cascade cleanup after an account deletion.
	DeleteByReceiver(ctx context.Context, receiverID string) error
}

type notificationRepository struct {
	client *firestore.Client
}

// NewNotificationRepository creates a Firestore-backed NotificationRepository.
func NewNotificationRepository(client *firestore.Client) NotificationRepository {
	return &notificationRepository{client: client}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	id := n.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := r.client.Collection(notificationsCollection).Doc(id).Create(ctx, n)
	if err != nil {
		return fmt.Errorf("create %s notification for %s: %w", n.Type, n.ReceiverID, err)
	}
	return nil
}

func (r *notificationRepository) DeleteByReceiver(ctx context.Context, receiverID string) error {
	iter := r.client.Collection(notificationsCollection).
		Where("receiverId", "==", receiverID).
		Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("list notifications for %s: %w", receiverID, err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("delete notification %s: %w", doc.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	// Each job carries its own write outcome; a failed delete must surface
	// so the triggering event is redelivered and the cascade retried.
	var errs []error
	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Printf("[Store] Deleted %d notifications for removed user %s", deleted, receiverID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete notifications for %s: %w", receiverID, errors.Join(errs...))
	}
	return nil
}
