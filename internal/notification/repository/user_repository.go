package repository

import (
	"context"
	"fmt"

	"plan-notifier/internal/notification/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const usersCollection = "users"

// UserRepository defines the operations the dispatch pipeline needs against
// user documents. Missing users are returned as nil, not as errors: a
// concurrently deleted account is a benign condition for every caller.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// RemoveTokens deletes the given tokens from the user's token set as an
	// array-remove of those specific values. It must never be implemented as
	// a read-filter-overwrite: the remove has to commute with a concurrent
	// registration of a new device token.
	RemoveTokens(ctx context.Context, userID string, tokens []string) error
	// AddCheckInStats folds newly checked-in participants into the creator's
	// statistics inside a single optimistic transaction. A missing creator is
	// a silent no-op.
	AddCheckInStats(ctx context.Context, userID string, added int, checkedInTotal int) error
	Delete(ctx context.Context, userID string) error
}

type userRepository struct {
	client *firestore.Client
}

// NewUserRepository creates a Firestore-backed UserRepository.
func NewUserRepository(client *firestore.Client) UserRepository {
	return &userRepository{client: client}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	snap, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	var user domain.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	user.ID = snap.Ref.ID
	return &user, nil
}

func (r *userRepository) RemoveTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	values := make([]interface{}, len(tokens))
	for i, t := range tokens {
		values[i] = t
	}

	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "tokens", Value: firestore.ArrayRemove(values...)},
	})
	if status.Code(err) == codes.NotFound {
		// User deleted between delivery and reconciliation.
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %d tokens from user %s: %w", len(tokens), userID, err)
	}
	return nil
}

func (r *userRepository) AddCheckInStats(ctx context.Context, userID string, added int, checkedInTotal int) error {
	if added <= 0 {
		return nil
	}

	ref := r.client.Collection(usersCollection).Doc(userID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var user domain.User
		if err := snap.DataTo(&user); err != nil {
			return fmt.Errorf("decode user %s: %w", userID, err)
		}

		total := user.TotalParticipantsUntilNow + int64(added)
		max := user.MaxParticipantsInOnePlan
		if int64(checkedInTotal) > max {
			max = int64(checkedInTotal)
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "total_participants_until_now", Value: total},
			{Path: "max_participants_in_one_plan", Value: max},
		})
	})
	if err != nil {
		return fmt.Errorf("update check-in stats for user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.client.Collection(usersCollection).Doc(userID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}
