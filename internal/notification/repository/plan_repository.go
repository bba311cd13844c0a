package repository

import (
	"context"
	"fmt"

	"plan-notifier/internal/notification/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const plansCollection = "plans"

// PlanRepository reads plan documents. This service never writes them.
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Plan, error)
}

type planRepository struct {
	client *firestore.Client
}

// NewPlanRepository creates a Firestore-backed PlanRepository.
func NewPlanRepository(client *firestore.Client) PlanRepository {
	return &planRepository{client: client}
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	snap, err := r.client.Collection(plansCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}

	var plan domain.Plan
	if err := snap.DataTo(&plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	plan.ID = snap.Ref.ID
	return &plan, nil
}
