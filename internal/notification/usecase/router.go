package usecase

import (
	"context"
	"log"

	"plan-notifier/internal/notification/domain"
	"plan-notifier/pkg/metrics"
)

// HandlerFunc handles one store-change event.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

// Router dispatches store-change events to exactly one handler per kind.
// Unknown kinds are ignored, not errors: the trigger forwarder may ship new
// kinds before this service learns them.
type Router struct {
	handlers map[domain.Kind]HandlerFunc
	metrics  metrics.Recorder
}

// NewRouter builds the dispatch table over the pipeline service.
func NewRouter(svc *Service, rec metrics.Recorder) *Router {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Router{
		handlers: map[domain.Kind]HandlerFunc{
			domain.KindNotificationCreated: svc.HandleNotificationCreated,
			domain.KindMessageCreated:      svc.HandleMessageCreated,
			domain.KindPlanChatCreated:     svc.HandlePlanChatCreated,
			domain.KindPlanWritten:         svc.HandlePlanWritten,
			domain.KindUserCreated:         svc.HandleUserCreated,
			domain.KindUserDeleted:         svc.HandleUserDeleted,
		},
		metrics: rec,
	}
}

// Route invokes the handler registered for the event's kind.
func (r *Router) Route(ctx context.Context, ev domain.Event) error {
	handler, ok := r.handlers[ev.Kind]
	if !ok {
		log.Printf("[Router] Ignoring unknown event kind %q", ev.Kind)
		return nil
	}
	r.metrics.RecordEvent(string(ev.Kind))
	return handler(ctx, ev)
}
