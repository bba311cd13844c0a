package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"plan-notifier/internal/notification/domain"

	"github.com/gin-gonic/gin"
)

// EventRouter routes one decoded store-change event.
type EventRouter interface {
	Route(ctx context.Context, ev domain.Event) error
}

// Handler serves the Pub/Sub push endpoint.
type Handler struct {
	router EventRouter
}

func NewHandler(router EventRouter) *Handler {
	return &Handler{router: router}
}

// pushEnvelope is the standard Pub/Sub push request body. Data is
// base64-encoded on the wire; encoding/json decodes it into the byte slice.
type pushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// HandlePush accepts one pushed event. A 2xx acks the message; a 5xx makes
// Pub/Sub redeliver it, which is the retry path for transient failures.
func (h *Handler) HandlePush(c *gin.Context) {
	var env pushEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid push envelope"})
		return
	}
	if len(env.Message.Data) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	var ev domain.Event
	if err := json.Unmarshal(env.Message.Data, &ev); err != nil {
		// Undecodable payloads are acked, otherwise they redeliver forever.
		log.Printf("[API] Dropping undecodable event %s: %v", env.Message.MessageID, err)
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.router.Route(c.Request.Context(), ev); err != nil {
		log.Printf("[API] Event %s failed: %v", ev.Kind, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event handling failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
