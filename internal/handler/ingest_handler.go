package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/internal/queue"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
	"github.com/nytron88/streamix-sub000/pkg/response"
)

// IngestHandler accepts event records over HTTP and enqueues them for the
// batch worker.
type IngestHandler struct {
	queue queue.EventQueue
}

func NewIngestHandler(q queue.EventQueue) *IngestHandler {
	return &IngestHandler{queue: q}
}

// IngestEvent serves POST /api/v1/events.
func (h *IngestHandler) IngestEvent(c *gin.Context) {
	var event domain.EventRecord
	if err := c.ShouldBindJSON(&event); err != nil {
		response.BadRequest(c, "invalid event payload: "+err.Error())
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := event.Validate(); err != nil {
		if errors.Is(err, domain.ErrUnknownKind) {
			response.BadRequest(c, "unknown event kind: "+string(event.Kind))
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), &event); err != nil {
		l := pkglog.L()
		l.Error().Err(err).
			Str(pkglog.FieldEventID, event.ID).
			Str(pkglog.FieldEventKind, string(event.Kind)).
			Msg("enqueue event failed")
		response.InternalError(c, "failed to enqueue event")
		return
	}

	response.Accepted(c, gin.H{"id": event.ID})
}
