// internal/services/audit/recorder.go
package audit

import (
	"context"
	"time"

	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"

	"github.com/google/uuid"
)

// Indexer makes audit events searchable. It is best effort.
type Indexer interface {
	Index(ctx context.Context, event *models.AuditEvent) error
}

// Recorder appends audit events to the authoritative store and mirrors them to the search index.
type Recorder struct {
	store   repository.AuditStore
	indexer Indexer
	logger  logger.Logger
	now     func() time.Time
}

// NewRecorder builds a recorder. indexer may be nil when search is not configured.
func NewRecorder(store repository.AuditStore, indexer Indexer, log logger.Logger) *Recorder {
	return &Recorder{store: store, indexer: indexer, logger: log, now: time.Now}
}

// Record appends one event. Failures are logged; the operation being audited has already happened.
func (r *Recorder) Record(ctx context.Context, eventType models.AuditEventType, resourceType, resourceID, actorID string, details map[string]interface{}) {
	if r == nil {
		return
	}
	event := &models.AuditEvent{
		ID:           uuid.NewString(),
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Details:      details,
		CreatedAt:    r.now().UTC(),
	}

	if err := r.store.AppendAudit(ctx, event); err != nil {
		r.logger.Error("failed to append audit event", map[string]interface{}{
			"eventType":  string(eventType),
			"resourceId": resourceID,
			"error":      err.Error(),
		})
		return
	}

	if r.indexer == nil {
		return
	}
	if err := r.indexer.Index(ctx, event); err != nil {
		r.logger.Warn("failed to index audit event", map[string]interface{}{
			"eventId":   event.ID,
			"eventType": string(eventType),
			"error":     err.Error(),
		})
	}
}
