// internal/models/audit.go
package models

import "time"

type AuditEventType string

const (
	AuditCallTransitioned        AuditEventType = "call_transitioned"
	AuditCallConfigured          AuditEventType = "call_configured"
	AuditApplicationCreated      AuditEventType = "application_created"
	AuditApplicationUpdated      AuditEventType = "application_updated"
	AuditApplicationSubmitted    AuditEventType = "application_submitted"
	AuditApplicationObserved     AuditEventType = "application_observed"
	AuditApplicationResubmitted  AuditEventType = "application_resubmitted"
	AuditApplicationWithdrawn    AuditEventType = "application_withdrawn"
	AuditEvaluationAccepted      AuditEventType = "evaluation_accepted"
	AuditEvaluationOverridden    AuditEventType = "evaluation_overridden"
	AuditBatchEvaluationComplete AuditEventType = "batch_evaluation_completed"
	AuditDecisionBatch           AuditEventType = "decision_batch"
)

type AuditEvent struct {
	ID           string                 `json:"id"`
	EventType    AuditEventType         `json:"eventType"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	ActorID      string                 `json:"actorId"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}
