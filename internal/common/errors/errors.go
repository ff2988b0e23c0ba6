// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Configuration errors
const (
	ErrCodeInvalidCallConfiguration ErrorCode = "INVALID_CALL_CONFIGURATION"
)

// State errors
const (
	ErrCodeInvalidStateTransition      ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeInvalidApplicationState     ErrorCode = "INVALID_APPLICATION_STATE"
	ErrCodeInvalidCallState            ErrorCode = "INVALID_CALL_STATE"
	ErrCodeCallNotAcceptingSubmissions ErrorCode = "CALL_NOT_ACCEPTING_SUBMISSIONS"
	ErrCodeUnresolvedApplicationsExist ErrorCode = "UNRESOLVED_APPLICATIONS_EXIST"
	ErrCodeUnauthorizedTransition      ErrorCode = "UNAUTHORIZED_TRANSITION"
)

// Capacity errors
const (
	ErrCodeQuotaExhausted     ErrorCode = "QUOTA_EXHAUSTED"
	ErrCodeQuotaGrantFailed   ErrorCode = "QUOTA_GRANT_FAILED"
	ErrCodeQuotaReleaseFailed ErrorCode = "QUOTA_RELEASE_FAILED"
)

// Validation errors
const (
	ErrCodeIncompleteApplication ErrorCode = "INCOMPLETE_APPLICATION"
	ErrCodeScoreOutOfRange       ErrorCode = "SCORE_OUT_OF_RANGE"
	ErrCodeJustificationRequired ErrorCode = "JUSTIFICATION_REQUIRED"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeDuplicateApplication  ErrorCode = "DUPLICATE_APPLICATION"
)

// Concurrency errors
const (
	ErrCodeEvaluationInProgress     ErrorCode = "EVALUATION_IN_PROGRESS"
	ErrCodePreviewExpiredOrNotFound ErrorCode = "PREVIEW_EXPIRED_OR_NOT_FOUND"
)

// Authorization, lookup and technical errors
const (
	ErrCodeForbidden                ErrorCode = "FORBIDDEN"
	ErrCodeAuthentication           ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeResourceNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeScoringServiceFailed     ErrorCode = "SCORING_SERVICE_FAILED"
	ErrCodeScoringTimeout           ErrorCode = "SCORING_TIMEOUT"
	ErrCodeRoleGrantFailed          ErrorCode = "ROLE_GRANT_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches on the error code so the sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks. Never returned directly.
var (
	ErrInvalidCallConfiguration    = &StandardError{Code: ErrCodeInvalidCallConfiguration}
	ErrInvalidStateTransition      = &StandardError{Code: ErrCodeInvalidStateTransition}
	ErrInvalidApplicationState     = &StandardError{Code: ErrCodeInvalidApplicationState}
	ErrInvalidCallState            = &StandardError{Code: ErrCodeInvalidCallState}
	ErrCallNotAcceptingSubmissions = &StandardError{Code: ErrCodeCallNotAcceptingSubmissions}
	ErrUnresolvedApplicationsExist = &StandardError{Code: ErrCodeUnresolvedApplicationsExist}
	ErrUnauthorizedTransition      = &StandardError{Code: ErrCodeUnauthorizedTransition}
	ErrQuotaExhausted              = &StandardError{Code: ErrCodeQuotaExhausted}
	ErrQuotaGrantFailed            = &StandardError{Code: ErrCodeQuotaGrantFailed}
	ErrQuotaReleaseFailed          = &StandardError{Code: ErrCodeQuotaReleaseFailed}
	ErrIncompleteApplication       = &StandardError{Code: ErrCodeIncompleteApplication}
	ErrScoreOutOfRange             = &StandardError{Code: ErrCodeScoreOutOfRange}
	ErrJustificationRequired       = &StandardError{Code: ErrCodeJustificationRequired}
	ErrValidationFailed            = &StandardError{Code: ErrCodeValidationFailed}
	ErrDuplicateApplication        = &StandardError{Code: ErrCodeDuplicateApplication}
	ErrEvaluationInProgress        = &StandardError{Code: ErrCodeEvaluationInProgress}
	ErrPreviewExpiredOrNotFound    = &StandardError{Code: ErrCodePreviewExpiredOrNotFound}
	ErrForbidden                   = &StandardError{Code: ErrCodeForbidden}
	ErrAuthentication              = &StandardError{Code: ErrCodeAuthentication}
	ErrResourceNotFound            = &StandardError{Code: ErrCodeResourceNotFound}
	ErrRoleGrantFailed             = &StandardError{Code: ErrCodeRoleGrantFailed}
	ErrScoringTimeout              = &StandardError{Code: ErrCodeScoringTimeout}
	ErrScoringServiceFailed        = &StandardError{Code: ErrCodeScoringServiceFailed}
)

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidCallConfigurationError(details string) *StandardError {
	return newError(ErrCodeInvalidCallConfiguration, "Call configuration is not publishable", details, false)
}

// NewInvalidStateTransitionError names the entity, its current state and the requested one.
func NewInvalidStateTransitionError(entity, from, to string) *StandardError {
	err := newError(ErrCodeInvalidStateTransition,
		fmt.Sprintf("%s cannot move from %s to %s", entity, from, to), "", false)
	err.Metadata = map[string]interface{}{"entity": entity, "currentState": from, "requestedState": to}
	return err
}

func NewInvalidApplicationStateError(applicationID, state, expected string) *StandardError {
	err := newError(ErrCodeInvalidApplicationState, "Application is not in the required state",
		fmt.Sprintf("applicationId: %s, state: %s, expected: %s", applicationID, state, expected), false)
	err.Metadata = map[string]interface{}{"applicationId": applicationID, "currentState": state}
	return err
}

func NewInvalidCallStateError(callID, state string) *StandardError {
	return newError(ErrCodeInvalidCallState, "Operation not allowed in the current call state",
		fmt.Sprintf("callId: %s, state: %s", callID, state), false)
}

func NewCallNotAcceptingSubmissionsError(callID, state string) *StandardError {
	return newError(ErrCodeCallNotAcceptingSubmissions, "Call is not accepting submissions",
		fmt.Sprintf("callId: %s, state: %s", callID, state), false)
}

func NewUnresolvedApplicationsExistError(callID string, pending int) *StandardError {
	err := newError(ErrCodeUnresolvedApplicationsExist, "Call still has unresolved applications",
		fmt.Sprintf("callId: %s, pending: %d", callID, pending), false)
	err.Metadata = map[string]interface{}{"pending": pending}
	return err
}

func NewUnauthorizedTransitionError(from, to string) *StandardError {
	return newError(ErrCodeUnauthorizedTransition, "Transition is reserved to the evaluation or decision workflow",
		fmt.Sprintf("%s -> %s", from, to), false)
}

func NewQuotaExhaustedError(callID, scholarshipType, faculty string) *StandardError {
	return newError(ErrCodeQuotaExhausted, "No quota capacity left",
		fmt.Sprintf("callId: %s, scholarshipType: %s, faculty: %s", callID, scholarshipType, faculty), false)
}

func NewQuotaGrantFailedError(handleID, details string) *StandardError {
	return newError(ErrCodeQuotaGrantFailed, "Quota reservation could not be granted",
		fmt.Sprintf("handleId: %s, %s", handleID, details), false)
}

func NewQuotaReleaseFailedError(handleID, details string) *StandardError {
	return newError(ErrCodeQuotaReleaseFailed, "Quota reservation could not be released",
		fmt.Sprintf("handleId: %s, %s", handleID, details), false)
}

func NewIncompleteApplicationError(missing []string) *StandardError {
	err := newError(ErrCodeIncompleteApplication, "Application is incomplete", strings.Join(missing, ", "), false)
	err.Metadata = map[string]interface{}{"missing": missing}
	return err
}

func NewScoreOutOfRangeError(details string) *StandardError {
	return newError(ErrCodeScoreOutOfRange, "Score outside of the allowed bounds", details, false)
}

func NewJustificationRequiredError() *StandardError {
	return newError(ErrCodeJustificationRequired, "Override requires a justification", "", false)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewDuplicateApplicationError(applicantID, callID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists",
		fmt.Sprintf("applicantId: %s, callId: %s", applicantID, callID), false)
}

func NewEvaluationInProgressError(applicationID string) *StandardError {
	return newError(ErrCodeEvaluationInProgress, "An evaluation preview is already pending",
		fmt.Sprintf("applicationId: %s", applicationID), false)
}

func NewPreviewExpiredOrNotFoundError(applicationID, previewID string) *StandardError {
	return newError(ErrCodePreviewExpiredOrNotFound, "Preview expired or does not match",
		fmt.Sprintf("applicationId: %s, previewId: %s", applicationID, previewID), false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Actor is not allowed to perform this operation", details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewResourceNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("%s not found", resource), fmt.Sprintf("id: %s", id), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewScoringServiceFailedError(err error) *StandardError {
	return newError(ErrCodeScoringServiceFailed, "Scoring back-end error", err.Error(), true)
}

func NewScoringTimeoutError(err error) *StandardError {
	return newError(ErrCodeScoringTimeout, "Scoring back-end timeout", err.Error(), true)
}

func NewRoleGrantFailedError(userID string, err error) *StandardError {
	return newError(ErrCodeRoleGrantFailed, "Role grant failed",
		fmt.Sprintf("userId: %s, error: %s", userID, err.Error()), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// GetRetryCount returns how many job retries a code deserves before the error is thrown to the process.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeScoringServiceFailed,
		ErrCodeRoleGrantFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeScoringTimeout, ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are the internal codes so boundary events can route on them.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidCallConfiguration:
		return "CONFIGURATION"
	case ErrCodeInvalidStateTransition, ErrCodeInvalidApplicationState, ErrCodeInvalidCallState,
		ErrCodeCallNotAcceptingSubmissions, ErrCodeUnresolvedApplicationsExist, ErrCodeUnauthorizedTransition:
		return "STATE"
	case ErrCodeQuotaExhausted, ErrCodeQuotaGrantFailed, ErrCodeQuotaReleaseFailed:
		return "CAPACITY"
	case ErrCodeIncompleteApplication, ErrCodeScoreOutOfRange, ErrCodeJustificationRequired,
		ErrCodeValidationFailed, ErrCodeDuplicateApplication:
		return "VALIDATION"
	case ErrCodeEvaluationInProgress, ErrCodePreviewExpiredOrNotFound:
		return "CONCURRENCY"
	case ErrCodeForbidden, ErrCodeAuthentication:
		return "AUTHORIZATION"
	}

	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SCORING") || strings.Contains(codeStr, "EXTERNAL") ||
		strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "ROLE") ||
		strings.Contains(codeStr, "TIMEOUT"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	default:
		return "UNKNOWN"
	}
}

// As returns err as a *StandardError, wrapping anything else as INTERNAL_ERROR.
func As(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
