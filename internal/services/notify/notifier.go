// internal/services/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
)

const EventDecision = "scholarship.decision"

type Publisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) (string, error)
}

type Mailer interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*auth.User, error)
}

// Notifier fans a decision out to the SNS topic and to the applicant's inbox. Either channel may be nil.
type Notifier struct {
	publisher Publisher
	mailer    Mailer
	users     UserDirectory
	logger    logger.Logger
}

func NewNotifier(publisher Publisher, mailer Mailer, users UserDirectory, log logger.Logger) *Notifier {
	return &Notifier{publisher: publisher, mailer: mailer, users: users, logger: log}
}

// NotifyDecision never fails the caller. Send errors are logged as NOTIFICATION_SEND_FAILED.
func (n *Notifier) NotifyDecision(ctx context.Context, notice models.DecisionNotice) {
	if n == nil {
		return
	}
	log := n.logger.WithFields(map[string]interface{}{
		"applicationId": notice.ApplicationID,
		"outcome":       string(notice.Outcome),
	})

	if n.publisher != nil {
		if _, err := n.publisher.PublishJSON(ctx, EventDecision, notice); err != nil {
			log.Warn("decision publish failed", fields(errors.NewNotificationSendFailedError("sns", err)))
		}
	}

	if n.mailer == nil || n.users == nil {
		return
	}
	user, err := n.users.GetUser(ctx, notice.ApplicantID)
	if err != nil {
		log.Warn("applicant lookup failed", fields(errors.NewNotificationSendFailedError("ses", err)))
		return
	}
	if user.Email == "" {
		log.Debug("applicant has no email, skipping", nil)
		return
	}

	subject, body := decisionMessage(notice, user)
	if _, err := n.mailer.SendText(ctx, user.Email, subject, body); err != nil {
		log.Warn("decision email failed", fields(errors.NewNotificationSendFailedError("ses", err)))
	}
}

func fields(err *errors.StandardError) map[string]interface{} {
	return map[string]interface{}{
		"errorCode": string(err.Code),
		"error":     err.Error(),
	}
}

func decisionMessage(notice models.DecisionNotice, user *auth.User) (string, string) {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	switch notice.Outcome {
	case models.ApplicationScholarshipAssigned:
		fmt.Fprintf(&b, "Your scholarship application %s has been approved and the scholarship is assigned to you.\n", notice.ApplicationID)
		return "Scholarship approved", b.String()
	default:
		fmt.Fprintf(&b, "Your scholarship application %s was not approved.\n", notice.ApplicationID)
		if notice.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", notice.Reason)
		}
		return "Scholarship application result", b.String()
	}
}
