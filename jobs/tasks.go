package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeRouteIntegrity scans the route catalog for duplicate active URLs.
	TaskTypeRouteIntegrity = "routes:integrity"
	// TaskTypeDelegationDigest reports delegations approaching expiry.
	TaskTypeDelegationDigest = "delegations:digest"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewRouteIntegrityTask constructs the catalog integrity scan task. The task
// carries no payload.
func NewRouteIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRouteIntegrity, nil)
}

// NewDelegationDigestTask constructs the delegation expiry digest task.
func NewDelegationDigestTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDelegationDigest, nil)
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks when no SMTP relay is
// configured. It logs the message instead of delivering it.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// NewSendEmailHandler returns a handler that delivers mail through the given
// SMTP relay. With an empty address it behaves like HandleSendEmailTask.
func NewSendEmailHandler(addr, from string, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if addr == "" {
			logger.Info("send email (no relay configured)",
				slog.String("to", payload.To),
				slog.String("subject", payload.Subject))
			return nil
		}
		msg := []byte("From: " + from + "\r\n" +
			"To: " + payload.To + "\r\n" +
			"Subject: " + payload.Subject + "\r\n" +
			"\r\n" +
			payload.Body + "\r\n")
		if err := smtp.SendMail(addr, nil, from, []string{payload.To}, msg); err != nil {
			logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		return nil
	}
}
