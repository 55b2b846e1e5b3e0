// Package queue provides the SQS-based producer that fans created alerts out
// to downstream consumers (notification workers, dashboards).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AlertEvent is the wire shape of an alert-created event. EventID is unique
// per publish so consumers can deduplicate; delivery itself is best effort
// and at-least-once.
type AlertEvent struct {
	EventID    string              `json:"event_id"`
	Event      string              `json:"event"`
	AlertID    int64               `json:"alert_id"`
	MachineID  string              `json:"machine_id"`
	AlertType  types.AlertType     `json:"alert_type"`
	Severity   types.AlertSeverity `json:"severity"`
	Message    string              `json:"message"`
	OccurredAt time.Time           `json:"occurred_at"`
}

const eventAlertCreated = "alert.created"

// AlertPublisher sends alert-created events to a single SQS queue.
type AlertPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewAlertPublisher creates an AlertPublisher for the given queue URL.
func NewAlertPublisher(client SQSSender, queueURL string, logger *slog.Logger) *AlertPublisher {
	return &AlertPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishAlertCreated serializes the alert into an AlertEvent and sends it.
// Callers treat failures as best effort; the alert row is already committed
// before this runs.
func (p *AlertPublisher) PublishAlertCreated(ctx context.Context, a *types.Alert) error {
	event := AlertEvent{
		EventID:    uuid.New().String(),
		Event:      eventAlertCreated,
		AlertID:    a.ID,
		MachineID:  a.MachineID,
		AlertType:  a.Type,
		Severity:   a.Severity,
		Message:    a.Message,
		OccurredAt: a.CreatedAt,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal AlertEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventAlertCreated),
			},
			"alert_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(a.Type)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send AlertEvent to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "alert event sent",
		"queue_url", p.queueURL,
		"event_id", event.EventID,
		"alert_id", a.ID,
		"machine_id", a.MachineID,
		"alert_type", string(a.Type),
	)

	return nil
}
