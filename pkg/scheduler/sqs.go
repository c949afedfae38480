package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
)

// MaxSQSDelay is the longest delivery delay SQS supports for a single message.
const MaxSQSDelay = 15 * time.Minute

// SQSAPI is the subset of the SQS client used by the scheduler.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ExpiryMessage is the body of a delayed release message.
type ExpiryMessage struct {
	ReservationID string    `json:"reservation_id"`
	Deadline      time.Time `json:"deadline"`
}

// SQSScheduler implements the Scheduler interface using delayed SQS messages.
// Holds longer than MaxSQSDelay arrive early and are re-armed by the consumer.
type SQSScheduler struct {
	Client   SQSAPI
	QueueURL string
	Clock    clock.Clock
}

// NewSQSScheduler creates a new SQSScheduler.
func NewSQSScheduler(client SQSAPI, queueURL string, clk clock.Clock) *SQSScheduler {
	return &SQSScheduler{
		Client:   client,
		QueueURL: queueURL,
		Clock:    clk,
	}
}

// Make sure we conform to the interface
var _ Scheduler = (*SQSScheduler)(nil)

// Arm sends the expiry message to SQS, delayed until deadline or MaxSQSDelay, whichever is sooner.
func (s *SQSScheduler) Arm(ctx context.Context, reservationID string, deadline time.Time) error {
	body, err := json.Marshal(ExpiryMessage{ReservationID: reservationID, Deadline: deadline})
	if err != nil {
		return fmt.Errorf("failed to marshal expiry message for SQS: %w", err)
	}

	_, err = s.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(s.QueueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: s.delaySeconds(deadline),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	return nil
}

func (s *SQSScheduler) delaySeconds(deadline time.Time) int32 {
	delay := deadline.Sub(s.Clock.Now())
	if delay <= 0 {
		return 0
	}
	if delay > MaxSQSDelay {
		delay = MaxSQSDelay
	}
	// Round up so the message never arrives before the deadline it targets.
	return int32((delay + time.Second - 1) / time.Second)
}

// Disarm is a no-op: a delivered message for a settled hold releases nothing.
func (s *SQSScheduler) Disarm(reservationID string) bool {
	return false
}

// Due reports whether msg's deadline has been reached. Messages delivered early
// because of the SQS delay cap should be re-armed instead of released.
func (m ExpiryMessage) Due(now time.Time) bool {
	return !now.Before(m.Deadline)
}
