package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// StepCompleted is emitted once a step is accepted, really or optimistically
type StepCompleted struct {
	SessionID  string    `json:"session_id"`
	Step       Step      `json:"step"`
	Skipped    bool      `json:"skipped"`
	Optimistic bool      `json:"optimistic"`
	Progress   int       `json:"progress"`
	Current    Step      `json:"current_step"`
	At         time.Time `json:"at"`
}

// EventPublisher delivers step-completion events
type EventPublisher interface {
	PublishStepCompleted(ctx context.Context, event StepCompleted) error
}

// LogPublisher writes events to the log
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a new log publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishStepCompleted(_ context.Context, event StepCompleted) error {
	p.logger.Info("Onboarding step completed",
		zap.String("session_id", event.SessionID),
		zap.String("step", string(event.Step)),
		zap.Bool("skipped", event.Skipped),
		zap.Bool("optimistic", event.Optimistic),
		zap.Int("progress", event.Progress),
		zap.String("current_step", string(event.Current)))
	return nil
}

// SNSAPI is the subset of the SNS client used for publishing
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher fans step-completion events out through an SNS topic
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
}

// NewSNSPublisher creates a new SNS publisher
func NewSNSPublisher(client SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) PublishStepCompleted(ctx context.Context, event StepCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("onboarding.step_completed"),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String("onboarding.step_completed")},
			"step":       {DataType: aws.String("String"), StringValue: aws.String(string(event.Step))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s completion: %w", event.Step, err)
	}
	return nil
}
